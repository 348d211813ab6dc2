package prompt_test

import (
	"strings"
	"testing"

	"storyboard-server/internal/prompt"

	"github.com/stretchr/testify/assert"
)

func TestAllowClothingChange(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "no time or setting keywords keeps clothing",
			text: "She walks across the room and picks up the letter.",
			want: false,
		},
		{
			name: "explicit clothing change phrase",
			text: "He changes into his formal suit before the ceremony.",
			want: true,
		},
		{
			name: "day and night indicators together imply elapsed time",
			text: "They argued all night, and by morning the decision was made.",
			want: true,
		},
		{
			name: "next morning transition",
			text: "The next morning she returned to the workshop.",
			want: true,
		},
		{
			name: "setting change with time indicator",
			text: "Later that evening he arrives at the old manor.",
			want: true,
		},
		{
			name: "setting change without time indicator keeps clothing",
			text: "He arrives at the station and looks around.",
			want: false,
		},
		{
			name: "single day indicator alone keeps clothing",
			text: "In the afternoon they continued the experiment.",
			want: false,
		},
		{
			name: "case insensitive matching",
			text: "THE NEXT DAY everything had changed.",
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, prompt.AllowClothingChange(tc.text))
		})
	}
}

func TestAllowClothingChange_Deterministic(t *testing.T) {
	text := "The next morning she returned to the workshop."
	first := prompt.AllowClothingChange(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, prompt.AllowClothingChange(text))
	}
}

func TestExtractCharacterRef(t *testing.T) {
	t.Run("picks lines with appearance markers", func(t *testing.T) {
		persona := "Mira is a cartographer.\nShe has short silver hair and green eyes.\nShe grew up by the sea."
		ref := prompt.ExtractCharacterRef(persona)
		assert.Contains(t, ref, "silver hair")
		assert.NotContains(t, ref, "grew up by the sea")
	})

	t.Run("falls back to whole persona without markers", func(t *testing.T) {
		persona := "A wandering storyteller of unknown origin."
		assert.Equal(t, persona, prompt.ExtractCharacterRef(persona))
	})

	t.Run("empty persona yields empty ref", func(t *testing.T) {
		assert.Equal(t, "", prompt.ExtractCharacterRef("  \n "))
	})

	t.Run("caps length at word boundary", func(t *testing.T) {
		persona := strings.Repeat("flowing auburn hair ", 100)
		ref := prompt.ExtractCharacterRef(persona)
		assert.LessOrEqual(t, len(ref), 300)
		assert.NotEqual(t, byte(' '), ref[len(ref)-1])
	})
}
