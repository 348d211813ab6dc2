package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditAccount - счет пользователя в кредитном леджере.
type CreditAccount struct {
	OwnerID         uuid.UUID `json:"owner_id" db:"owner_id"`
	Balance         int       `json:"balance" db:"balance"`                     // Неотрицательный баланс
	FreeStoriesUsed int       `json:"free_stories_used" db:"free_stories_used"` // Сравнивается с бесплатной квотой
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// AuthorizationDecision - результат авторизации запроса на генерацию.
// Списание (или потребление бесплатной истории) уже выполнено к моменту
// возврата решения; отдельного шага "подтвердить" нет.
type AuthorizationDecision struct {
	OwnerID           uuid.UUID
	DebitedCredits    int  // Сколько кредитов списано (0, если покрыто бесплатной квотой)
	ConsumedFreeStory bool // Потреблена ли бесплатная история
	NewBalance        int  // Баланс после списания
}
