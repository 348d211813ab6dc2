package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storyboard-server/internal/models"
)

// postgresStoryboardRepository реализует StoryboardRepository для PostgreSQL.
// Сцены хранятся как JSONB-массив в колонке scenes; отдельная сцена
// обновляется через jsonb_set по её индексу.
type postgresStoryboardRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

var _ StoryboardRepository = (*postgresStoryboardRepository)(nil)

// NewPostgresStoryboardRepository создает новый экземпляр репозитория для PostgreSQL.
func NewPostgresStoryboardRepository(db *pgxpool.Pool, logger *zap.Logger) StoryboardRepository {
	return &postgresStoryboardRepository{
		db:     db,
		logger: logger.Named("StoryboardRepo"),
	}
}

const createStoryboardQuery = `
        INSERT INTO storyboards
        (id, owner_id, title, original_text, character_persona, visual_style, color_theme, scenes, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `

func (r *postgresStoryboardRepository) Create(ctx context.Context, storyboard *models.Storyboard) error {
	scenesJSON, err := json.Marshal(storyboard.Scenes)
	if err != nil {
		return fmt.Errorf("failed to marshal scenes: %w", err)
	}

	_, err = r.db.Exec(ctx, createStoryboardQuery,
		storyboard.ID,
		storyboard.OwnerID,
		storyboard.Title,
		storyboard.OriginalText,
		storyboard.CharacterPersona,
		storyboard.VisualStyle,
		storyboard.ColorTheme,
		scenesJSON,
		storyboard.Status,
		storyboard.CreatedAt,
		storyboard.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			r.logger.Warn("Storyboard already exists", zap.String("storyboard_id", storyboard.ID.String()))
			return fmt.Errorf("storyboard %s already exists: %w", storyboard.ID, err)
		}
		return fmt.Errorf("failed to insert storyboard: %w", err)
	}

	r.logger.Info("Storyboard created",
		zap.String("storyboard_id", storyboard.ID.String()),
		zap.String("owner_id", storyboard.OwnerID.String()))
	return nil
}

const getStoryboardQuery = `
        SELECT id, owner_id, title, original_text, character_persona, visual_style, color_theme, scenes, status, created_at, updated_at
        FROM storyboards
        WHERE id = $1
    `

func (r *postgresStoryboardRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Storyboard, error) {
	storyboard := &models.Storyboard{}
	var scenesJSON []byte

	err := r.db.QueryRow(ctx, getStoryboardQuery, id).Scan(
		&storyboard.ID,
		&storyboard.OwnerID,
		&storyboard.Title,
		&storyboard.OriginalText,
		&storyboard.CharacterPersona,
		&storyboard.VisualStyle,
		&storyboard.ColorTheme,
		&scenesJSON,
		&storyboard.Status,
		&storyboard.CreatedAt,
		&storyboard.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query storyboard %s: %w", id, err)
	}

	if err := json.Unmarshal(scenesJSON, &storyboard.Scenes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenes for storyboard %s: %w", id, err)
	}
	if storyboard.Scenes == nil {
		storyboard.Scenes = []models.Scene{}
	}
	return storyboard, nil
}

const setBreakdownQuery = `
        UPDATE storyboards
        SET title = $2, character_persona = $3, scenes = $4, updated_at = NOW()
        WHERE id = $1
    `

func (r *postgresStoryboardRepository) SetBreakdown(ctx context.Context, id uuid.UUID, title, characterPersona string, scenes []models.Scene) error {
	scenesJSON, err := json.Marshal(scenes)
	if err != nil {
		return fmt.Errorf("failed to marshal scenes: %w", err)
	}

	tag, err := r.db.Exec(ctx, setBreakdownQuery, id, title, characterPersona, scenesJSON)
	if err != nil {
		return fmt.Errorf("failed to set breakdown for storyboard %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	r.logger.Info("Breakdown saved",
		zap.String("storyboard_id", id.String()),
		zap.Int("scene_count", len(scenes)))
	return nil
}

const updateSceneQuery = `
        UPDATE storyboards
        SET scenes = jsonb_set(scenes, ARRAY[$2::text], $3::jsonb), updated_at = NOW()
        WHERE id = $1 AND jsonb_array_length(scenes) > $4
    `

func (r *postgresStoryboardRepository) UpdateScene(ctx context.Context, id uuid.UUID, scene models.Scene) error {
	sceneJSON, err := json.Marshal(scene)
	if err != nil {
		return fmt.Errorf("failed to marshal scene: %w", err)
	}

	tag, err := r.db.Exec(ctx, updateSceneQuery, id, strconv.Itoa(scene.Index), sceneJSON, scene.Index)
	if err != nil {
		return fmt.Errorf("failed to update scene %d of storyboard %s: %w", scene.Index, id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	r.logger.Debug("Scene updated",
		zap.String("storyboard_id", id.String()),
		zap.Int("scene_index", scene.Index),
		zap.Bool("has_image", scene.HasImage()))
	return nil
}

const updateStatusQuery = `
        UPDATE storyboards
        SET status = $2, updated_at = NOW()
        WHERE id = $1
    `

func (r *postgresStoryboardRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.StoryboardStatus) error {
	tag, err := r.db.Exec(ctx, updateStatusQuery, id, status)
	if err != nil {
		return fmt.Errorf("failed to update status of storyboard %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	r.logger.Info("Storyboard status updated",
		zap.String("storyboard_id", id.String()),
		zap.String("status", string(status)))
	return nil
}

func (r *postgresStoryboardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM storyboards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete storyboard %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	r.logger.Info("Storyboard deleted", zap.String("storyboard_id", id.String()))
	return nil
}
