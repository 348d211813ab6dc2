package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storyboard-server/internal/entitlement"
	"storyboard-server/internal/models"
)

// postgresCreditStore реализует entitlement.Store для PostgreSQL.
// Проверка и списание выполняются одним UPDATE: при конкурентных
// запросах с балансом, равным стоимости, строку изменит только один.
type postgresCreditStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

var _ entitlement.Store = (*postgresCreditStore)(nil)

// NewPostgresCreditStore создает хранилище кредитных счетов для PostgreSQL.
func NewPostgresCreditStore(db *pgxpool.Pool, logger *zap.Logger) entitlement.Store {
	return &postgresCreditStore{
		db:     db,
		logger: logger.Named("CreditStore"),
	}
}

const ensureAccountQuery = `
        INSERT INTO credit_accounts (owner_id, balance, free_stories_used, created_at, updated_at)
        VALUES ($1, 0, 0, NOW(), NOW())
        ON CONFLICT (owner_id) DO NOTHING
    `

const getAccountQuery = `
        SELECT owner_id, balance, free_stories_used, created_at, updated_at
        FROM credit_accounts
        WHERE owner_id = $1
    `

func (s *postgresCreditStore) GetAccount(ctx context.Context, ownerID uuid.UUID) (*models.CreditAccount, error) {
	if err := s.ensureAccount(ctx, ownerID); err != nil {
		return nil, err
	}

	account := &models.CreditAccount{}
	err := s.db.QueryRow(ctx, getAccountQuery, ownerID).Scan(
		&account.OwnerID,
		&account.Balance,
		&account.FreeStoriesUsed,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit account %s: %w", ownerID, err)
	}
	return account, nil
}

// authorizeAndDebitQuery применяет правило авторизации одним запросом:
// бесплатная квота расходуется раньше кредитов, при нехватке средств
// строка не изменяется и запрос не возвращает строк.
const authorizeAndDebitQuery = `
        WITH current AS (
            SELECT owner_id, balance, free_stories_used
            FROM credit_accounts
            WHERE owner_id = $1
            FOR UPDATE
        )
        UPDATE credit_accounts a
        SET free_stories_used = CASE WHEN c.free_stories_used < $3 THEN c.free_stories_used + 1 ELSE c.free_stories_used END,
            balance           = CASE WHEN c.free_stories_used < $3 THEN c.balance ELSE c.balance - $2 END,
            updated_at        = NOW()
        FROM current c
        WHERE a.owner_id = c.owner_id
          AND (c.free_stories_used < $3 OR c.balance >= $2)
        RETURNING a.balance, (c.free_stories_used < $3) AS consumed_free
    `

func (s *postgresCreditStore) AuthorizeAndDebit(ctx context.Context, ownerID uuid.UUID, cost int, freeQuota int) (*models.AuthorizationDecision, error) {
	if err := s.ensureAccount(ctx, ownerID); err != nil {
		return nil, err
	}

	var newBalance int
	var consumedFree bool
	err := s.db.QueryRow(ctx, authorizeAndDebitQuery, ownerID, cost, freeQuota).Scan(&newBalance, &consumedFree)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entitlement.ErrRejected
		}
		return nil, fmt.Errorf("failed to authorize debit for %s: %w", ownerID, err)
	}

	decision := &models.AuthorizationDecision{
		OwnerID:           ownerID,
		ConsumedFreeStory: consumedFree,
		NewBalance:        newBalance,
	}
	if !consumedFree {
		decision.DebitedCredits = cost
	}

	s.logger.Debug("Debit applied",
		zap.String("owner_id", ownerID.String()),
		zap.Bool("consumed_free", consumedFree),
		zap.Int("new_balance", newBalance))
	return decision, nil
}

func (s *postgresCreditStore) ensureAccount(ctx context.Context, ownerID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, ensureAccountQuery, ownerID); err != nil {
		return fmt.Errorf("failed to ensure credit account %s: %w", ownerID, err)
	}
	return nil
}
