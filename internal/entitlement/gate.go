// Package entitlement проверяет право владельца на запуск генерации
// и атомарно списывает кредиты либо бесплатную квоту.
package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyboard-server/internal/models"
)

// ErrRejected возвращается хранилищем, когда ни бесплатной квоты,
// ни достаточного баланса кредитов у владельца нет.
var ErrRejected = errors.New("entitlement rejected: no free quota and insufficient credits")

// Store - хранилище кредитных счетов. AuthorizeAndDebit обязан выполнять
// проверку и списание одним атомарным шагом: при конкурентных вызовах
// с балансом, равным стоимости, успешным может быть только один.
type Store interface {
	// GetAccount возвращает счет владельца, создавая его при первом обращении.
	GetAccount(ctx context.Context, ownerID uuid.UUID) (*models.CreditAccount, error)
	// AuthorizeAndDebit атомарно применяет правило авторизации:
	// сначала бесплатная квота (если freeQuota > 0 и использовано меньше),
	// иначе списание cost кредитов с баланса. При отказе возвращает ErrRejected
	// без какой-либо мутации счета.
	AuthorizeAndDebit(ctx context.Context, ownerID uuid.UUID, cost int, freeQuota int) (*models.AuthorizationDecision, error)
}

// Config - параметры гейта.
type Config struct {
	StoryCost int // Стоимость одной раскадровки в кредитах
	FreeQuota int // Количество бесплатных раскадровок на владельца
}

// Gate принимает решение об авторизации запуска генерации.
type Gate struct {
	store  Store
	config Config
	logger *zap.Logger
}

// NewGate создает гейт авторизации.
func NewGate(store Store, cfg Config, logger *zap.Logger) *Gate {
	return &Gate{
		store:  store,
		config: cfg,
		logger: logger.Named("EntitlementGate"),
	}
}

// Authorize проверяет и списывает стоимость запуска для владельца.
// Бесплатная квота всегда расходуется раньше кредитов. При нехватке
// средств возвращает *models.InsufficientCreditsError с текущим балансом,
// счет при этом не изменяется. Списанное не возвращается: неудачная
// генерация после успешной авторизации кредиты не восстанавливает.
func (g *Gate) Authorize(ctx context.Context, ownerID uuid.UUID) (*models.AuthorizationDecision, error) {
	log := g.logger.With(zap.String("owner_id", ownerID.String()))

	decision, err := g.store.AuthorizeAndDebit(ctx, ownerID, g.config.StoryCost, g.config.FreeQuota)
	if err == nil {
		if decision.ConsumedFreeStory {
			log.Info("Authorization granted via free quota",
				zap.Int("new_balance", decision.NewBalance))
		} else {
			log.Info("Authorization granted via credit debit",
				zap.Int("debited_credits", decision.DebitedCredits),
				zap.Int("new_balance", decision.NewBalance))
		}
		return decision, nil
	}

	if !errors.Is(err, ErrRejected) {
		return nil, fmt.Errorf("entitlement check failed: %w", err)
	}

	account, getErr := g.store.GetAccount(ctx, ownerID)
	if getErr != nil {
		return nil, fmt.Errorf("failed to read account after rejection: %w", getErr)
	}

	log.Warn("Authorization rejected: insufficient credits",
		zap.Int("balance", account.Balance),
		zap.Int("cost", g.config.StoryCost))
	return nil, &models.InsufficientCreditsError{
		Balance: account.Balance,
		Cost:    g.config.StoryCost,
	}
}
