package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"storyboard-server/internal/models"
)

// MemoryStore - потокобезопасное in-memory хранилище счетов.
// Используется в тестах и как резерв при недоступности базы.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.CreditAccount
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore создает пустое in-memory хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[uuid.UUID]*models.CreditAccount),
	}
}

// Seed задает стартовое состояние счета владельца.
func (s *MemoryStore) Seed(ownerID uuid.UUID, balance int, freeStoriesUsed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.accounts[ownerID] = &models.CreditAccount{
		OwnerID:         ownerID,
		Balance:         balance,
		FreeStoriesUsed: freeStoriesUsed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *MemoryStore) GetAccount(ctx context.Context, ownerID uuid.UUID) (*models.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account := s.getOrCreateLocked(ownerID)
	copied := *account
	return &copied, nil
}

func (s *MemoryStore) AuthorizeAndDebit(ctx context.Context, ownerID uuid.UUID, cost int, freeQuota int) (*models.AuthorizationDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account := s.getOrCreateLocked(ownerID)

	// Бесплатная квота имеет приоритет над кредитами
	if freeQuota > 0 && account.FreeStoriesUsed < freeQuota {
		account.FreeStoriesUsed++
		account.UpdatedAt = time.Now()
		return &models.AuthorizationDecision{
			OwnerID:           ownerID,
			ConsumedFreeStory: true,
			NewBalance:        account.Balance,
		}, nil
	}

	if account.Balance < cost {
		return nil, ErrRejected
	}

	account.Balance -= cost
	account.UpdatedAt = time.Now()
	return &models.AuthorizationDecision{
		OwnerID:        ownerID,
		DebitedCredits: cost,
		NewBalance:     account.Balance,
	}, nil
}

func (s *MemoryStore) getOrCreateLocked(ownerID uuid.UUID) *models.CreditAccount {
	account, ok := s.accounts[ownerID]
	if !ok {
		now := time.Now()
		account = &models.CreditAccount{
			OwnerID:   ownerID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.accounts[ownerID] = account
	}
	return account
}
