package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/repository/common"
)

// EscrowStore хранит сделки в памяти. Журнал только дополняется.
type EscrowStore struct {
	keys  *keyedLocker
	mu    sync.RWMutex
	items map[uuid.UUID]*models.EscrowTransaction
}

func NewEscrowStore() *EscrowStore {
	return &EscrowStore{
		keys:  newKeyedLocker(),
		items: make(map[uuid.UUID]*models.EscrowTransaction),
	}
}

func (s *EscrowStore) Create(ctx context.Context, t *models.EscrowTransaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[t.ID]; ok {
		return common.ErrAlreadyExists
	}
	stored := t.Clone()
	for i := range stored.History {
		stored.History[i].TransactionID = t.ID
	}
	s.items[t.ID] = stored
	return nil
}

func (s *EscrowStore) Get(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.items[id]
	if !ok {
		return nil, common.ErrEscrowNotFound
	}
	return t.Clone(), nil
}

func (s *EscrowStore) Modify(ctx context.Context, id uuid.UUID, fn func(current *models.EscrowTransaction) (*models.StateHistoryEntry, error)) (*models.EscrowTransaction, error) {
	unlock := s.keys.Lock(id.String())
	defer unlock()

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	entry, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return current, nil
	}

	appended := *entry
	appended.TransactionID = id
	appended.Seq = len(current.History) + 1
	current.History = append(current.History, appended)
	current.State = appended.State
	current.Version++
	current.UpdatedAt = appended.At

	s.mu.Lock()
	s.items[id] = current.Clone()
	s.mu.Unlock()
	return current, nil
}

func (s *EscrowStore) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.EscrowTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var matched []models.EscrowTransaction
	for _, t := range s.items {
		if t.BuyerID == userID || t.SellerID == userID {
			matched = append(matched, *t.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return []models.EscrowTransaction{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}
