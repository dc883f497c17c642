package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/repository/common"
)

func newInitiated(buyer, seller uuid.UUID, created time.Time) *models.EscrowTransaction {
	return &models.EscrowTransaction{
		ID:          uuid.New(),
		BuyerID:     buyer,
		SellerID:    seller,
		AmountMinor: 150000,
		Currency:    "KZT",
		State:       models.EscrowStateInitiated,
		CreatedAt:   created,
		UpdatedAt:   created,
		History: []models.StateHistoryEntry{
			{Seq: 1, State: models.EscrowStateInitiated, Event: models.EscrowEventCommit, ActorRole: models.ActorBuyer, At: created},
		},
	}
}

func TestEscrowStore_CreateGet(t *testing.T) {
	s := NewEscrowStore()
	tx := newInitiated(uuid.New(), uuid.New(), time.Now())
	require.NoError(t, s.Create(context.Background(), tx))

	got, err := s.Get(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStateInitiated, got.State)
	require.Len(t, got.History, 1)
	assert.Equal(t, tx.ID, got.History[0].TransactionID)

	assert.ErrorIs(t, s.Create(context.Background(), tx), common.ErrAlreadyExists)
}

func TestEscrowStore_GetMissing(t *testing.T) {
	s := NewEscrowStore()
	_, err := s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrEscrowNotFound)
}

func TestEscrowStore_ModifyAppendsHistory(t *testing.T) {
	s := NewEscrowStore()
	tx := newInitiated(uuid.New(), uuid.New(), time.Now())
	require.NoError(t, s.Create(context.Background(), tx))

	at := time.Now().Add(time.Minute)
	got, err := s.Modify(context.Background(), tx.ID, func(current *models.EscrowTransaction) (*models.StateHistoryEntry, error) {
		return &models.StateHistoryEntry{State: models.EscrowStateHeld, Event: models.EscrowEventPaymentCaptured, ActorRole: models.ActorGateway, At: at}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStateHeld, got.State)
	require.Len(t, got.History, 2)
	assert.Equal(t, 2, got.History[1].Seq)
	assert.Equal(t, at, got.UpdatedAt)
}

func TestEscrowStore_ModifyNoChange(t *testing.T) {
	s := NewEscrowStore()
	tx := newInitiated(uuid.New(), uuid.New(), time.Now())
	require.NoError(t, s.Create(context.Background(), tx))

	got, err := s.Modify(context.Background(), tx.ID, func(current *models.EscrowTransaction) (*models.StateHistoryEntry, error) {
		current.State = models.EscrowStateReleased
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStateInitiated, got.State)
	assert.Len(t, got.History, 1)
}

func TestEscrowStore_ConcurrentModifyFromSameState(t *testing.T) {
	s := NewEscrowStore()
	tx := newInitiated(uuid.New(), uuid.New(), time.Now())
	require.NoError(t, s.Create(context.Background(), tx))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := models.EscrowStateHeld
			if i%2 == 0 {
				target = models.EscrowStateCancelled
			}
			_, err := s.Modify(context.Background(), tx.ID, func(current *models.EscrowTransaction) (*models.StateHistoryEntry, error) {
				if current.State != models.EscrowStateInitiated {
					return nil, common.ErrVersionConflict
				}
				return &models.StateHistoryEntry{State: target, At: time.Now()}, nil
			})
			if err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	got, err := s.Get(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Len(t, got.History, 2)
}

func TestEscrowStore_ListByParticipant(t *testing.T) {
	s := NewEscrowStore()
	buyer := uuid.New()
	base := time.Now()

	older := newInitiated(buyer, uuid.New(), base)
	newer := newInitiated(uuid.New(), buyer, base.Add(time.Hour))
	foreign := newInitiated(uuid.New(), uuid.New(), base)
	for _, tx := range []*models.EscrowTransaction{older, newer, foreign} {
		require.NoError(t, s.Create(context.Background(), tx))
	}

	items, err := s.ListByParticipant(context.Background(), buyer, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, newer.ID, items[0].ID)
	assert.Equal(t, older.ID, items[1].ID)

	items, err = s.ListByParticipant(context.Background(), buyer, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, items)
}
