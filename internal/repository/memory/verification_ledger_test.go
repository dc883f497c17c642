package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/repository/common"
)

func seedRecord(t *testing.T, l *VerificationLedger, subjectID string, attempts int) {
	t.Helper()
	now := time.Now()
	_, err := l.Modify(context.Background(), subjectID, func(current *models.VerificationRecord) (*models.VerificationRecord, error) {
		return &models.VerificationRecord{
			CodeHash:          "hash",
			IssuedAt:          now,
			ExpiresAt:         now.Add(time.Minute),
			AttemptsRemaining: attempts,
		}, nil
	})
	require.NoError(t, err)
}

func TestVerificationLedger_GetMissing(t *testing.T) {
	l := NewVerificationLedger()
	_, err := l.Get(context.Background(), "account:missing")
	assert.ErrorIs(t, err, common.ErrVerificationNotFound)
}

func TestVerificationLedger_ModifyCreatesAndBumpsVersion(t *testing.T) {
	l := NewVerificationLedger()
	seedRecord(t, l, "account:1", 5)

	rec, err := l.Get(context.Background(), "account:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, "account:1", rec.SubjectID)

	rec, err = l.Modify(context.Background(), "account:1", func(current *models.VerificationRecord) (*models.VerificationRecord, error) {
		current.AttemptsRemaining--
		return current, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)
	assert.Equal(t, 4, rec.AttemptsRemaining)
}

func TestVerificationLedger_ModifyErrorLeavesRecord(t *testing.T) {
	l := NewVerificationLedger()
	seedRecord(t, l, "account:1", 5)

	_, err := l.Modify(context.Background(), "account:1", func(current *models.VerificationRecord) (*models.VerificationRecord, error) {
		current.AttemptsRemaining = 0
		return nil, common.ErrInvalidInput
	})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	rec, err := l.Get(context.Background(), "account:1")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.AttemptsRemaining)
}

func TestVerificationLedger_ReturnedRecordIsCopy(t *testing.T) {
	l := NewVerificationLedger()
	seedRecord(t, l, "account:1", 5)

	rec, err := l.Get(context.Background(), "account:1")
	require.NoError(t, err)
	rec.AttemptsRemaining = 0

	again, err := l.Get(context.Background(), "account:1")
	require.NoError(t, err)
	assert.Equal(t, 5, again.AttemptsRemaining)
}

func TestVerificationLedger_ConcurrentDecrementsAreSerialized(t *testing.T) {
	l := NewVerificationLedger()
	seedRecord(t, l, "account:1", 50)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Modify(context.Background(), "account:1", func(current *models.VerificationRecord) (*models.VerificationRecord, error) {
				current.AttemptsRemaining--
				return current, nil
			})
		}()
	}
	wg.Wait()

	rec, err := l.Get(context.Background(), "account:1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.AttemptsRemaining)
	assert.Equal(t, int64(51), rec.Version)
}

func TestVerificationLedger_Delete(t *testing.T) {
	l := NewVerificationLedger()
	seedRecord(t, l, "account:1", 5)

	require.NoError(t, l.Delete(context.Background(), "account:1"))
	assert.ErrorIs(t, l.Delete(context.Background(), "account:1"), common.ErrVerificationNotFound)
}

func TestVerificationLedger_DeleteCancelledContext(t *testing.T) {
	l := NewVerificationLedger()
	seedRecord(t, l, "account:1", 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Delete(ctx, "account:1"), context.Canceled)

	_, err := l.Get(context.Background(), "account:1")
	require.NoError(t, err)
}

func TestKeyedLocker_ReleasesKeys(t *testing.T) {
	k := newKeyedLocker()
	unlock := k.Lock("a")
	unlock()
	assert.Empty(t, k.locks)
}
