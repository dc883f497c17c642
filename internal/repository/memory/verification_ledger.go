package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/repository/common"
)

// VerificationLedger хранит записи верификации в памяти.
type VerificationLedger struct {
	keys    *keyedLocker
	mu      sync.RWMutex
	records map[string]*models.VerificationRecord
}

func NewVerificationLedger() *VerificationLedger {
	return &VerificationLedger{
		keys:    newKeyedLocker(),
		records: make(map[string]*models.VerificationRecord),
	}
}

func (l *VerificationLedger) Get(ctx context.Context, subjectID string) (*models.VerificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[subjectID]
	if !ok {
		return nil, common.ErrVerificationNotFound
	}
	return rec.Clone(), nil
}

func (l *VerificationLedger) Modify(ctx context.Context, subjectID string, fn func(current *models.VerificationRecord) (*models.VerificationRecord, error)) (*models.VerificationRecord, error) {
	unlock := l.keys.Lock(subjectID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	current := l.records[subjectID].Clone()
	l.mu.RUnlock()

	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}

	stored := next.Clone()
	stored.SubjectID = subjectID
	now := time.Now()
	if current == nil {
		stored.Version = 1
		stored.CreatedAt = now
	} else {
		stored.Version = current.Version + 1
		stored.CreatedAt = current.CreatedAt
	}
	stored.UpdatedAt = now

	l.mu.Lock()
	l.records[subjectID] = stored
	l.mu.Unlock()
	return stored.Clone(), nil
}

func (l *VerificationLedger) Delete(ctx context.Context, subjectID string) error {
	unlock := l.keys.Lock(subjectID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[subjectID]; !ok {
		return common.ErrVerificationNotFound
	}
	delete(l.records, subjectID)
	return nil
}
