package memory

import (
	"context"
	"sync"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/repository/common"
)

// IdentityStore справочник субъектов в памяти.
type IdentityStore struct {
	mu       sync.RWMutex
	subjects map[string]models.Subject
}

func NewIdentityStore(subjects ...models.Subject) *IdentityStore {
	s := &IdentityStore{subjects: make(map[string]models.Subject, len(subjects))}
	for _, subj := range subjects {
		s.subjects[subj.ID] = subj
	}
	return s
}

// Put добавляет или заменяет субъекта.
func (s *IdentityStore) Put(subject models.Subject) {
	s.mu.Lock()
	s.subjects[subject.ID] = subject
	s.mu.Unlock()
}

func (s *IdentityStore) Lookup(ctx context.Context, subjectID string) (*models.Subject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	subj, ok := s.subjects[subjectID]
	if !ok {
		return nil, common.ErrSubjectNotFound
	}
	return &subj, nil
}

func (s *IdentityStore) MarkVerified(ctx context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	subj, ok := s.subjects[subjectID]
	if !ok {
		return common.ErrSubjectNotFound
	}
	subj.Verified = true
	s.subjects[subjectID] = subj
	return nil
}
