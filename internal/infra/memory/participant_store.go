package memory

import (
	"context"
	"sync"

	"github.com/ilyalazarenkoit/eltis-test/internal/domain"
)

// ParticipantStore is an in-memory implementation of app.ParticipantStore.
// It enforces the same versioned-write contract as the Postgres store so the
// service's conflict-retry path behaves identically in both modes.
type ParticipantStore struct {
	mu           sync.RWMutex
	participants map[string]domain.Participant
}

func NewParticipantStore() *ParticipantStore {
	return &ParticipantStore{participants: make(map[string]domain.Participant)}
}

func (s *ParticipantStore) Get(_ context.Context, id string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return clone(p), nil
}

func (s *ParticipantStore) Create(_ context.Context, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Version = 1
	s.participants[p.ID] = clone(p)
	return nil
}

// Update writes the aggregate only if the caller holds the current version.
func (s *ParticipantStore) Update(_ context.Context, p domain.Participant) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.participants[p.ID]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if current.Version != p.Version {
		return domain.Participant{}, domain.ErrWriteConflict
	}
	p.Version++
	s.participants[p.ID] = clone(p)
	return clone(p), nil
}

// clone detaches the slices so callers cannot alias stored state.
func clone(p domain.Participant) domain.Participant {
	out := p
	out.Answers = append([]domain.AnswerRecord(nil), p.Answers...)
	out.CorrectQuestionIDs = append([]int(nil), p.CorrectQuestionIDs...)
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
