package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store is the key -> state store behind the dispatcher. Transition must
// reject moves that CanTransition forbids with ErrInvalidTransition.
type Store interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	Transition(ctx context.Context, id string, to Status, errMsg string, at time.Time) (Job, error)
	Ping(ctx context.Context) error
}

type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

func (s *MemoryStore) Create(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

func (s *MemoryStore) Transition(_ context.Context, id string, to Status, errMsg string, at time.Time) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	if !CanTransition(job.Status, to) {
		return job, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, to)
	}
	job.Status = to
	job.Error = errMsg
	job.UpdatedAt = at
	s.jobs[id] = job
	return job, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
