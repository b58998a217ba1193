package verify

import (
	"context"
	"sync"

	"presence/internal/domain"
	"presence/pkg/platform/sentinel"
)

// Directory resolves enrolled subjects. Enrollment itself is owned by an
// external registration flow; the engine only reads subjects to pick up
// per-subject threshold overrides.
type Directory interface {
	Subject(ctx context.Context, id domain.SubjectID) (domain.Subject, error)
}

// InMemoryDirectory is a static subject set for single-process deployments
// and tests.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	subjects map[domain.SubjectID]domain.Subject
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{subjects: make(map[domain.SubjectID]domain.Subject)}
}

func (d *InMemoryDirectory) Enroll(subject domain.Subject) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subjects[subject.ID] = subject
}

func (d *InMemoryDirectory) Subject(_ context.Context, id domain.SubjectID) (domain.Subject, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if subject, ok := d.subjects[id]; ok {
		return subject, nil
	}
	return domain.Subject{}, sentinel.ErrNotFound
}
