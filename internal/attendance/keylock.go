package attendance

import (
	"sync"

	"presence/internal/domain"
)

// keyLock serializes mutations per (subject, occasion) pair. Entries are
// reference counted so the map does not grow with every pair ever marked.
type keyLock struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{entries: make(map[string]*lockEntry)}
}

func pairKey(subjectID domain.SubjectID, occasionID domain.OccasionID) string {
	return string(subjectID) + "\x00" + string(occasionID)
}

// Lock acquires the pair lock and returns its release function.
func (l *keyLock) Lock(subjectID domain.SubjectID, occasionID domain.OccasionID) func() {
	key := pairKey(subjectID, occasionID)

	l.mu.Lock()
	entry := l.entries[key]
	if entry == nil {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}
