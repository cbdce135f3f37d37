package escrow

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrWizardNotFound signals an unknown, expired or foreign wizard.
var ErrWizardNotFound = errors.New("escrow: wizard not found")

// Store keeps live wizards in memory, keyed by id and owned by one wallet.
// Drafts are never persisted; idle entries are evicted lazily.
type Store struct {
	mu      sync.Mutex
	entries map[string]*storeEntry
	idleTTL time.Duration
	ops     uint64
}

type storeEntry struct {
	wizard   *Wizard
	owner    string
	lastSeen time.Time
}

func NewStore(idleTTL time.Duration) *Store {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Store{
		entries: make(map[string]*storeEntry),
		idleTTL: idleTTL,
	}
}

func (s *Store) Put(owner string, w *Wizard, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[w.ID()] = &storeEntry{wizard: w, owner: normalizeOwner(owner), lastSeen: now}
	s.ops++
	if s.ops%64 == 0 {
		s.evictLocked(now)
	}
}

func (s *Store) Get(id, owner string, now time.Time) (*Wizard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.owner != normalizeOwner(owner) {
		return nil, ErrWizardNotFound
	}
	if now.Sub(e.lastSeen) > s.idleTTL {
		delete(s.entries, id)
		return nil, ErrWizardNotFound
	}
	e.lastSeen = now
	return e.wizard, nil
}

func (s *Store) Delete(id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.owner != normalizeOwner(owner) {
		return ErrWizardNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) evictLocked(now time.Time) {
	cutoff := now.Add(-s.idleTTL)
	for id, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			delete(s.entries, id)
		}
	}
}

func normalizeOwner(owner string) string {
	return strings.ToLower(strings.TrimSpace(owner))
}
