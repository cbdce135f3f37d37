package mediation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle position of a mediation dialog.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateResult  State = "result"
	StateFailed  State = "failed"
)

// Mediator performs one mediation. *Service satisfies it.
type Mediator interface {
	Mediate(ctx context.Context, req Request) (Result, error)
}

// DialogView is a consistent copy of a dialog's state.
type DialogView struct {
	ID     string  `json:"id"`
	State  State   `json:"state"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Dialog tracks one user's mediation form. At most one submission is pending at
// a time; a reset invalidates whatever is pending.
type Dialog struct {
	mu         sync.Mutex
	id         string
	state      State
	generation uint64
	result     *Result
	failure    string
}

func NewDialog(id string) *Dialog {
	return &Dialog{id: id, state: StateIdle}
}

func (d *Dialog) ID() string { return d.id }

func (d *Dialog) View() DialogView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewLocked()
}

// Submit runs m for req. Validation errors leave the dialog where it was; a
// mediation failure moves it to Failed with the generic notice.
func (d *Dialog) Submit(ctx context.Context, m Mediator, req Request) (DialogView, error) {
	d.mu.Lock()
	if d.state == StateLoading {
		v := d.viewLocked()
		d.mu.Unlock()
		return v, ErrInFlight
	}
	if err := req.Validate(); err != nil {
		v := d.viewLocked()
		d.mu.Unlock()
		return v, err
	}
	d.state = StateLoading
	d.result = nil
	d.failure = ""
	gen := d.generation
	d.mu.Unlock()

	res, err := m.Mediate(ctx, req)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.generation != gen {
		return d.viewLocked(), ErrDialogReset
	}
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			d.state = StateIdle
			return d.viewLocked(), err
		}
		d.state = StateFailed
		d.failure = FailureNotice
		return d.viewLocked(), err
	}
	d.state = StateResult
	d.result = &res
	return d.viewLocked(), nil
}

// Reset returns the dialog to Idle and discards any pending or finished outcome.
func (d *Dialog) Reset() DialogView {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.generation++
	d.state = StateIdle
	d.result = nil
	d.failure = ""
	return d.viewLocked()
}

func (d *Dialog) viewLocked() DialogView {
	v := DialogView{ID: d.id, State: d.state, Error: d.failure}
	if d.result != nil {
		r := *d.result
		v.Result = &r
	}
	return v
}

// DialogStore holds open dialogs per wallet. Results are never persisted.
type DialogStore struct {
	mu          sync.Mutex
	dialogs     map[string]*dialogEntry
	idleTTL     time.Duration
	idGenerator func() string
}

type dialogEntry struct {
	dialog   *Dialog
	owner    string
	lastSeen time.Time
}

func NewDialogStore(idleTTL time.Duration) *DialogStore {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &DialogStore{
		dialogs:     make(map[string]*dialogEntry),
		idleTTL:     idleTTL,
		idGenerator: uuid.NewString,
	}
}

func (s *DialogStore) WithIDGenerator(gen func() string) *DialogStore {
	if gen != nil {
		s.idGenerator = gen
	}
	return s
}

func (s *DialogStore) Open(owner string, now time.Time) *Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictLocked(now)
	d := NewDialog(s.idGenerator())
	s.dialogs[d.ID()] = &dialogEntry{dialog: d, owner: normalizeOwner(owner), lastSeen: now}
	return d
}

func (s *DialogStore) Get(id, owner string, now time.Time) (*Dialog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.dialogs[id]
	if !ok || e.owner != normalizeOwner(owner) {
		return nil, ErrDialogNotFound
	}
	if now.Sub(e.lastSeen) > s.idleTTL && e.dialog.View().State != StateLoading {
		delete(s.dialogs, id)
		return nil, ErrDialogNotFound
	}
	e.lastSeen = now
	return e.dialog, nil
}

func (s *DialogStore) Close(id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.dialogs[id]
	if !ok || e.owner != normalizeOwner(owner) {
		return ErrDialogNotFound
	}
	e.dialog.Reset()
	delete(s.dialogs, id)
	return nil
}

func (s *DialogStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dialogs)
}

func (s *DialogStore) evictLocked(now time.Time) {
	cutoff := now.Add(-s.idleTTL)
	for id, e := range s.dialogs {
		if e.lastSeen.Before(cutoff) && e.dialog.View().State != StateLoading {
			delete(s.dialogs, id)
		}
	}
}

func normalizeOwner(owner string) string {
	return strings.ToLower(strings.TrimSpace(owner))
}
