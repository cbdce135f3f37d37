package escrow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Observer receives wizard transition outcomes, typically for metrics.
type Observer interface {
	ObserveWizard(transition, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveWizard(string, string) {}

// Service exposes the wizard flow and the read-only escrow listing.
type Service struct {
	repo        Repository
	deployer    Deployer
	wizards     *Store
	observer    Observer
	idGenerator func() string
	now         func() time.Time
}

func NewService(repo Repository, deployer Deployer, wizards *Store) *Service {
	if repo == nil {
		repo = StaticRepository{}
	}
	if wizards == nil {
		wizards = NewStore(0)
	}
	return &Service{
		repo:        repo,
		deployer:    deployer,
		wizards:     wizards,
		observer:    nopObserver{},
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithObserver(o Observer) *Service {
	if o != nil {
		s.observer = o
	}
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Start creates an empty draft for owner.
func (s *Service) Start(owner string) Snapshot {
	now := s.now()
	w := NewWizard(s.idGenerator(), now)
	s.wizards.Put(owner, w, now)
	s.observer.ObserveWizard("start", "ok")
	return w.Snapshot()
}

func (s *Service) Get(owner, id string) (Snapshot, error) {
	w, err := s.wizards.Get(id, owner, s.now())
	if err != nil {
		return Snapshot{}, err
	}
	return w.Snapshot(), nil
}

func (s *Service) SetFields(owner, id string, raw map[string]string) (Snapshot, error) {
	w, err := s.wizards.Get(id, owner, s.now())
	if err != nil {
		return Snapshot{}, err
	}
	if err := w.SetFields(raw, s.now()); err != nil {
		return Snapshot{}, err
	}
	return w.Snapshot(), nil
}

func (s *Service) Next(owner, id string) (Snapshot, error) {
	w, err := s.wizards.Get(id, owner, s.now())
	if err != nil {
		return Snapshot{}, err
	}
	if _, err := w.Next(); err != nil {
		s.observer.ObserveWizard("next", outcome(err))
		return w.Snapshot(), err
	}
	s.observer.ObserveWizard("next", "ok")
	return w.Snapshot(), nil
}

func (s *Service) Previous(owner, id string) (Snapshot, error) {
	w, err := s.wizards.Get(id, owner, s.now())
	if err != nil {
		return Snapshot{}, err
	}
	w.Previous()
	s.observer.ObserveWizard("previous", "ok")
	return w.Snapshot(), nil
}

func (s *Service) Review(owner, id string) (ReviewView, error) {
	w, err := s.wizards.Get(id, owner, s.now())
	if err != nil {
		return ReviewView{}, err
	}
	return w.Review()
}

// Submit hands the completed draft to the deployer. A submitted draft is
// terminal, so the service drops it from the store.
func (s *Service) Submit(ctx context.Context, owner, id string) (Draft, error) {
	w, err := s.wizards.Get(id, owner, s.now())
	if err != nil {
		return Draft{}, err
	}
	d, err := w.Submit(ctx, s.deployer)
	if err != nil {
		s.observer.ObserveWizard("submit", outcome(err))
		return Draft{}, err
	}
	_ = s.wizards.Delete(id, owner)
	s.observer.ObserveWizard("submit", "ok")
	return d, nil
}

// Discard drops a draft, as when the user navigates away.
func (s *Service) Discard(owner, id string) error {
	return s.wizards.Delete(id, owner)
}

// List returns the escrows the wallet participates in.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Record, int, error) {
	return s.repo.List(ctx, filters)
}

func outcome(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrDeployFailed):
		return "deploy_failed"
	default:
		return "rejected"
	}
}
