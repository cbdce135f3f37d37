package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"sutradharx/escrow"
	"sutradharx/mediation"
)

// fieldValues holds valid and invalid raw inputs per field; index 0 is always valid.
var fieldValues = map[escrow.Field][]string{
	escrow.FieldPayerName:   {"Rohan", "R", ""},
	escrow.FieldPayerUPI:    {"rohan@upi", "rohan", "a b@upi"},
	escrow.FieldPayerWallet: {"0x1234567890abcdef", "0x12", ""},
	escrow.FieldPayeeName:   {"Priya", "P"},
	escrow.FieldPayeeUPI:    {"priya.k@okbank", "priya@"},
	escrow.FieldPayeeWallet: {"0xfedcba0987654321", "short"},
	escrow.FieldAmount:      {"5000", "-5", "abc", "0", "12.75"},
	escrow.FieldTerms:       {"Deliver 100 widgets by June 1, inspected on arrival.", "too short"},
}

// RNG is a goroutine-safe random source shared by the actors of one run.
type RNG struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRNG(seed int64) *RNG { return &RNG{r: rand.New(rand.NewSource(seed))} }

func (g *RNG) Intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.r.Intn(n)
}

func pause(rng *RNG, base int) {
	time.Sleep(time.Duration(base+rng.Intn(base)) * time.Millisecond)
}

func stopped(ctx context.Context, stop <-chan struct{}) (bool, error) {
	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case <-stop:
		return true, nil
	default:
		return false, nil
	}
}

// WizardWalker drives drafts for owner through random edits and transitions,
// submitting whenever it reaches the review step. It fails on any error the
// wizard should never produce and on broken navigation.
func WizardWalker(ctx context.Context, svc *escrow.Service, owner string, rng *RNG, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		if err := walkOnce(ctx, svc, owner, rng); err != nil {
			return err
		}
		pause(rng, 2)
	}
}

func walkOnce(ctx context.Context, svc *escrow.Service, owner string, rng *RNG) error {
	snap := svc.Start(owner)
	id := snap.ID
	defer func() { _ = svc.Discard(owner, id) }()

	for i := 0; i < 20; i++ {
		switch rng.Intn(4) {
		case 0, 1:
			raw := map[string]string{}
			for _, f := range snap.Step.Fields() {
				vals := fieldValues[f]
				v := vals[0]
				if rng.Intn(4) == 0 {
					v = vals[rng.Intn(len(vals))]
				}
				raw[string(f)] = v
			}
			next, err := svc.SetFields(owner, id, raw)
			if err != nil {
				return fmt.Errorf("set fields: %w", err)
			}
			snap = next
		case 2:
			before := snap.Step
			next, err := svc.Next(owner, id)
			var verr *escrow.ValidationError
			switch {
			case err == nil:
				if next.Step != before+1 {
					return fmt.Errorf("next from %d landed on %d", before, next.Step)
				}
			case errors.As(err, &verr), errors.Is(err, escrow.ErrLastStep):
				if next.Step != before {
					return fmt.Errorf("failed next moved the wizard from %d to %d", before, next.Step)
				}
			default:
				return fmt.Errorf("next: %w", err)
			}
			snap = next
		case 3:
			before := snap.Step
			next, err := svc.Previous(owner, id)
			if err != nil {
				return fmt.Errorf("previous: %w", err)
			}
			want := before - 1
			if before == escrow.StepParties {
				want = before
			}
			if next.Step != want {
				return fmt.Errorf("previous from %d landed on %d", before, next.Step)
			}
			snap = next
		}

		if snap.Step == escrow.StepReview {
			// every step passed on the way here, so the full draft must validate
			if _, err := svc.Submit(ctx, owner, id); err != nil {
				return fmt.Errorf("submit: %w", err)
			}
			return nil
		}
	}
	return nil
}

// MediationSubmitter keeps submitting req on d. Only the outcomes a dialog is
// allowed to produce are tolerated.
func MediationSubmitter(ctx context.Context, m mediation.Mediator, d *mediation.Dialog, req mediation.Request, rng *RNG, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		view, err := d.Submit(ctx, m, req)
		switch {
		case err == nil:
			if view.State != mediation.StateResult || view.Result == nil {
				return fmt.Errorf("successful submit left dialog %s in %s", d.ID(), view.State)
			}
		case errors.Is(err, mediation.ErrInFlight),
			errors.Is(err, mediation.ErrDialogReset),
			errors.Is(err, mediation.ErrMediationFailed):
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("submit on dialog %s: %w", d.ID(), err)
		}
		pause(rng, 5)
	}
}

// Resetter resets d at random intervals so late results must be discarded.
func Resetter(ctx context.Context, d *mediation.Dialog, rng *RNG, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		if view := d.Reset(); view.State != mediation.StateIdle || view.Result != nil {
			return fmt.Errorf("reset left dialog %s in %s", d.ID(), view.State)
		}
		pause(rng, 20)
	}
}

// Reader lists escrows for owner page by page. Connection errors caused by
// chaos are counted, not returned.
func Reader(ctx context.Context, repo escrow.Repository, owner string, errs *Counter, rng *RNG, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		recs, total, err := repo.List(ctx, escrow.ListFilters{WalletAddress: owner, Page: 1 + rng.Intn(3), PageSize: 2})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs.Inc()
		} else {
			if len(recs) > 2 || len(recs) > total {
				return fmt.Errorf("page of %d records with total %d", len(recs), total)
			}
			for i := 1; i < len(recs); i++ {
				if recs[i].CreatedAt.After(recs[i-1].CreatedAt) {
					return fmt.Errorf("escrows not ordered newest first: %s before %s", recs[i-1].ID, recs[i].ID)
				}
			}
		}
		pause(rng, 10)
	}
}

// Counter is a tiny mutex-guarded tally.
type Counter struct {
	mu sync.Mutex
	n  int
}

func (c *Counter) Inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
