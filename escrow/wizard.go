package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrUnknownField     = errors.New("escrow: unknown field")
	ErrLastStep         = errors.New("escrow: already at the last step")
	ErrNotAtReview      = errors.New("escrow: draft is not at the review step")
	ErrAlreadySubmitted = errors.New("escrow: draft already submitted")
	ErrSubmitting       = errors.New("escrow: draft is being deployed")
	ErrDeployFailed     = errors.New("escrow: contract deployment failed")
)

// Wizard is the in-memory state machine behind the three-step escrow form.
// Raw field text is kept verbatim so navigating back and forth never alters it.
type Wizard struct {
	mu         sync.Mutex
	id         string
	current    Step
	values     map[Field]string
	submitting bool
	submitted  bool
	createdAt  time.Time
	updatedAt  time.Time
}

// Snapshot is a point-in-time copy of the wizard state.
type Snapshot struct {
	ID        string
	Step      Step
	Values    map[Field]string
	Submitted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReviewView is what the review step renders.
type ReviewView struct {
	Payer         Party
	Payee         Party
	Amount        float64
	AmountDisplay string
	Terms         string
}

// NewWizard creates an empty draft positioned at the Parties step.
func NewWizard(id string, now time.Time) *Wizard {
	values := make(map[Field]string, len(validators))
	for f := range validators {
		values[f] = ""
	}
	return &Wizard{
		id:        id,
		current:   StepParties,
		values:    values,
		createdAt: now,
		updatedAt: now,
	}
}

func (w *Wizard) ID() string { return w.id }

// Current returns the active step.
func (w *Wizard) Current() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Snapshot copies the wizard state.
func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Wizard) snapshotLocked() Snapshot {
	values := make(map[Field]string, len(w.values))
	for k, v := range w.values {
		values[k] = v
	}
	return Snapshot{
		ID:        w.id,
		Step:      w.current,
		Values:    values,
		Submitted: w.submitted,
		CreatedAt: w.createdAt,
		UpdatedAt: w.updatedAt,
	}
}

// Set stores the raw text for a field. It never validates or moves the step.
func (w *Wizard) Set(field Field, raw string) error {
	return w.SetFields(map[string]string{string(field): raw}, time.Now())
}

// SetFields applies several raw values at once. Either all names are known and
// every value is stored, or nothing changes.
func (w *Wizard) SetFields(raw map[string]string, now time.Time) error {
	parsed := make(map[Field]string, len(raw))
	for name, v := range raw {
		f, err := ParseField(name)
		if err != nil {
			return err
		}
		parsed[f] = v
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitted {
		return ErrAlreadySubmitted
	}
	if w.submitting {
		return ErrSubmitting
	}
	for f, v := range parsed {
		w.values[f] = v
	}
	w.updatedAt = now
	return nil
}

// Next validates only the current step's fields and advances one step on success.
// On failure the step is unchanged and the returned *ValidationError names the
// first invalid field.
func (w *Wizard) Next() (Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current >= StepReview {
		return w.current, ErrLastStep
	}
	if verr := validateFields(w.values, steps[w.current].fields); verr != nil {
		return w.current, verr
	}
	w.current++
	return w.current, nil
}

// Previous moves back one step without validating. At the first step, or while
// a deployment is running, it is a no-op.
func (w *Wizard) Previous() Step {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current > StepParties && !w.submitting {
		w.current--
	}
	return w.current
}

// Review validates the whole draft and renders it. Only valid at the Review step.
func (w *Wizard) Review() (ReviewView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current != StepReview {
		return ReviewView{}, ErrNotAtReview
	}
	d, err := w.draftLocked()
	if err != nil {
		return ReviewView{}, err
	}
	return ReviewView{
		Payer:         d.Payer,
		Payee:         d.Payee,
		Amount:        d.Amount,
		AmountDisplay: FormatINR(d.Amount),
		Terms:         d.Terms,
	}, nil
}

// Submit validates the complete draft and hands it to the deployer exactly once.
// The lock is released while the deployer runs, so readers are not blocked;
// edits and a second Submit get ErrSubmitting until it returns.
// The wizard does not transition afterwards; the caller clears it.
func (w *Wizard) Submit(ctx context.Context, deployer Deployer) (Draft, error) {
	w.mu.Lock()
	if w.submitted {
		w.mu.Unlock()
		return Draft{}, ErrAlreadySubmitted
	}
	if w.submitting {
		w.mu.Unlock()
		return Draft{}, ErrSubmitting
	}
	if w.current != StepReview {
		w.mu.Unlock()
		return Draft{}, ErrNotAtReview
	}
	d, err := w.draftLocked()
	if err != nil {
		w.mu.Unlock()
		return Draft{}, err
	}
	w.submitting = true
	w.mu.Unlock()

	deployErr := deployer.Deploy(ctx, d)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if deployErr != nil {
		return Draft{}, fmt.Errorf("%w: %w", ErrDeployFailed, deployErr)
	}
	w.submitted = true
	return d, nil
}

func (w *Wizard) draftLocked() (Draft, error) {
	if verr := validateFields(w.values, AllFields()); verr != nil {
		return Draft{}, verr
	}
	amount, _ := coerceAmount(w.values[FieldAmount])
	return Draft{
		Payer: Party{
			Name:          w.values[FieldPayerName],
			UPIID:         w.values[FieldPayerUPI],
			WalletAddress: w.values[FieldPayerWallet],
		},
		Payee: Party{
			Name:          w.values[FieldPayeeName],
			UPIID:         w.values[FieldPayeeUPI],
			WalletAddress: w.values[FieldPayeeWallet],
		},
		Amount: amount,
		Terms:  w.values[FieldTerms],
	}, nil
}
