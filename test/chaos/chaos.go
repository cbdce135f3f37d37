package chaos

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sutradharx/mediation"
)

// TerminateRandomBackend periodically kills a random connection to the test
// database so repository reads see dropped backends.
func TerminateRandomBackend(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if rand.Intn(5) == 0 {
				_, _ = pool.Exec(ctx, `SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = current_database() AND pid <> pg_backend_pid() ORDER BY random() LIMIT 1`)
			}
		}
	}
}

var dialogTag = regexp.MustCompile(`dialog=(\S+)`)

var errInjected = errors.New("chaos: injected completion failure")

// FlakyCompleter stands in for the completion service. It answers slowly, fails,
// returns malformed or incomplete JSON at random, and records how many calls
// were in flight at once per dialog. Requests are attributed to a dialog by a
// "dialog=<id>" tag in the evidence.
type FlakyCompleter struct {
	mu       sync.Mutex
	rng      *rand.Rand
	inFlight map[string]int
	peak     map[string]int
	calls    int
}

func NewFlakyCompleter(seed int64) *FlakyCompleter {
	return &FlakyCompleter{
		rng:      rand.New(rand.NewSource(seed)),
		inFlight: map[string]int{},
		peak:     map[string]int{},
	}
}

func (f *FlakyCompleter) Complete(ctx context.Context, prompt string, _ []mediation.OutputField) (string, error) {
	key := "untagged"
	if m := dialogTag.FindStringSubmatch(prompt); m != nil {
		key = m[1]
	}

	f.mu.Lock()
	f.calls++
	f.inFlight[key]++
	if f.inFlight[key] > f.peak[key] {
		f.peak[key] = f.inFlight[key]
	}
	mode := f.rng.Intn(6)
	delay := time.Duration(5+f.rng.Intn(40)) * time.Millisecond
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight[key]--
		f.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(delay):
	}

	switch mode {
	case 0:
		return "", errInjected
	case 1:
		return `{"summary": "cut off`, nil
	case 2:
		return `{"summary":"Both parties agree on the facts."}`, nil
	default:
		return `{"summary":"Delivery was partial and late.","suggestedResolution":"Release 60% to the payee and refund the rest."}`, nil
	}
}

// Peaks returns the highest concurrent call count seen per dialog.
func (f *FlakyCompleter) Peaks() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.peak))
	for k, v := range f.peak {
		out[k] = v
	}
	return out
}

func (f *FlakyCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
