package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"sutradharx/escrow"
	"sutradharx/mediation"
	"sutradharx/test/actors"
	"sutradharx/test/chaos"
	"sutradharx/test/infra"
	"sutradharx/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 5*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent actors")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

const stressOwner = "0x00000000000000000000000000000000000000000000000000000000000000a1"

func TestWizardAndMediationConcurrency(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test skipped in -short mode")
	}
	seed := *flSeed
	rng := actors.NewRNG(seed)

	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	deployments := &oracles.DeploymentLog{}
	escrows := escrow.NewService(nil, deployments, escrow.NewStore(time.Minute))

	completer := chaos.NewFlakyCompleter(seed)
	mediator := mediation.NewService(completer, 200*time.Millisecond, nil)
	dialogs := mediation.NewDialogStore(time.Minute)

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	var guarded []string
	for i := 0; i < *flConcurrency; i++ {
		owner := fmt.Sprintf("0x%064x", i+1)
		g.Go(func() error { return actors.WizardWalker(ctx2, escrows, owner, rng, stop) })

		d := dialogs.Open(owner, time.Now())
		req := mediation.Request{
			ContractTerms: "Deliver 100 widgets by June 1 for 5000 rupees.",
			Evidence:      "Payer says 60 widgets arrived late; payee blames the courier. dialog=" + d.ID(),
		}
		// two submitters per dialog race for the single slot
		g.Go(func() error { return actors.MediationSubmitter(ctx2, mediator, d, req, rng, stop) })
		g.Go(func() error { return actors.MediationSubmitter(ctx2, mediator, d, req, rng, stop) })
		if i%2 == 0 {
			g.Go(func() error { return actors.Resetter(ctx2, d, rng, stop) })
		} else {
			guarded = append(guarded, d.ID())
		}
	}

	checks := []oracles.Oracle{
		oracles.ValidDeployments(deployments),
		oracles.SingleFlight(completer.Peaks, guarded),
	}

	readErrs := &actors.Counter{}
	if pool := stressDatabase(t, ctx); pool != nil {
		seedEscrows(t, ctx, pool)
		repo := escrow.NewPGRepository(pool)
		for i := 0; i < *flConcurrency/2+1; i++ {
			g.Go(func() error { return actors.Reader(ctx2, repo, stressOwner, readErrs, rng, stop) })
		}
		go chaos.TerminateRandomBackend(ctx2, pool, stop)
		checks = append(checks, oracles.ListingMatchesTable(pool, repo, stressOwner))
	}

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx2.Done():
			break loop
		case <-ticker.C:
			name, detail, err := oracles.Run(ctx2, checks)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				// a terminated backend can fail the oracle's own query
				t.Logf("oracle error (seed=%d): %v", seed, err)
				continue
			}
			if name != "" {
				close(stop)
				_ = g.Wait()
				t.Fatalf("Oracle %s failed: %s (seed=%d)", name, detail, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("actors errored: %v (seed=%d)", err, seed)
	}

	name, detail, err := oracles.Run(context.Background(), checks[:2])
	if err != nil || name != "" {
		t.Fatalf("final oracle %s: %s %v (seed=%d)", name, detail, err, seed)
	}
	t.Logf("deployments=%d completions=%d read errors=%d", len(deployments.Drafts()), completer.Calls(), readErrs.Value())
}

// stressDatabase returns a migrated pool when a database is reachable, or nil
// so the run continues with the in-memory actors only.
func stressDatabase(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()
	dsn := *flDSN
	if dsn == "" {
		dsn = os.Getenv("STRESS_TEST_PG_DSN")
	}
	if dsn == "" && !dockerAvailable(ctx) {
		t.Log("no database available, skipping repository readers")
		return nil
	}

	pgC, dsn, err := infra.StartPostgres16(ctx, dsn)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	pool, teardown, err := infra.ApplyMigrations(ctx, dsn)
	if err != nil {
		_ = pgC.Terminate(context.Background())
		t.Fatalf("apply migrations: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
		_ = pgC.Terminate(context.Background())
	})
	return pool
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

func seedEscrows(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		payer, payee := stressOwner, fmt.Sprintf("0x%064x", 1000+i)
		if i%2 == 1 {
			payer, payee = payee, payer
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO escrows (id, payer_name, payer_upi, payer_wallet, payee_name, payee_upi, payee_wallet, amount, status, created_at)
			VALUES ($1, 'Rohan', 'rohan@upi', $2, 'Priya', 'priya@upi', $3, $4, 'Active', $5)
		`, fmt.Sprintf("ESC-%03d", i), payer, payee, 100*(i+1), base.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("seed escrow %d: %v", i, err)
		}
	}
}
