package oracles

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"

	"sutradharx/escrow"
)

// Oracle is one invariant checked over the state a stress run produced. Check
// returns a description of the first violation, or "" when the invariant holds.
type Oracle struct {
	Name  string
	Check func(ctx context.Context) (string, error)
}

// Run executes the oracles in order and returns the first failure (name and
// detail) or an empty name if all pass.
func Run(ctx context.Context, all []Oracle) (string, string, error) {
	for _, o := range all {
		detail, err := o.Check(ctx)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if detail != "" {
			return o.Name, detail, nil
		}
	}
	return "", "", nil
}

// DeploymentLog records every draft handed to a deployer.
type DeploymentLog struct {
	mu     sync.Mutex
	drafts []escrow.Draft
}

func (l *DeploymentLog) Deploy(_ context.Context, d escrow.Draft) error {
	l.mu.Lock()
	l.drafts = append(l.drafts, d)
	l.mu.Unlock()
	return nil
}

func (l *DeploymentLog) Drafts() []escrow.Draft {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]escrow.Draft(nil), l.drafts...)
}

var upi = regexp.MustCompile(`^[\w.-]+@[\w.-]+$`)

// ValidDeployments: no invalid draft ever reaches the deployer.
func ValidDeployments(log *DeploymentLog) Oracle {
	return Oracle{
		Name: "O1_valid_deployments",
		Check: func(context.Context) (string, error) {
			for i, d := range log.Drafts() {
				var bad []string
				for _, p := range []escrow.Party{d.Payer, d.Payee} {
					if utf8.RuneCountInString(p.Name) < 2 {
						bad = append(bad, "name")
					}
					if !upi.MatchString(p.UPIID) {
						bad = append(bad, "upi")
					}
					if utf8.RuneCountInString(p.WalletAddress) < 10 {
						bad = append(bad, "wallet")
					}
				}
				if !(d.Amount > 0) {
					bad = append(bad, "amount="+strconv.FormatFloat(d.Amount, 'f', -1, 64))
				}
				if utf8.RuneCountInString(d.Terms) < 20 {
					bad = append(bad, "terms")
				}
				if len(bad) > 0 {
					return fmt.Sprintf("draft #%d: %s", i, strings.Join(bad, ", ")), nil
				}
			}
			return "", nil
		},
	}
}

// SingleFlight: a dialog that is never reset never has two completion calls
// outstanding. A reset frees the slot while the abandoned call may still run,
// so reset dialogs are not listed.
func SingleFlight(peaks func() map[string]int, dialogs []string) Oracle {
	return Oracle{
		Name: "O2_single_flight_per_dialog",
		Check: func(context.Context) (string, error) {
			seen := peaks()
			for _, dialog := range dialogs {
				if peak := seen[dialog]; peak > 1 {
					return fmt.Sprintf("dialog %s had %d concurrent calls", dialog, peak), nil
				}
			}
			return "", nil
		},
	}
}

// ListingMatchesTable: the repository total for owner agrees with a direct count.
func ListingMatchesTable(pool *pgxpool.Pool, repo escrow.Repository, owner string) Oracle {
	return Oracle{
		Name: "O3_listing_matches_table",
		Check: func(ctx context.Context) (string, error) {
			var want int
			if err := pool.QueryRow(ctx,
				`SELECT COUNT(*) FROM escrows WHERE lower(payer_wallet) = lower($1) OR lower(payee_wallet) = lower($1)`,
				owner).Scan(&want); err != nil {
				return "", err
			}
			_, got, err := repo.List(ctx, escrow.ListFilters{WalletAddress: owner, PageSize: 1})
			if err != nil {
				return "", err
			}
			if got != want {
				return fmt.Sprintf("repository reports %d escrows for %s, table has %d", got, owner, want), nil
			}
			return "", nil
		},
	}
}
