package escrow

import (
	"context"
	"math"
	"testing"
	"time"

	"sutradharx/test/infra"
)

func TestPGRepositoryList_Integration(t *testing.T) {
	pool := infra.Postgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const (
		alice = "0x00000000000000000000000000000000000000000000000000000000000000a1"
		bob   = "0x00000000000000000000000000000000000000000000000000000000000000b2"
		carol = "0x00000000000000000000000000000000000000000000000000000000000000c3"
		dave  = "0x00000000000000000000000000000000000000000000000000000000000000d4"
	)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seed := []struct {
		id, payerWallet, payeeWallet, status string
		amount                               float64
		at                                   time.Time
	}{
		{"ESC-001", alice, bob, "Active", 5000, base},
		{"ESC-002", bob, alice, "Completed", 1250.5, base.Add(time.Hour)},
		{"ESC-003", bob, carol, "Active", 900, base.Add(2 * time.Hour)},
		{"ESC-004", "0x00000000000000000000000000000000000000000000000000000000000000D4", carol, "Active", 75, base.Add(3 * time.Hour)},
	}
	for _, s := range seed {
		_, err := pool.Exec(ctx, `
			INSERT INTO escrows (id, payer_name, payer_upi, payer_wallet, payee_name, payee_upi, payee_wallet, amount, status, created_at)
			VALUES ($1, 'Rohan', 'rohan@upi', $2, 'Priya', 'priya@upi', $3, $4, $5, $6)
		`, s.id, s.payerWallet, s.payeeWallet, s.amount, s.status, s.at)
		if err != nil {
			t.Fatalf("seed %s: %v", s.id, err)
		}
	}

	repo := NewPGRepository(pool)

	recs, total, err := repo.List(ctx, ListFilters{WalletAddress: alice})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(recs) != 2 {
		t.Fatalf("expected 2 escrows for alice, got total=%d len=%d", total, len(recs))
	}
	if recs[0].ID != "ESC-002" || recs[0].Amount != 1250.5 || recs[0].Status != StatusCompleted {
		t.Fatalf("unexpected newest record: %+v", recs[0])
	}
	if recs[1].Payer.Name != "Rohan" || recs[1].Payee.UPI != "priya@upi" {
		t.Fatalf("unexpected parties: %+v", recs[1])
	}

	_, active, err := repo.List(ctx, ListFilters{WalletAddress: alice, Status: StatusActive})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if active != 1 {
		t.Fatalf("expected 1 active escrow, got %d", active)
	}

	recs, total, err = repo.List(ctx, ListFilters{WalletAddress: bob, Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if total != 3 || len(recs) != 1 || recs[0].ID != "ESC-001" {
		t.Fatalf("unexpected page 2: total=%d %+v", total, recs)
	}

	recs, total, err = repo.List(ctx, ListFilters{WalletAddress: dave})
	if err != nil {
		t.Fatalf("list mixed-case wallet: %v", err)
	}
	if total != 1 || len(recs) != 1 || recs[0].ID != "ESC-004" {
		t.Fatalf("expected stored wallet case to be ignored, got total=%d %+v", total, recs)
	}

	recs, total, err = repo.List(ctx, ListFilters{WalletAddress: alice, Page: math.MaxInt/20 + 2, PageSize: 20})
	if err != nil {
		t.Fatalf("list huge page: %v", err)
	}
	if total != 2 || len(recs) != 0 {
		t.Fatalf("expected empty huge page, got total=%d %+v", total, recs)
	}
}
