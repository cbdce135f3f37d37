package transaction

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

	const wallet = "0x00000000000000000000000000000000000000000000000000000000000000a1"
	if _, err := pool.Exec(ctx, `
		INSERT INTO escrows (id, payer_name, payer_upi, payer_wallet, payee_name, payee_upi, payee_wallet, amount, status)
		VALUES ('ESC-001', 'Rohan', 'rohan@upi', $1, 'Priya', 'priya@upi', '0xb2', 5000, 'Active'),
		       ('ESC-009', 'Meera', 'meera@upi', '0xc3', 'Dev', 'dev@upi', '0xd4', 100, 'Active')
	`, wallet); err != nil {
		t.Fatalf("seed escrows: %v", err)
	}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if _, err := pool.Exec(ctx, `
		INSERT INTO transactions (id, escrow_id, amount, status, type, created_at)
		VALUES ('TXN-1', 'ESC-001', 5000, 'Completed', 'Deposit', $1),
		       ('TXN-2', 'ESC-001', 5000, 'Pending', 'Release', $2),
		       ('TXN-3', 'ESC-009', 100, 'Completed', 'Deposit', $2)
	`, base, base.Add(time.Hour)); err != nil {
		t.Fatalf("seed transactions: %v", err)
	}

	repo := NewPGRepository(pool)

	recs, total, err := repo.List(ctx, ListFilters{WalletAddress: wallet})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(recs) != 2 || recs[0].ID != "TXN-2" || recs[0].Type != TypeRelease {
		t.Fatalf("unexpected ledger: total=%d %+v", total, recs)
	}

	_, completed, err := repo.List(ctx, ListFilters{WalletAddress: wallet, Status: StatusCompleted})
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if completed != 1 {
		t.Fatalf("expected 1 completed transaction, got %d", completed)
	}

	_, total, err = repo.List(ctx, ListFilters{WalletAddress: "0xD4"})
	if err != nil {
		t.Fatalf("list mixed-case wallet: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected wallet case to be ignored, got %d", total)
	}

	recs, total, err = repo.List(ctx, ListFilters{WalletAddress: wallet, Page: math.MaxInt/20 + 2, PageSize: 20})
	if err != nil {
		t.Fatalf("list huge page: %v", err)
	}
	if total != 2 || len(recs) != 0 {
		t.Fatalf("expected empty huge page, got total=%d %+v", total, recs)
	}
}
