package transaction

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ListFilters narrows the ledger to the escrows a wallet takes part in.
type ListFilters struct {
	WalletAddress string
	Status        Status
	Page          int
	PageSize      int
}

func (f *ListFilters) normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = 20
	}
	// Keeps (Page-1)*PageSize from overflowing.
	if maxPage := math.MaxInt / f.PageSize; f.Page > maxPage {
		f.Page = maxPage
	}
}

func (f ListFilters) offset() int {
	return (f.Page - 1) * f.PageSize
}

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Record, int, error)
}

// PGRepository provides read access to the transactions table.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Record, int, error) {
	filters.normalize()

	const query = `
		SELECT t.id, t.escrow_id, t.amount::float8, t.status, t.type, t.created_at
		FROM transactions t
		JOIN escrows e ON e.id = t.escrow_id
		WHERE (lower(e.payer_wallet) = lower($1) OR lower(e.payee_wallet) = lower($1))
		  AND ($2::text = '' OR t.status = $2::text)
		ORDER BY t.created_at DESC
		LIMIT $3 OFFSET $4
	`

	status := string(filters.Status)
	rows, err := r.pool.Query(ctx, query, filters.WalletAddress, status, filters.PageSize, filters.offset())
	if err != nil {
		return nil, 0, fmt.Errorf("transaction: list: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EscrowID, &rec.Amount, &rec.Status, &rec.Type, &rec.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("transaction: scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("transaction: iterate: %w", err)
	}

	const countQuery = `
		SELECT COUNT(*)
		FROM transactions t
		JOIN escrows e ON e.id = t.escrow_id
		WHERE (lower(e.payer_wallet) = lower($1) OR lower(e.payee_wallet) = lower($1))
		  AND ($2::text = '' OR t.status = $2::text)
	`
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, filters.WalletAddress, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("transaction: count: %w", err)
	}
	return records, total, nil
}

// StaticRecord pairs a placeholder entry with the wallets that may see it.
type StaticRecord struct {
	Record
	Wallets []string
}

// StaticRepository serves a fixed collection; the zero value is empty.
type StaticRepository struct {
	Records []StaticRecord
}

func (r StaticRepository) List(_ context.Context, filters ListFilters) ([]Record, int, error) {
	filters.normalize()

	matched := []Record{}
	for _, rec := range r.Records {
		if filters.Status != "" && rec.Status != filters.Status {
			continue
		}
		for _, w := range rec.Wallets {
			if strings.EqualFold(w, filters.WalletAddress) {
				matched = append(matched, rec.Record)
				break
			}
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	start := filters.offset()
	if start >= total {
		return []Record{}, total, nil
	}
	end := start + filters.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}
