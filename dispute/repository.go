package dispute

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ListFilters struct {
	WalletAddress string
	EscrowID      string
}

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Record, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Record, error) {
	query := `
		SELECT d.id, d.escrow_id, d.status, d.parties, d.created_at
		FROM disputes d
		JOIN escrows e ON e.id = d.escrow_id
		WHERE (lower(e.payer_wallet) = lower($1) OR lower(e.payee_wallet) = lower($1))
	`
	args := []any{filters.WalletAddress}
	if filters.EscrowID != "" {
		query += " AND d.escrow_id = $2"
		args = append(args, filters.EscrowID)
	}
	query += " ORDER BY d.created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 8)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EscrowID, &rec.Status, &rec.Parties, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}

type StaticRecord struct {
	Record
	Wallets []string
}

// StaticRepository serves a fixed collection; the zero value is empty.
type StaticRepository struct {
	Records []StaticRecord
}

func (r StaticRepository) List(_ context.Context, filters ListFilters) ([]Record, error) {
	out := make([]Record, 0, len(r.Records))
	for _, rec := range r.Records {
		if filters.EscrowID != "" && rec.EscrowID != filters.EscrowID {
			continue
		}
		for _, w := range rec.Wallets {
			if strings.EqualFold(w, filters.WalletAddress) {
				out = append(out, rec.Record)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
