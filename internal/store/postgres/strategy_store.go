package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jarrettlin/execcore/internal/domain"
)

// StrategyStore implements domain.StrategyStore.
type StrategyStore struct {
	pool *pgxpool.Pool
}

func NewStrategyStore(pool *pgxpool.Pool) *StrategyStore {
	return &StrategyStore{pool: pool}
}

func (s *StrategyStore) Upsert(ctx context.Context, rec domain.StrategyRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO strategies (name, priority, active)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET priority = EXCLUDED.priority, active = EXCLUDED.active`,
		rec.Name, rec.Priority, rec.Active,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert strategy: %w", err)
	}
	return nil
}

func (s *StrategyStore) Get(ctx context.Context, name string) (domain.StrategyRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT name, priority, active FROM strategies WHERE name = $1`, name)
	var rec domain.StrategyRecord
	if err := row.Scan(&rec.Name, &rec.Priority, &rec.Active); err != nil {
		if err == pgx.ErrNoRows {
			return domain.StrategyRecord{}, domain.ErrNotFound
		}
		return domain.StrategyRecord{}, fmt.Errorf("postgres: get strategy: %w", err)
	}
	return rec, nil
}

func (s *StrategyStore) ListActive(ctx context.Context) ([]domain.StrategyRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, priority, active FROM strategies WHERE active = TRUE ORDER BY priority DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active strategies: %w", err)
	}
	defer rows.Close()

	var out []domain.StrategyRecord
	for rows.Next() {
		var rec domain.StrategyRecord
		if err := rows.Scan(&rec.Name, &rec.Priority, &rec.Active); err != nil {
			return nil, fmt.Errorf("postgres: scan strategy: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
