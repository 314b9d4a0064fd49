// Package postgres provides the PostgreSQL implementation of the outbox
// repository.
package postgres

import (
	"context"
	"fmt"

	"github.com/bissquit/linkwatch/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements outbox.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// FetchPending returns up to limit unprocessed records, oldest first.
func (r *Repository) FetchPending(ctx context.Context, limit int) ([]domain.OutboxRecord, error) {
	query := `
		SELECT id, topic, payload, created_at, processed_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.OutboxRecord, 0)
	for rows.Next() {
		var rec domain.OutboxRecord
		if err := rows.Scan(&rec.ID, &rec.Topic, &rec.Payload, &rec.CreatedAt, &rec.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch pending records: %w", err)
	}

	return records, nil
}

// MarkProcessed sets processed_at on a record. Already-processed records
// are left untouched.
func (r *Repository) MarkProcessed(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox SET processed_at = now()
		WHERE id = $1 AND processed_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("mark record processed: %w", err)
	}
	return nil
}

// CountPending returns the number of unprocessed records.
func (r *Repository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM outbox WHERE processed_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending records: %w", err)
	}
	return count, nil
}
