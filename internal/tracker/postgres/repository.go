// Package postgres provides the PostgreSQL implementation of the tracker
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/linkwatch/internal/domain"
	"github.com/bissquit/linkwatch/internal/tracker"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements tracker.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ClaimStale selects and marks up to limit links due for a check in one
// atomic statement. FOR UPDATE SKIP LOCKED makes concurrent claims over
// the same stale set return pairwise disjoint rows without blocking on
// each other; the row locks are held until the implicit commit, by which
// time last_checked_at is already fresh.
//
// UPDATE ... RETURNING carries no order guarantee, so the outer select
// re-sorts by the pre-claim check time: the batch comes back oldest
// first, matching the selection order.
func (r *Repository) ClaimStale(ctx context.Context, olderThan time.Time, limit int) ([]domain.Link, error) {
	query := `
		WITH due AS (
			SELECT id, last_checked_at AS due_at
			FROM links
			WHERE last_checked_at <= $1
			ORDER BY last_checked_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		), claimed AS (
			UPDATE links
			SET last_checked_at = now(), version = version + 1
			FROM due
			WHERE links.id = due.id
			RETURNING links.id, links.type, links.original_url,
			          links.last_modified_at, links.last_checked_at,
			          links.version, links.created_at, due.due_at
		)
		SELECT id, type, original_url, last_modified_at, last_checked_at,
		       version, created_at
		FROM claimed
		ORDER BY due_at, id
	`
	rows, err := r.db.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("claim stale links: %w", err)
	}
	defer rows.Close()

	links := make([]domain.Link, 0)
	for rows.Next() {
		var link domain.Link
		err := rows.Scan(
			&link.ID,
			&link.Type,
			&link.OriginalURL,
			&link.LastModifiedAt,
			&link.LastCheckedAt,
			&link.Version,
			&link.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan claimed link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim stale links: %w", err)
	}

	return links, nil
}

// LoadGithubDetails bulk-loads GitHub details for the given link ids.
func (r *Repository) LoadGithubDetails(ctx context.Context, linkIDs []string) (map[string]domain.GithubDetails, error) {
	query := `
		SELECT link_id, owner, repo, item_number, event_type
		FROM github_links
		WHERE link_id = ANY($1)
	`
	rows, err := r.db.Query(ctx, query, linkIDs)
	if err != nil {
		return nil, fmt.Errorf("load github details: %w", err)
	}
	defer rows.Close()

	details := make(map[string]domain.GithubDetails, len(linkIDs))
	for rows.Next() {
		var linkID string
		var d domain.GithubDetails
		if err := rows.Scan(&linkID, &d.Owner, &d.Repo, &d.ItemNumber, &d.EventType); err != nil {
			return nil, fmt.Errorf("scan github details: %w", err)
		}
		details[linkID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load github details: %w", err)
	}

	return details, nil
}

// LoadStackOverflowDetails bulk-loads StackOverflow details for the given
// link ids.
func (r *Repository) LoadStackOverflowDetails(ctx context.Context, linkIDs []string) (map[string]domain.StackOverflowDetails, error) {
	query := `
		SELECT link_id, question_id
		FROM stackoverflow_links
		WHERE link_id = ANY($1)
	`
	rows, err := r.db.Query(ctx, query, linkIDs)
	if err != nil {
		return nil, fmt.Errorf("load stackoverflow details: %w", err)
	}
	defer rows.Close()

	details := make(map[string]domain.StackOverflowDetails, len(linkIDs))
	for rows.Next() {
		var linkID string
		var d domain.StackOverflowDetails
		if err := rows.Scan(&linkID, &d.QuestionID); err != nil {
			return nil, fmt.Errorf("scan stackoverflow details: %w", err)
		}
		details[linkID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load stackoverflow details: %w", err)
	}

	return details, nil
}

// GetSubscribedChatIDs returns every chat id subscribed to the link.
func (r *Repository) GetSubscribedChatIDs(ctx context.Context, linkID string) ([]int64, error) {
	query := `SELECT chat_id FROM chat_links WHERE link_id = $1 ORDER BY chat_id`
	rows, err := r.db.Query(ctx, query, linkID)
	if err != nil {
		return nil, fmt.Errorf("get subscribed chats: %w", err)
	}
	defer rows.Close()

	chatIDs := make([]int64, 0)
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		chatIDs = append(chatIDs, chatID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get subscribed chats: %w", err)
	}

	return chatIDs, nil
}

// CommitUpdate writes the link's new last_modified_at and the outbox
// record in one transaction. The update applies by id regardless of the
// current version: a later claim round advancing version must not block
// recording a change detected from this round's fetch.
func (r *Repository) CommitUpdate(ctx context.Context, linkID string, modifiedAt time.Time, record *domain.OutboxRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	result, err := tx.Exec(ctx,
		`UPDATE links SET last_modified_at = $2 WHERE id = $1`,
		linkID, modifiedAt,
	)
	if err != nil {
		return fmt.Errorf("update last_modified_at: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tracker.ErrLinkNotFound
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO outbox (id, topic, payload) VALUES ($1, $2, $3)`,
		record.ID, record.Topic, record.Payload,
	)
	if err != nil {
		return fmt.Errorf("insert outbox record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// AddLink registers a new tracked link together with its type-specific
// details. Used by the registration boundary and by tests; duplicate
// URLs surface as tracker.ErrLinkAlreadyTracked.
func (r *Repository) AddLink(ctx context.Context, link *domain.Link) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx, `
		INSERT INTO links (type, original_url)
		VALUES ($1, $2)
		RETURNING id, last_checked_at, version, created_at
	`, link.Type, link.OriginalURL).Scan(&link.ID, &link.LastCheckedAt, &link.Version, &link.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return tracker.ErrLinkAlreadyTracked
		}
		return fmt.Errorf("insert link: %w", err)
	}

	switch link.Type {
	case domain.LinkTypeGitHub:
		if link.Github == nil {
			return fmt.Errorf("github link %s has no details", link.OriginalURL)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO github_links (link_id, owner, repo, item_number, event_type)
			VALUES ($1, $2, $3, $4, $5)
		`, link.ID, link.Github.Owner, link.Github.Repo, link.Github.ItemNumber, link.Github.EventType)
	case domain.LinkTypeStackOverflow:
		if link.StackOverflow == nil {
			return fmt.Errorf("stackoverflow link %s has no details", link.OriginalURL)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO stackoverflow_links (link_id, question_id)
			VALUES ($1, $2)
		`, link.ID, link.StackOverflow.QuestionID)
	default:
		return fmt.Errorf("unsupported link type: %s", link.Type)
	}
	if err != nil {
		return fmt.Errorf("insert link details: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// AddChatLink subscribes a chat to a link with the given tags and
// filters. Re-subscribing replaces the tags and filters.
func (r *Repository) AddChatLink(ctx context.Context, chatLink *domain.ChatLink) error {
	_, err := r.db.Exec(ctx, `INSERT INTO chats (id) VALUES ($1) ON CONFLICT DO NOTHING`, chatLink.ChatID)
	if err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO chat_links (chat_id, link_id, tags, filters)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id, link_id)
		DO UPDATE SET tags = EXCLUDED.tags, filters = EXCLUDED.filters
		RETURNING created_at
	`, chatLink.ChatID, chatLink.LinkID, chatLink.Tags, chatLink.Filters).Scan(&chatLink.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert chat link: %w", err)
	}

	return nil
}

// GetLinkByURL retrieves a link by its original URL.
func (r *Repository) GetLinkByURL(ctx context.Context, url string) (*domain.Link, error) {
	query := `
		SELECT id, type, original_url, last_modified_at, last_checked_at, version, created_at
		FROM links
		WHERE original_url = $1
	`
	var link domain.Link
	err := r.db.QueryRow(ctx, query, url).Scan(
		&link.ID,
		&link.Type,
		&link.OriginalURL,
		&link.LastModifiedAt,
		&link.LastCheckedAt,
		&link.Version,
		&link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tracker.ErrLinkNotFound
		}
		return nil, fmt.Errorf("get link by url: %w", err)
	}
	return &link, nil
}
