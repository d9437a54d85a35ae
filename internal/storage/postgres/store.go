// Package postgres provides Postgres-backed persistence for the auth gateway.
//
// Purpose:
//   The gateway serves a small amount of association content alongside the
//   session boundary: news posts and club profiles. This store owns those
//   tables. Session state itself is never persisted here; sessions live
//   entirely in the signed cookie and the Redis revocation watermark.
//
// Dependencies:
//   - github.com/jackc/pgx/v5: Postgres driver and connection pooling
//
// Thread Safety:
//   - Store is safe for concurrent use; pgxpool handles connection sharing
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides Postgres-backed persistence for association content.
type Store struct {
	pool     *pgxpool.Pool
	ownsPool bool
}

// NewStore creates a store using the provided connection string and takes ownership of the pool.
func NewStore(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Store{pool: pool, ownsPool: true}, nil
}

// NewStoreFromPool wraps an existing pgx pool.
func NewStoreFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the underlying pool if the store owns it.
func (s *Store) Close() {
	if s.ownsPool && s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies database connectivity (readiness probes).
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) withTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	return nil
}

// CreateNewsPost inserts a news post row.
func (s *Store) CreateNewsPost(ctx context.Context, params CreateNewsPostParams) (NewsPost, error) {
	id := params.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var out NewsPost
	err := s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO news_posts (id, title, body, author_subject, club_id, published)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id, title, body, author_subject, club_id, published, created_at, updated_at
		`, id, params.Title, params.Body, params.AuthorSubject, params.ClubID, params.Published)
		return scanNewsPost(row, &out)
	})
	if err != nil {
		return NewsPost{}, fmt.Errorf("create news post: %w", err)
	}
	return out, nil
}

// GetNewsPost fetches a single news post.
func (s *Store) GetNewsPost(ctx context.Context, id uuid.UUID) (NewsPost, error) {
	var out NewsPost
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, body, author_subject, club_id, published, created_at, updated_at
		FROM news_posts WHERE id = $1
	`, id)
	if err := scanNewsPost(row, &out); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NewsPost{}, ErrNotFound
		}
		return NewsPost{}, fmt.Errorf("get news post: %w", err)
	}
	return out, nil
}

// ListNewsPosts returns posts newest first. With publishedOnly set, drafts
// are excluded (the member-facing listing).
func (s *Store) ListNewsPosts(ctx context.Context, publishedOnly bool, limit int) ([]NewsPost, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `
		SELECT id, title, body, author_subject, club_id, published, created_at, updated_at
		FROM news_posts
	`
	if publishedOnly {
		query += " WHERE published"
	}
	query += " ORDER BY created_at DESC LIMIT $1"

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list news posts: %w", err)
	}
	defer rows.Close()

	var posts []NewsPost
	for rows.Next() {
		var p NewsPost
		if err := scanNewsPost(rows, &p); err != nil {
			return nil, fmt.Errorf("scan news post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// UpdateNewsPost rewrites a post's mutable fields.
func (s *Store) UpdateNewsPost(ctx context.Context, params UpdateNewsPostParams) (NewsPost, error) {
	var out NewsPost
	err := s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE news_posts
			SET title = $2, body = $3, published = $4, updated_at = now()
			WHERE id = $1
			RETURNING id, title, body, author_subject, club_id, published, created_at, updated_at
		`, params.ID, params.Title, params.Body, params.Published)
		return scanNewsPost(row, &out)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NewsPost{}, ErrNotFound
		}
		return NewsPost{}, fmt.Errorf("update news post: %w", err)
	}
	return out, nil
}

// DeleteNewsPost removes a post.
func (s *Store) DeleteNewsPost(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM news_posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete news post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListClubs returns all club profiles ordered by name.
func (s *Store) ListClubs(ctx context.Context) ([]Club, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, website, rep_subject, created_at, updated_at
		FROM clubs ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}
	defer rows.Close()

	var clubs []Club
	for rows.Next() {
		var c Club
		if err := scanClub(rows, &c); err != nil {
			return nil, fmt.Errorf("scan club: %w", err)
		}
		clubs = append(clubs, c)
	}
	return clubs, rows.Err()
}

// GetClub fetches a single club profile.
func (s *Store) GetClub(ctx context.Context, id string) (Club, error) {
	var out Club
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, description, website, rep_subject, created_at, updated_at
		FROM clubs WHERE id = $1
	`, id)
	if err := scanClub(row, &out); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Club{}, ErrNotFound
		}
		return Club{}, fmt.Errorf("get club: %w", err)
	}
	return out, nil
}

// UpdateClub rewrites a club's mutable profile fields.
func (s *Store) UpdateClub(ctx context.Context, params UpdateClubParams) (Club, error) {
	var out Club
	err := s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE clubs
			SET name = $2, description = $3, website = $4, updated_at = now()
			WHERE id = $1
			RETURNING id, name, description, website, rep_subject, created_at, updated_at
		`, params.ID, params.Name, params.Description, params.Website)
		return scanClub(row, &out)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Club{}, ErrNotFound
		}
		return Club{}, fmt.Errorf("update club: %w", err)
	}
	return out, nil
}

func scanNewsPost(row pgx.Row, p *NewsPost) error {
	return row.Scan(&p.ID, &p.Title, &p.Body, &p.AuthorSubject, &p.ClubID,
		&p.Published, &p.CreatedAt, &p.UpdatedAt)
}

func scanClub(row pgx.Row, c *Club) error {
	return row.Scan(&c.ID, &c.Name, &c.Description, &c.Website,
		&c.RepSubject, &c.CreatedAt, &c.UpdatedAt)
}
