package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgForeignKeyViolation = "23503"

// PostgresStore persists users, comments and likes in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by Postgres.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) UpsertUser(ctx context.Context, u UserUpsert) (User, error) {
	const q = `INSERT INTO users (id, name, email, photo_url)
	           VALUES ($1, $2, $3, $4)
	           ON CONFLICT (id) DO UPDATE SET
	               name = EXCLUDED.name,
	               email = CASE WHEN $5::boolean THEN EXCLUDED.email ELSE users.email END,
	               photo_url = CASE WHEN $6::boolean THEN EXCLUDED.photo_url ELSE users.photo_url END,
	               updated_at = now()
	           RETURNING id, name, email, photo_url`
	var out User
	err := s.pool.QueryRow(ctx, q, u.ID, u.Name, u.Email.value(), u.PhotoURL.value(),
		u.Email.touches(), u.PhotoURL.touches()).
		Scan(&out.ID, &out.Name, &out.Email, &out.PhotoURL)
	if err != nil {
		return User{}, fmt.Errorf("upsert user: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (User, error) {
	const q = `SELECT id, name, email, photo_url FROM users WHERE id = $1`
	var out User
	err := s.pool.QueryRow(ctx, q, id).Scan(&out.ID, &out.Name, &out.Email, &out.PhotoURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return out, nil
}

const commentColumns = `c.id::text, c.text, c.author_id, c.parent_id::text, c.likes, c.created_at,
	u.id, u.name, u.email, u.photo_url`

func (s *PostgresStore) CreateComment(ctx context.Context, nc NewComment) (Comment, error) {
	const q = `WITH c AS (
	               INSERT INTO comments (id, text, author_id, parent_id)
	               VALUES ($1::uuid, $2, $3, $4::uuid)
	               RETURNING id, text, author_id, parent_id, likes, created_at
	           )
	           SELECT ` + commentColumns + `
	           FROM c JOIN users u ON u.id = c.author_id`
	row := s.pool.QueryRow(ctx, q, uuid.NewString(), nc.Text, nc.AuthorID, nc.ParentID)
	c, err := scanComment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return Comment{}, ErrNotFound
		}
		return Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) GetComment(ctx context.Context, id string) (Comment, error) {
	if !validID(id) {
		return Comment{}, ErrNotFound
	}
	q := `SELECT ` + commentColumns + `
	      FROM comments c JOIN users u ON u.id = c.author_id
	      WHERE c.id = $1::uuid`
	c, err := scanComment(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	if err != nil {
		return Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListComments(ctx context.Context) ([]Comment, error) {
	q := `SELECT ` + commentColumns + `
	      FROM comments c JOIN users u ON u.id = c.author_id
	      ORDER BY c.created_at DESC, c.id DESC`
	out, err := s.queryComments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Descendants(ctx context.Context, id string, depth int) ([]Comment, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	// path guards against parent cycles left behind by manual edits.
	q := `WITH RECURSIVE sub AS (
	          SELECT id, 0 AS depth, ARRAY[id] AS path
	          FROM comments WHERE id = $1::uuid
	          UNION ALL
	          SELECT ch.id, sub.depth + 1, sub.path || ch.id
	          FROM comments ch JOIN sub ON ch.parent_id = sub.id
	          WHERE ($2::int <= 0 OR sub.depth < $2::int) AND NOT ch.id = ANY(sub.path)
	      )
	      SELECT ` + commentColumns + `
	      FROM sub
	      JOIN comments c ON c.id = sub.id
	      JOIN users u ON u.id = c.author_id
	      ORDER BY c.created_at DESC, c.id DESC`
	out, err := s.queryComments(ctx, q, id, depth)
	if err != nil {
		return nil, fmt.Errorf("descendants: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleLike locks the comment row first so concurrent toggles on the same
// comment serialize and likes always equals the membership count.
func (s *PostgresStore) ToggleLike(ctx context.Context, commentID, userID string) (bool, error) {
	if !validID(commentID) {
		return false, ErrNotFound
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var likes int
	err = tx.QueryRow(ctx, `SELECT likes FROM comments WHERE id = $1::uuid FOR UPDATE`, commentID).Scan(&likes)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("lock comment: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM comment_likes WHERE comment_id = $1::uuid AND user_id = $2`,
		commentID, userID)
	if err != nil {
		return false, fmt.Errorf("remove like: %w", err)
	}

	liked := tag.RowsAffected() == 0
	delta := -1
	if liked {
		if _, err := tx.Exec(ctx,
			`INSERT INTO comment_likes (user_id, comment_id) VALUES ($1, $2::uuid)`,
			userID, commentID); err != nil {
			return false, fmt.Errorf("add like: %w", err)
		}
		delta = 1
	}

	if _, err := tx.Exec(ctx,
		`UPDATE comments SET likes = likes + $1 WHERE id = $2::uuid`,
		delta, commentID); err != nil {
		return false, fmt.Errorf("update likes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return liked, nil
}

func (s *PostgresStore) Liked(ctx context.Context, commentID, userID string) (bool, error) {
	if !validID(commentID) {
		return false, ErrNotFound
	}
	const q = `SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1::uuid),
	                  EXISTS(SELECT 1 FROM comment_likes WHERE comment_id = $1::uuid AND user_id = $2)`
	var exists, liked bool
	if err := s.pool.QueryRow(ctx, q, commentID, userID).Scan(&exists, &liked); err != nil {
		return false, fmt.Errorf("liked: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return liked, nil
}

func (s *PostgresStore) CountLikes(ctx context.Context, commentID string) (int, error) {
	if !validID(commentID) {
		return 0, ErrNotFound
	}
	const q = `SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1::uuid),
	                  (SELECT count(*) FROM comment_likes WHERE comment_id = $1::uuid)`
	var exists bool
	var n int64
	if err := s.pool.QueryRow(ctx, q, commentID).Scan(&exists, &n); err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	if !exists {
		return 0, ErrNotFound
	}
	return int(n), nil
}

func (s *PostgresStore) queryComments(ctx context.Context, q string, args ...any) ([]Comment, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanComment(row pgx.Row) (Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.Text, &c.AuthorID, &c.ParentID, &c.Likes, &c.CreatedAt,
		&c.User.ID, &c.User.Name, &c.User.Email, &c.User.PhotoURL)
	return c, err
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
