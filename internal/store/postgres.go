package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const postColumns = `id, author, role, content, image, category, upvotes, downvotes, replies, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (Post, error) {
	var (
		item    Post
		image   sql.NullString
		replies []byte
	)
	if err := row.Scan(
		&item.ID,
		&item.Author,
		&item.Role,
		&item.Content,
		&image,
		&item.Category,
		&item.Upvotes,
		&item.Downvotes,
		&replies,
		&item.Timestamp,
	); err != nil {
		return Post{}, err
	}
	if image.Valid {
		value := image.String
		item.Image = &value
	}
	parsed, err := decodeReplies(replies)
	if err != nil {
		return Post{}, err
	}
	item.Replies = parsed
	return item, nil
}

func decodeReplies(raw []byte) ([]Reply, error) {
	replies := make([]Reply, 0)
	if len(raw) == 0 {
		return replies, nil
	}
	if err := json.Unmarshal(raw, &replies); err != nil {
		return nil, fmt.Errorf("decode replies: %w", err)
	}
	if replies == nil {
		replies = make([]Reply, 0)
	}
	return replies, nil
}

func (s *PostgresStore) ListPostsByCategory(ctx context.Context, category string) ([]Post, error) {
	return s.queryPosts(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE category=$1
		ORDER BY created_at DESC, id DESC
	`, category)
}

// AllPosts returns every post across channels, newest first.
func (s *PostgresStore) AllPosts(ctx context.Context) ([]Post, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC`)
}

func (s *PostgresStore) queryPosts(ctx context.Context, query string, args ...any) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items := make([]Post, 0)
	for rows.Next() {
		item, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPost(ctx context.Context, postID string) (Post, error) {
	item, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id=$1`, postID))
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("get post: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) InsertPost(ctx context.Context, post Post) error {
	replies, err := json.Marshal(nonNilReplies(post.Replies))
	if err != nil {
		return fmt.Errorf("encode replies: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (id, author, role, content, image, category, upvotes, downvotes, replies, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)
	`, post.ID, post.Author, post.Role, post.Content, post.Image, post.Category, post.Upvotes, post.Downvotes, string(replies), post.Timestamp)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// PrependReply puts reply at index 0 of the post's replies in one statement.
func (s *PostgresStore) PrependReply(ctx context.Context, postID string, reply Reply) error {
	encoded, err := json.Marshal([]Reply{reply})
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET replies = $2::jsonb || replies
		WHERE id=$1
	`, postID, string(encoded))
	if err != nil {
		return fmt.Errorf("prepend reply: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("prepend reply: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) IncrementPostVote(ctx context.Context, postID string, direction Direction) (VoteCounts, error) {
	column := direction.Column()
	var counts VoteCounts
	err := s.db.QueryRowContext(ctx, `
		UPDATE posts
		SET `+column+` = `+column+` + 1
		WHERE id=$1
		RETURNING upvotes, downvotes
	`, postID).Scan(&counts.Upvotes, &counts.Downvotes)
	if errors.Is(err, sql.ErrNoRows) {
		return VoteCounts{}, ErrNotFound
	}
	if err != nil {
		return VoteCounts{}, fmt.Errorf("increment post vote: %w", err)
	}
	return counts, nil
}

// IncrementReplyVote holds the post row lock across the read-modify-write of
// the embedded replies array.
func (s *PostgresStore) IncrementReplyVote(ctx context.Context, postID, replyID string, direction Direction) (VoteCounts, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return VoteCounts{}, fmt.Errorf("begin reply vote tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	err = tx.QueryRowContext(ctx, `SELECT replies FROM posts WHERE id=$1 FOR UPDATE`, postID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return VoteCounts{}, ErrNotFound
	}
	if err != nil {
		return VoteCounts{}, fmt.Errorf("lock post replies: %w", err)
	}
	replies, err := decodeReplies(raw)
	if err != nil {
		return VoteCounts{}, err
	}
	idx := Post{Replies: replies}.FindReply(replyID)
	if idx < 0 {
		return VoteCounts{}, ErrReplyNotFound
	}
	if direction == DirectionDown {
		replies[idx].Downvotes++
	} else {
		replies[idx].Upvotes++
	}

	encoded, err := json.Marshal(replies)
	if err != nil {
		return VoteCounts{}, fmt.Errorf("encode replies: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE posts SET replies=$2::jsonb WHERE id=$1`, postID, string(encoded)); err != nil {
		return VoteCounts{}, fmt.Errorf("update reply vote: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return VoteCounts{}, fmt.Errorf("commit reply vote: %w", err)
	}
	return replies[idx].Counts(), nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, created_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, strings.TrimSpace(email)).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.DisplayName, strings.TrimSpace(user.Email), user.PasswordHash, user.Role)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nonNilReplies(replies []Reply) []Reply {
	if replies == nil {
		return []Reply{}
	}
	return replies
}
