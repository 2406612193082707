package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"postpilot/internal/post"
	"postpilot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore persists posts in a single SQLite file. Transactions give the
// compare-and-swap UpdateStatus its atomicity; WAL keeps concurrent readers
// off the writer's back.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &sqliteStore{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Insert(ctx context.Context, p post.Post) (post.Post, error) {
	now := time.Now().UTC()

	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = post.StatusScheduled
	p.Result = nil
	p.ScheduledTime = p.ScheduledTime.UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	content, err := json.Marshal(p.Content)
	if err != nil {
		return post.Post{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO posts(id, platform, content_type, content, scheduled_time, status, result, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,NULL,?,?)`,
		p.ID, string(p.Platform), string(p.ContentType), string(content),
		p.ScheduledTime.Format(time.RFC3339Nano), string(p.Status),
		p.CreatedAt.Format(time.RFC3339Nano), p.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return post.Post{}, ErrDuplicateID
		}
		return post.Post{}, err
	}
	return p, nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (post.Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, platform, content_type, content, scheduled_time, status, result, created_at, updated_at
		 FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return post.Post{}, ErrNotFound
	}
	return p, err
}

func (s *sqliteStore) ListByStatus(ctx context.Context, status post.Status) ([]post.Post, error) {
	q := `SELECT id, platform, content_type, content, scheduled_time, status, result, created_at, updated_at
	      FROM posts`
	args := []any{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY scheduled_time ASC, id ASC`
	return s.query(ctx, q, args...)
}

func (s *sqliteStore) ListDue(ctx context.Context, now time.Time) ([]post.Post, error) {
	return s.query(ctx,
		`SELECT id, platform, content_type, content, scheduled_time, status, result, created_at, updated_at
		 FROM posts
		 WHERE status = ? AND scheduled_time <= ?
		 ORDER BY scheduled_time ASC, id ASC`,
		string(post.StatusScheduled), now.UTC().Format(time.RFC3339Nano))
}

func (s *sqliteStore) UpdateStatus(ctx context.Context, id string, from, to post.Status, result *post.Result) error {
	if err := checkTransition(from, to, result); err != nil {
		return err
	}

	var resultJSON any
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return err
		}
		resultJSON = string(b)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET status = ?, result = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), resultJSON, time.Now().UTC().Format(time.RFC3339Nano),
		id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Nothing changed: distinguish a missing row from a lost claim.
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

func (s *sqliteStore) query(ctx context.Context, q string, args ...any) ([]post.Post, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []post.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (post.Post, error) {
	var p post.Post
	var platform, contentType, content, status string
	var scheduled, created, updated string
	var result sql.NullString
	if err := row.Scan(&p.ID, &platform, &contentType, &content, &scheduled, &status, &result, &created, &updated); err != nil {
		return post.Post{}, err
	}

	p.Platform = post.Platform(platform)
	p.ContentType = post.ContentType(contentType)
	p.Status = post.Status(status)

	if err := json.Unmarshal([]byte(content), &p.Content); err != nil {
		return post.Post{}, fmt.Errorf("decode content for %s: %w", p.ID, err)
	}
	if result.Valid {
		var r post.Result
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return post.Post{}, fmt.Errorf("decode result for %s: %w", p.ID, err)
		}
		p.Result = &r
	}

	var err error
	if p.ScheduledTime, err = time.Parse(time.RFC3339Nano, scheduled); err != nil {
		return post.Post{}, err
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return post.Post{}, err
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return post.Post{}, err
	}
	return p, nil
}
