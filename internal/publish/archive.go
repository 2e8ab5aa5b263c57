package publish

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Record is one archived publish result.
type Record struct {
	Path       string    `json:"path"`
	Query      string    `json:"query"`
	Title      string    `json:"title"`
	PreviewURL string    `json:"previewURL"`
	LiveURL    string    `json:"liveURL"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Archive keeps the publish history. With a Postgres DSN it persists to a
// table, otherwise it holds an in-process list that lives as long as the
// server does.
type Archive struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	mu      sync.RWMutex
	records []Record
}

func NewArchive() *Archive {
	return &Archive{}
}

func NewArchivePostgres(dsn string) (*Archive, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Archive{db: db}, nil
}

// NewArchiveFromEnv uses Postgres when a DSN is supplied and falls back to
// memory when it is absent or unreachable.
func NewArchiveFromEnv(dsn string, log *zap.Logger) *Archive {
	if strings.TrimSpace(dsn) == "" {
		return NewArchive()
	}
	a, err := NewArchivePostgres(dsn)
	if err != nil {
		if log != nil {
			log.Warn("publish archive postgres unavailable, using memory", zap.Error(err))
		}
		return NewArchive()
	}
	return a
}

func (a *Archive) ensureSchema(ctx context.Context) error {
	a.schemaOnce.Do(func() {
		_, a.schemaErr = a.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS published_pages (
				id          BIGSERIAL PRIMARY KEY,
				path        TEXT NOT NULL,
				query       TEXT NOT NULL,
				title       TEXT NOT NULL,
				preview_url TEXT NOT NULL,
				live_url    TEXT NOT NULL,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
			)`)
	})
	return a.schemaErr
}

// Add appends one publish result.
func (a *Archive) Add(ctx context.Context, rec Record) error {
	if a == nil {
		return nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if a.db != nil {
		if err := a.ensureSchema(ctx); err != nil {
			return err
		}
		_, err := a.db.ExecContext(ctx,
			`INSERT INTO published_pages (path, query, title, preview_url, live_url, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.Path, rec.Query, rec.Title, rec.PreviewURL, rec.LiveURL, rec.CreatedAt)
		return err
	}

	a.mu.Lock()
	a.records = append(a.records, rec)
	a.mu.Unlock()
	return nil
}

// List returns up to limit records, newest first.
func (a *Archive) List(ctx context.Context, limit int) ([]Record, error) {
	if a == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if a.db != nil {
		if err := a.ensureSchema(ctx); err != nil {
			return nil, err
		}
		rows, err := a.db.QueryContext(ctx,
			`SELECT path, query, title, preview_url, live_url, created_at
			 FROM published_pages ORDER BY created_at DESC LIMIT $1`, limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		out := make([]Record, 0, limit)
		for rows.Next() {
			var rec Record
			if err := rows.Scan(&rec.Path, &rec.Query, &rec.Title, &rec.PreviewURL, &rec.LiveURL, &rec.CreatedAt); err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, rows.Err()
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	n := len(a.records)
	if limit > n {
		limit = n
	}
	out := make([]Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, a.records[i])
	}
	return out, nil
}

// Close releases the database handle when one is held.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}
