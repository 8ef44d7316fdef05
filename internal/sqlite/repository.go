package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blackmichael/blogify/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id                TEXT PRIMARY KEY,
	type              TEXT NOT NULL,
	sent_by           TEXT NOT NULL DEFAULT '',
	sent_by_name      TEXT NOT NULL DEFAULT '',
	sent_by_photo_url TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL DEFAULT '',
	message           TEXT NOT NULL DEFAULT '',
	blog_id           TEXT NOT NULL DEFAULT '',
	created_at        INTEGER NOT NULL,
	received_at       INTEGER NOT NULL,
	read              INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS notifications_created_at ON notifications (created_at);

CREATE TABLE IF NOT EXISTS cookies (
	host    TEXT NOT NULL,
	name    TEXT NOT NULL,
	value   TEXT NOT NULL,
	path    TEXT NOT NULL DEFAULT '',
	expires INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (host, name)
);`

// Repository implements domain.NotificationRepository and
// domain.CookieRepository using a local SQLite file.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository opens (creating if needed) the SQLite database at path and
// applies the schema. The caller should call Close when the repository is no
// longer needed.
func NewRepository(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and keeps pragmas in effect.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveNotification inserts a notification unless its id is already stored.
func (r *Repository) SaveNotification(ctx context.Context, n *domain.Notification) (bool, error) {
	if n.ID == "" {
		return false, errors.New("notification has no id")
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, type, sent_by, sent_by_name, sent_by_photo_url, title, message, blog_id, created_at, received_at, read)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		n.ID,
		string(n.Type),
		n.SentBy,
		n.SentByName,
		n.SentByPhotoURL,
		n.Title,
		n.Message,
		n.BlogID,
		n.CreatedAt.UnixMilli(),
		r.now().UTC().UnixMilli(),
		boolToInt(n.Read),
	)
	if err != nil {
		return false, fmt.Errorf("insert notification %s: %w", n.ID, err)
	}
	inserted, _ := res.RowsAffected()
	return inserted > 0, nil
}

// ListNotifications returns the most recent limit notifications, oldest first.
// A non-positive limit returns all of them.
func (r *Repository) ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, sent_by, sent_by_name, sent_by_photo_url, title, message, blog_id, created_at, read
		FROM (
			SELECT * FROM notifications
			ORDER BY created_at DESC, received_at DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, received_at ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query notifications (limit=%d): %w", limit, err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var (
			n         domain.Notification
			typ       string
			createdAt int64
			read      int
		)
		err := rows.Scan(
			&n.ID,
			&typ,
			&n.SentBy,
			&n.SentByName,
			&n.SentByPhotoURL,
			&n.Title,
			&n.Message,
			&n.BlogID,
			&createdAt,
			&read,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = domain.NotificationType(typ)
		n.CreatedAt = time.UnixMilli(createdAt).UTC()
		n.Read = read != 0
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationsRead flags ids as read. Unknown ids are ignored.
func (r *Repository) MarkNotificationsRead(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// DeleteOldNotifications removes notifications received more than maxAge ago
// and any excess rows beyond maxRows, keeping the most recent. Returns the
// total number of rows deleted.
func (r *Repository) DeleteOldNotifications(ctx context.Context, maxAge time.Duration, maxRows int) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var ttlDeleted int64
	if maxAge > 0 {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM notifications WHERE received_at < ?`,
			r.now().UTC().Add(-maxAge).UnixMilli(),
		)
		if err != nil {
			return 0, fmt.Errorf("delete expired notifications: %w", err)
		}
		ttlDeleted, _ = res.RowsAffected()
	}

	var capDeleted int64
	if maxRows > 0 {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM notifications WHERE id IN (
				SELECT id FROM notifications
				ORDER BY created_at DESC, received_at DESC
				LIMIT -1 OFFSET ?
			)`, maxRows,
		)
		if err != nil {
			return 0, fmt.Errorf("delete excess notifications: %w", err)
		}
		capDeleted, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return ttlDeleted + capDeleted, nil
}

// LoadCookies returns the unexpired cookies stored for host.
func (r *Repository) LoadCookies(ctx context.Context, host string) ([]*http.Cookie, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, value, path, expires FROM cookies WHERE host = ? ORDER BY name`, host,
	)
	if err != nil {
		return nil, fmt.Errorf("query cookies for %s: %w", host, err)
	}
	defer rows.Close()

	now := r.now()
	var out []*http.Cookie
	for rows.Next() {
		var (
			c       http.Cookie
			expires int64
		)
		if err := rows.Scan(&c.Name, &c.Value, &c.Path, &expires); err != nil {
			return nil, fmt.Errorf("scan cookie: %w", err)
		}
		if expires > 0 {
			c.Expires = time.Unix(expires, 0)
			if c.Expires.Before(now) {
				continue
			}
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cookies: %w", err)
	}
	return out, nil
}

// SaveCookies replaces the cookies stored for host.
func (r *Repository) SaveCookies(ctx context.Context, host string, cookies []*http.Cookie) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cookies WHERE host = ?`, host); err != nil {
		return fmt.Errorf("clear cookies for %s: %w", host, err)
	}
	for _, c := range cookies {
		var expires int64
		if !c.Expires.IsZero() {
			expires = c.Expires.Unix()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cookies (host, name, value, path, expires)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (host, name) DO UPDATE SET value = excluded.value, path = excluded.path, expires = excluded.expires`,
			host, c.Name, c.Value, c.Path, expires,
		)
		if err != nil {
			return fmt.Errorf("save cookie %s: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
