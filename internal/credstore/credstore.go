// Package credstore persists the session cookies the API sets, so a login
// survives across CLI invocations.
//
// Cookies live in a small SQLite database (ncruces/go-sqlite3, pure Go)
// under the state directory. A Jar is an http.CookieJar that serves requests
// from an in-memory net/http/cookiejar and writes every change through to
// the database.
package credstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"golang.org/x/net/publicsuffix"

	"github.com/collabtask/tasksync/internal/clock"
)

// FileName is the database file created under the state directory.
const FileName = "credentials.db"

const schema = `
CREATE TABLE IF NOT EXISTS cookies (
	host      TEXT NOT NULL,
	name      TEXT NOT NULL,
	path      TEXT NOT NULL DEFAULT '/',
	value     TEXT NOT NULL,
	domain    TEXT NOT NULL DEFAULT '',
	secure    INTEGER NOT NULL DEFAULT 0,
	http_only INTEGER NOT NULL DEFAULT 0,
	expires   INTEGER NOT NULL DEFAULT 0, -- unix seconds, 0 = session
	updated   INTEGER NOT NULL,
	PRIMARY KEY (host, name, path)
);
`

// Options configures a Jar.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
}

// Jar is a persistent http.CookieJar. It is safe for concurrent use.
type Jar struct {
	db     *sql.DB
	path   string
	clock  clock.Clock
	logger *slog.Logger

	mu  sync.RWMutex
	mem *cookiejar.Jar
}

var _ http.CookieJar = (*Jar)(nil)

// Open opens (creating if needed) the credential database in dir and loads
// the cookies that have not expired.
func Open(ctx context.Context, dir string, opts Options) (*Jar, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("credstore: create state dir: %w", err)
	}
	path := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("credstore: open %s: %w", path, err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("credstore: init %s: %w", path, err)
		}
	}
	if err := os.Chmod(path, 0o600); err != nil && !os.IsNotExist(err) {
		_ = db.Close()
		return nil, fmt.Errorf("credstore: restrict %s: %w", path, err)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	j := &Jar{db: db, path: path, clock: clk, logger: logger.With("component", "credstore")}
	if j.mem, err = newMemJar(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := j.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func newMemJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("credstore: cookie jar: %w", err)
	}
	return jar, nil
}

// Path returns the database file path.
func (j *Jar) Path() string { return j.path }

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.mem.Cookies(u)
}

// SetCookies implements http.CookieJar. Cookies are applied in memory first;
// a failure to persist is logged and only costs the next invocation its
// session.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	j.mem.SetCookies(u, cookies)
	j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, c := range cookies {
		if err := j.persist(ctx, u, c); err != nil {
			j.logger.Warn("failed to persist cookie", "name", c.Name, "host", u.Hostname(), "error", err)
		}
	}
}

// Clear forgets every stored cookie.
func (j *Jar) Clear(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM cookies`); err != nil {
		return fmt.Errorf("credstore: clear: %w", err)
	}
	mem, err := newMemJar()
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.mem = mem
	j.mu.Unlock()
	j.logger.Debug("cleared stored credentials")
	return nil
}

// Count returns how many cookies are stored.
func (j *Jar) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cookies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("credstore: count: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (j *Jar) Close() error {
	if j.db == nil {
		return nil
	}
	if _, err := j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		j.logger.Warn("failed to checkpoint WAL", "error", err)
	}
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("credstore: close: %w", err)
	}
	j.db = nil
	return nil
}

func (j *Jar) persist(ctx context.Context, u *url.URL, c *http.Cookie) error {
	host := u.Hostname()
	path := c.Path
	if path == "" {
		path = "/"
	}
	now := j.clock.Now()

	var expires int64
	switch {
	case c.MaxAge < 0:
		return j.forget(ctx, host, c.Name, path)
	case c.MaxAge > 0:
		expires = now.Add(time.Duration(c.MaxAge) * time.Second).Unix()
	case !c.Expires.IsZero():
		if !c.Expires.After(now) {
			return j.forget(ctx, host, c.Name, path)
		}
		expires = c.Expires.Unix()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO cookies (host, name, path, value, domain, secure, http_only, expires, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (host, name, path) DO UPDATE SET
			value = excluded.value,
			domain = excluded.domain,
			secure = excluded.secure,
			http_only = excluded.http_only,
			expires = excluded.expires,
			updated = excluded.updated`,
		host, c.Name, path, c.Value, c.Domain, c.Secure, c.HttpOnly, expires, now.Unix())
	return err
}

func (j *Jar) forget(ctx context.Context, host, name, path string) error {
	_, err := j.db.ExecContext(ctx, `DELETE FROM cookies WHERE host = ? AND name = ? AND path = ?`, host, name, path)
	return err
}

// load replays stored cookies into the in-memory jar and prunes expired
// rows.
func (j *Jar) load(ctx context.Context) error {
	now := j.clock.Now().Unix()
	if _, err := j.db.ExecContext(ctx, `DELETE FROM cookies WHERE expires != 0 AND expires <= ?`, now); err != nil {
		return fmt.Errorf("credstore: prune: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT host, name, path, value, domain, secure, http_only, expires
		FROM cookies ORDER BY host, updated`)
	if err != nil {
		return fmt.Errorf("credstore: load: %w", err)
	}
	defer rows.Close()

	byHost := make(map[string][]*http.Cookie)
	secureHost := make(map[string]bool)
	n := 0
	for rows.Next() {
		var (
			host    string
			c       http.Cookie
			expires int64
		)
		if err := rows.Scan(&host, &c.Name, &c.Path, &c.Value, &c.Domain, &c.Secure, &c.HttpOnly, &expires); err != nil {
			return fmt.Errorf("credstore: scan: %w", err)
		}
		if expires != 0 {
			c.Expires = time.Unix(expires, 0)
		}
		if c.Secure {
			secureHost[host] = true
		}
		byHost[host] = append(byHost[host], &c)
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("credstore: load: %w", err)
	}

	for host, cookies := range byHost {
		scheme := "http"
		if secureHost[host] {
			scheme = "https"
		}
		j.mem.SetCookies(&url.URL{Scheme: scheme, Host: host, Path: "/"}, cookies)
	}
	j.logger.Debug("loaded stored credentials", "cookies", n, "path", j.path)
	return nil
}
