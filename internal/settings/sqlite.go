package settings

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	logx "shellglance/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const defaultPollInterval = 2 * time.Second

// sqliteStore keeps settings in a single table. Reads are served from an
// in-memory copy; Watch polls PRAGMA data_version, which only changes when
// another connection (another shellglance process, the CLI editor) commits.
type sqliteStore struct {
	hub

	db   *sql.DB
	log  logx.Logger
	poll time.Duration

	mu      sync.RWMutex
	vals    values
	version int64
	closed  bool
}

func openSQLite(cfg Config, log logx.Logger) (*sqliteStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("settings.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: data_version is per-connection, and SQLite prefers a single writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	st := &sqliteStore{hub: hub{log: log}, db: db, log: log, poll: poll}

	ctx := context.Background()
	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	vals, err := st.load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	st.vals = vals
	st.version, _ = st.dataVersion(ctx)
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) load(ctx context.Context) (values, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := values{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *sqliteStore) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v)
	return v, err
}

func (s *sqliteStore) GetString(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vals.getString(key)
}

func (s *sqliteStore) GetInt(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vals.getInt(key)
}

func (s *sqliteStore) SetString(key, value string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if old, ok := s.vals[key]; ok && old == value {
		s.mu.Unlock()
		return nil
	}
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO settings(key, value, updated_at) VALUES(?,?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.vals[key] = value
	s.mu.Unlock()

	s.emit(key)
	return nil
}

func (s *sqliteStore) SetInt(key string, value int) error {
	return s.SetString(key, strconv.Itoa(value))
}

// Watch polls for commits made by other connections.
func (s *sqliteStore) Watch(ctx context.Context) error {
	t := time.NewTicker(s.poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := s.checkExternal(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("settings poll failed", logx.Err(err))
			}
		}
	}
}

func (s *sqliteStore) checkExternal(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil
	}

	v, err := s.dataVersion(ctx)
	if err != nil {
		return err
	}
	s.mu.RLock()
	same := v == s.version
	s.mu.RUnlock()
	if same {
		return nil
	}

	vals, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	changed := diff(s.vals, vals)
	s.vals = vals
	s.version = v
	s.mu.Unlock()

	if len(changed) > 0 {
		s.log.Debug("settings changed externally", logx.Any("changed", changed))
	}
	s.emitAll(changed)
	return nil
}

func (s *sqliteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}
