// Package store persists games, volumes and installation logs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/volumes"
)

// Store implements games.Repository and volumes.Repository.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at the given path.
func Open(dbPath string) (*Store, error) {
	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite has a single writer; queue in Go instead of on the file lock.
	db.SetMaxOpenConns(4)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS games (
			id                  TEXT PRIMARY KEY,
			title               TEXT NOT NULL,
			default_platform_id TEXT NOT NULL DEFAULT '',
			platforms_json      TEXT NOT NULL DEFAULT '[]',
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL,
			version             INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS volumes (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			host_path    TEXT NOT NULL,
			type         TEXT NOT NULL,
			purpose      TEXT NOT NULL DEFAULT 'other',
			storage_type TEXT NOT NULL DEFAULT '',
			handle       TEXT NOT NULL,
			created_at   TEXT NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_volumes_handle ON volumes(handle);

		CREATE TABLE IF NOT EXISTS install_logs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id     TEXT NOT NULL,
			platform_id TEXT NOT NULL,
			timestamp   TEXT NOT NULL,
			level       TEXT NOT NULL,
			message     TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_install_logs_key ON install_logs(game_id, platform_id);
	`)
	if err != nil {
		return err
	}

	alterStmts := []string{
		"ALTER TABLE install_logs ADD COLUMN container_id TEXT NOT NULL DEFAULT ''",
		"ALTER TABLE games ADD COLUMN version INTEGER NOT NULL DEFAULT 1",
	}
	for _, stmt := range alterStmts {
		s.db.Exec(stmt) // ignore "duplicate column" errors
	}
	return nil
}

// LoadGame returns the game with the given id.
func (s *Store) LoadGame(ctx context.Context, id string) (*games.Game, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, default_platform_id, platforms_json, created_at, updated_at, version FROM games WHERE id=?`, id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("game %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading game %s: %w", id, err)
	}
	return g, nil
}

// SaveGame inserts a new game (Version 0) or updates the stored one when
// it is still at g.Version. Either way g.Version is advanced on success.
// A game saved by someone else since it was loaded yields errs.Conflict.
func (s *Store) SaveGame(ctx context.Context, g *games.Game) error {
	platforms := g.Platforms
	if platforms == nil {
		platforms = []games.PlatformConfig{}
	}
	platformsJSON, err := json.Marshal(platforms)
	if err != nil {
		return fmt.Errorf("encoding platforms: %w", err)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = g.CreatedAt
	}

	var res sql.Result
	if g.Version == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO games (id, title, default_platform_id, platforms_json, created_at, updated_at, version)
			VALUES (?, ?, ?, ?, ?, ?, 1)
			ON CONFLICT(id) DO NOTHING`,
			g.ID, g.Title, g.DefaultPlatformID, string(platformsJSON),
			g.CreatedAt.UTC().Format(time.RFC3339Nano), g.UpdatedAt.UTC().Format(time.RFC3339Nano),
		)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE games SET title=?, default_platform_id=?, platforms_json=?, updated_at=?, version=version+1
			WHERE id=? AND version=?`,
			g.Title, g.DefaultPlatformID, string(platformsJSON), g.UpdatedAt.UTC().Format(time.RFC3339Nano),
			g.ID, g.Version,
		)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.staleGame(ctx, g.ID, g.Version, g.Version == 0)
	}
	g.Version++
	return nil
}

// staleGame explains a conditional write that matched no row.
func (s *Store) staleGame(ctx context.Context, id string, version int64, creating bool) error {
	var current int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM games WHERE id=?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return errs.NotFound("game %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("checking game %s: %w", id, err)
	}
	if creating {
		return errs.Conflict("game %s already exists", id)
	}
	return errs.Conflict("game %s was changed concurrently (version %d, have %d)", id, current, version)
}

// ListGames returns all games ordered by title.
func (s *Store) ListGames(ctx context.Context) ([]*games.Game, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, default_platform_id, platforms_json, created_at, updated_at, version FROM games ORDER BY title COLLATE NOCASE, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*games.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteGame removes a game and its installation logs if it is still at
// version. A version of 0 deletes unconditionally.
func (s *Store) DeleteGame(ctx context.Context, id string, version int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM games WHERE id=? AND (?=0 OR version=?)`, id, version, version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return s.staleGame(ctx, id, version, false)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM install_logs WHERE game_id=?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGame(row rowScanner) (*games.Game, error) {
	var g games.Game
	var platformsJSON, createdAt, updatedAt string
	if err := row.Scan(&g.ID, &g.Title, &g.DefaultPlatformID, &platformsJSON, &createdAt, &updatedAt, &g.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(platformsJSON), &g.Platforms); err != nil {
		return nil, fmt.Errorf("decoding platforms of %s: %w", g.ID, err)
	}
	if g.Platforms == nil {
		g.Platforms = []games.PlatformConfig{}
	}
	g.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	g.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &g, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// LoadVolumes returns the tracked volumes in creation order.
func (s *Store) LoadVolumes(ctx context.Context) ([]volumes.Volume, error) {
	return loadVolumes(ctx, s.db)
}

func loadVolumes(ctx context.Context, q queryer) ([]volumes.Volume, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, host_path, type, purpose, storage_type, handle, created_at FROM volumes ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []volumes.Volume
	for rows.Next() {
		var v volumes.Volume
		var createdAt string
		if err := rows.Scan(&v.ID, &v.Name, &v.HostPath, &v.Type, &v.Purpose, &v.StorageType, &v.Handle, &createdAt); err != nil {
			return nil, err
		}
		v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateVolumes loads the tracked set, applies fn and writes back only the
// rows fn added, changed or dropped, all inside one BEGIN IMMEDIATE
// transaction. The write lock is taken before the read, so another process
// cannot change the set in between; readers see either the old or the new
// purpose assignment, never a mix.
func (s *Store) UpdateVolumes(ctx context.Context, fn func(vols []volumes.Volume) ([]volumes.Volume, error)) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("locking volumes: %w", err)
	}
	defer func() {
		if err != nil {
			conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	cur, err := loadVolumes(ctx, conn)
	if err != nil {
		return err
	}
	next, err := fn(append([]volumes.Volume(nil), cur...))
	if err != nil {
		return err
	}

	old := make(map[string]volumes.Volume, len(cur))
	for _, v := range cur {
		old[v.ID] = v
	}
	keep := make(map[string]bool, len(next))
	for _, v := range next {
		keep[v.ID] = true
	}
	for _, v := range cur {
		if keep[v.ID] {
			continue
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM volumes WHERE id=?`, v.ID); err != nil {
			return fmt.Errorf("deleting volume %s: %w", v.ID, err)
		}
	}
	for _, v := range next {
		if prev, ok := old[v.ID]; ok && sameVolume(prev, v) {
			continue
		}
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO volumes (id, name, host_path, type, purpose, storage_type, handle, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name=excluded.name,
				host_path=excluded.host_path,
				type=excluded.type,
				purpose=excluded.purpose,
				storage_type=excluded.storage_type,
				handle=excluded.handle`,
			v.ID, v.Name, v.HostPath, string(v.Type), string(v.Purpose),
			string(v.StorageType), v.Handle, v.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("saving volume %s: %w", v.ID, err)
		}
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("committing volumes: %w", err)
	}
	return nil
}

func sameVolume(a, b volumes.Volume) bool {
	return a.Name == b.Name && a.HostPath == b.HostPath && a.Type == b.Type && a.Purpose == b.Purpose &&
		a.StorageType == b.StorageType && a.Handle == b.Handle
}

// LogEntry is one line of an installation's log.
type LogEntry struct {
	ID          int       `json:"id"`
	GameID      string    `json:"game_id"`
	PlatformID  string    `json:"platform_id"`
	ContainerID string    `json:"container_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Level       string    `json:"level"`
	Message     string    `json:"message"`
}

// AppendLog adds a line to an installation's log.
func (s *Store) AppendLog(ctx context.Context, entry *LogEntry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO install_logs (game_id, platform_id, container_id, timestamp, level, message) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.GameID, entry.PlatformID, entry.ContainerID, entry.Timestamp.UTC().Format(time.RFC3339Nano), entry.Level, entry.Message,
	)
	return err
}

// GetLogsSince returns log lines after a given cursor, and the new cursor.
func (s *Store) GetLogsSince(ctx context.Context, gameID, platformID string, afterID int) ([]*LogEntry, int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, game_id, platform_id, container_id, timestamp, level, message FROM install_logs WHERE game_id=? AND platform_id=? AND id > ? ORDER BY id ASC`, gameID, platformID, afterID)
	if err != nil {
		return nil, afterID, err
	}
	defer rows.Close()

	var logs []*LogEntry
	lastID := afterID
	for rows.Next() {
		var entry LogEntry
		var ts string
		if err := rows.Scan(&entry.ID, &entry.GameID, &entry.PlatformID, &entry.ContainerID, &ts, &entry.Level, &entry.Message); err != nil {
			return nil, lastID, err
		}
		entry.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		logs = append(logs, &entry)
		lastID = entry.ID
	}
	return logs, lastID, rows.Err()
}

// ClearLogs removes an installation's log, e.g. before a reinstall.
func (s *Store) ClearLogs(ctx context.Context, gameID, platformID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM install_logs WHERE game_id=? AND platform_id=?`, gameID, platformID)
	return err
}
