package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps playback records in a single SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// OpenSQLite initializes or connects to the playback database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storageError("open", "", fmt.Errorf("ensure state directory: %w", err))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storageError("open", "", fmt.Errorf("open sqlite db: %w", err))
	}
	// One connection keeps WAL checkpoints and busy handling predictable for a
	// single-writer process.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, storageError("open", "", fmt.Errorf("apply pragma %q: %w", pragma, execErr))
		}
	}

	store := &SQLiteStore{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, storageError("open", "", err)
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *SQLiteStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLiteStore) Position(ctx context.Context, video string) (float64, error) {
	if err := validateVideo(video); err != nil {
		return 0, err
	}
	var position float64
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT position FROM positions WHERE video = ?", video).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, storageError("read position", video, err)
	}
	return position, nil
}

func (s *SQLiteStore) SetPosition(ctx context.Context, video string, position float64) error {
	if err := validateVideo(video); err != nil {
		return err
	}
	if err := validatePosition(position); err != nil {
		return err
	}
	_, err := s.exec(ctx, `INSERT INTO positions (video, position, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(video) DO UPDATE SET position = excluded.position, updated_at = excluded.updated_at`,
		video, position, s.timestamp())
	if err != nil {
		return storageError("write position", video, err)
	}
	return nil
}

func (s *SQLiteStore) EnsurePosition(ctx context.Context, video string) (bool, error) {
	if err := validateVideo(video); err != nil {
		return false, err
	}
	res, err := s.exec(ctx, "INSERT OR IGNORE INTO positions (video, position, updated_at) VALUES (?, 0, ?)", video, s.timestamp())
	if err != nil {
		return false, storageError("ensure position", video, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storageError("ensure position", video, err)
	}
	return affected > 0, nil
}

func (s *SQLiteStore) NowPlaying(ctx context.Context, playlist []string) (string, bool, error) {
	video, err := s.rawNowPlaying(ctx)
	if err != nil {
		return "", false, err
	}
	if video == "" || !contains(playlist, video) {
		return "", false, nil
	}
	return video, true, nil
}

func (s *SQLiteStore) rawNowPlaying(ctx context.Context) (string, error) {
	var video string
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT video FROM now_playing WHERE id = 1").Scan(&video)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storageError("read now playing", "", err)
	}
	return video, nil
}

func (s *SQLiteStore) SetNowPlaying(ctx context.Context, video string) error {
	if err := validateVideo(video); err != nil {
		return err
	}
	_, err := s.exec(ctx, `INSERT INTO now_playing (id, video, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET video = excluded.video, updated_at = excluded.updated_at`,
		video, s.timestamp())
	if err != nil {
		return storageError("write now playing", video, err)
	}
	return nil
}

func (s *SQLiteStore) Commit(ctx context.Context, video string, position float64, nowPlaying string) error {
	if err := validateVideo(video); err != nil {
		return err
	}
	if err := validateVideo(nowPlaying); err != nil {
		return err
	}
	if err := validatePosition(position); err != nil {
		return err
	}
	ctx = ensureContext(ctx)
	ts := s.timestamp()
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `INSERT INTO positions (video, position, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(video) DO UPDATE SET position = excluded.position, updated_at = excluded.updated_at`,
			video, position, ts); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO now_playing (id, video, updated_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET video = excluded.video, updated_at = excluded.updated_at`,
			nowPlaying, ts); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return storageError("commit tick", video, err)
	}
	return nil
}

func (s *SQLiteStore) Snapshot(ctx context.Context) (Snapshot, error) {
	ctx = ensureContext(ctx)
	nowPlaying, err := s.rawNowPlaying(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT video, position, updated_at FROM positions ORDER BY video")
	if err != nil {
		return Snapshot{}, storageError("list positions", "", err)
	}
	defer rows.Close()

	snap := Snapshot{NowPlaying: nowPlaying}
	for rows.Next() {
		var (
			rec     Record
			updated string
		)
		if err := rows.Scan(&rec.Video, &rec.Position, &updated); err != nil {
			return Snapshot{}, storageError("list positions", "", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			rec.UpdatedAt = ts
		}
		snap.Positions = append(snap.Positions, rec)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, storageError("list positions", "", err)
	}
	return snap, nil
}

func (s *SQLiteStore) Forget(ctx context.Context, video string) error {
	if err := validateVideo(video); err != nil {
		return err
	}
	if _, err := s.exec(ctx, "DELETE FROM positions WHERE video = ?", video); err != nil {
		return storageError("forget position", video, err)
	}
	return nil
}
