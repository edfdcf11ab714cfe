package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/opencontainers/go-digest"
	_ "modernc.org/sqlite" // pure-Go sqlite driver, registers "sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	hash TEXT PRIMARY KEY,
	size INTEGER NOT NULL,
	state TEXT NOT NULL,
	last_used_ms INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS pins (
	app_name TEXT NOT NULL,
	manifest_hash TEXT NOT NULL,
	file_hash TEXT NOT NULL,
	PRIMARY KEY (app_name, manifest_hash, file_hash)
);
CREATE INDEX IF NOT EXISTS pins_by_app ON pins (app_name);
CREATE INDEX IF NOT EXISTS pins_by_file ON pins (file_hash);
`

// openDB opens the cache's SQLite index at path with WAL journaling and a
// busy timeout, matching the persistence conventions used for every other
// SQL-backed store in this codebase, and applies the bundled schema.
func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open index: %w", err)
	}
	db.SetMaxOpenConns(1) // a single writer; database/sql serializes the rest
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}
	return db, nil
}

func getFileRow(ctx context.Context, q queryer, hash digest.Digest) (Entry, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT hash, size, state, last_used_ms FROM files WHERE hash = ?`, hash.String())
	var e Entry
	var hashStr, stateStr string
	if err := row.Scan(&hashStr, &e.Size, &stateStr, &e.LastUsedMs); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	e.Hash = digest.Digest(hashStr)
	e.State = State(stateStr)
	return e, true, nil
}

func upsertFileRow(ctx context.Context, ex execer, e Entry, now time.Time) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO files (hash, size, state, last_used_ms) VALUES (?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET size = excluded.size, state = excluded.state, last_used_ms = excluded.last_used_ms
	`, e.Hash.String(), e.Size, string(e.State), now.UnixMilli())
	return err
}

func touchFileRow(ctx context.Context, ex execer, hash digest.Digest, now time.Time) error {
	_, err := ex.ExecContext(ctx, `UPDATE files SET last_used_ms = ? WHERE hash = ?`, now.UnixMilli(), hash.String())
	return err
}

func deleteFileRow(ctx context.Context, ex execer, hash digest.Digest) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM files WHERE hash = ?`, hash.String())
	return err
}

func pinnedFileHashes(ctx context.Context, q queryer) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT file_hash FROM pins`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out[h] = true
	}
	return out, rows.Err()
}

func pinnedSize(ctx context.Context, q queryer) (int64, error) {
	row := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(f.size), 0) FROM files f
		WHERE f.state = ? AND f.hash IN (SELECT DISTINCT file_hash FROM pins)
	`, string(StateReady))
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// readyUnpinnedLRU returns READY, unpinned entries ordered oldest-accessed
// first -- the eviction candidate order.
func readyUnpinnedLRU(ctx context.Context, q queryer) ([]Entry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT hash, size, state, last_used_ms FROM files
		WHERE state = ? AND hash NOT IN (SELECT DISTINCT file_hash FROM pins)
		ORDER BY last_used_ms ASC
	`, string(StateReady))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var hashStr, stateStr string
		if err := rows.Scan(&hashStr, &e.Size, &stateStr, &e.LastUsedMs); err != nil {
			return nil, err
		}
		e.Hash = digest.Digest(hashStr)
		e.State = State(stateStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func deletePinsForApp(ctx context.Context, ex execer, appName string) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM pins WHERE app_name = ?`, appName)
	return err
}

func deletePin(ctx context.Context, ex execer, appName string, manifestHash digest.Digest) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM pins WHERE app_name = ? AND manifest_hash = ?`, appName, manifestHash.String())
	return err
}

func insertPin(ctx context.Context, ex execer, appName string, manifestHash, fileHash digest.Digest) error {
	_, err := ex.ExecContext(ctx, `
		INSERT OR IGNORE INTO pins (app_name, manifest_hash, file_hash) VALUES (?, ?, ?)
	`, appName, manifestHash.String(), fileHash.String())
	return err
}

func findPinForApp(ctx context.Context, q queryer, appName string) (digest.Digest, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT manifest_hash FROM pins WHERE app_name = ? LIMIT 1`, appName)
	var h string
	if err := row.Scan(&h); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return digest.Digest(h), true, nil
}

func allDirtyRows(ctx context.Context, q queryer) ([]Entry, error) {
	rows, err := q.QueryContext(ctx, `SELECT hash, size, state, last_used_ms FROM files WHERE state = ?`, string(StateDirtyDownload))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var hashStr, stateStr string
		if err := rows.Scan(&hashStr, &e.Size, &stateStr, &e.LastUsedMs); err != nil {
			return nil, err
		}
		e.Hash = digest.Digest(hashStr)
		e.State = State(stateStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func totalStats(ctx context.Context, q queryer) (Stats, error) {
	var s Stats
	row := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE state = ?`, string(StateReady))
	if err := row.Scan(&s.ReadyCount); err != nil {
		return Stats{}, err
	}
	row = q.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE state = ?`, string(StateDirtyDownload))
	if err := row.Scan(&s.DirtyCount); err != nil {
		return Stats{}, err
	}
	row = q.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM files WHERE state = ?`, string(StateReady))
	if err := row.Scan(&s.TotalBytes); err != nil {
		return Stats{}, err
	}
	pinned, err := pinnedSize(ctx, q)
	if err != nil {
		return Stats{}, err
	}
	s.PinnedBytes = pinned
	s.EvictableBytes = s.TotalBytes - pinned
	return s, nil
}

// queryer and execer narrow *sql.DB/*sql.Tx to the methods store.go uses, so
// every helper above works unchanged whether called inside or outside a
// transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
