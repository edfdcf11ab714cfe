package cache

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	zerrdefs "github.com/wuxler/zipline/pkg/zipline/errdefs"
)

// fileCache is the on-disk implementation of Cache: one file per entry named
// by its hex digest, fronted by an in-memory hot index and backed by a
// SQLite index that survives restarts.
type fileCache struct {
	dir          string
	fs           afero.Fs
	db           *sql.DB
	clock        Clock
	maxSizeBytes int64

	sf  singleflight.Group
	hot *hotIndex

	// mu serializes pin/unpin/evict sequences, which each read-then-write the
	// index across more than one statement and must not interleave.
	mu sync.Mutex
}

// New opens (creating if absent) a file cache rooted at dir. dir must be a
// real filesystem path: the SQLite index always addresses it directly,
// regardless of the afero.Fs passed via WithFS for blob I/O.
func New(dir string, opts ...Option) (Cache, error) {
	cfg := newConfig(opts...)
	if cfg.maxSizeBytes <= 0 {
		return nil, fmt.Errorf("cache: WithMaxSizeBytes must be set to a positive value")
	}
	if err := cfg.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create cache dir: %w", err)
	}
	db, err := openDB(filepath.Join(dir, "zipline.db"))
	if err != nil {
		return nil, err
	}
	return &fileCache{
		dir:          dir,
		fs:           cfg.fs,
		db:           db,
		clock:        cfg.clock,
		maxSizeBytes: cfg.maxSizeBytes,
		hot:          newHotIndex(cfg.hotCapacity),
	}, nil
}

func (c *fileCache) blobPath(hash digest.Digest) string {
	return filepath.Join(c.dir, hash.Encoded())
}

func (c *fileCache) GetOrPut(ctx context.Context, hash digest.Digest, producer Producer) ([]byte, error) {
	if data, ok, err := c.Read(ctx, hash); err != nil {
		return nil, err
	} else if ok {
		return data, nil
	}

	v, err, _ := c.sf.Do(hash.String(), func() (any, error) {
		// Re-check: another goroutine may have finished the write while we
		// were waiting to enter this singleflight call.
		if data, ok, err := c.Read(ctx, hash); err != nil {
			return nil, err
		} else if ok {
			return data, nil
		}

		data, err := producer(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", zerrdefs.ErrFetchFailed, err)
		}
		if err := c.writeEntry(ctx, hash, data); err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *fileCache) writeEntry(ctx context.Context, hash digest.Digest, data []byte) error {
	if int64(len(data)) > c.maxSizeBytes {
		return fmt.Errorf("%w: entry of %d bytes exceeds cache bound of %d bytes", zerrdefs.ErrCacheFull, len(data), c.maxSizeBytes)
	}

	tmpPath := c.blobPath(hash) + ".dirty"
	finalPath := c.blobPath(hash)

	f, err := c.fs.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}

	vr := newVerifyReader(bytes.NewReader(data))
	if _, err := io.Copy(f, vr); err != nil {
		_ = f.Close()
		_ = c.fs.Remove(tmpPath)
		return fmt.Errorf("cache: write temp file: %w", err)
	}
	if syncer, ok := f.(interface{ Sync() error }); ok {
		_ = syncer.Sync()
	}
	if err := f.Close(); err != nil {
		_ = c.fs.Remove(tmpPath)
		return fmt.Errorf("cache: close temp file: %w", err)
	}

	if got := vr.Digest(); got != hash {
		_ = c.fs.Remove(tmpPath)
		return fmt.Errorf("%w: expected %s, got %s", zerrdefs.ErrChecksumMismatch, hash, got)
	}

	if err := c.fs.Rename(tmpPath, finalPath); err != nil {
		_ = c.fs.Remove(tmpPath)
		return fmt.Errorf("cache: rename into place: %w", err)
	}

	now := c.clock.Now()
	entry := Entry{Hash: hash, Size: int64(len(data)), State: StateReady, LastUsedMs: now.UnixMilli()}
	if err := upsertFileRow(ctx, c.db, entry, now); err != nil {
		return fmt.Errorf("cache: index insert: %w", err)
	}
	c.hot.set(hash.String(), entry)

	return c.evict(ctx)
}

func (c *fileCache) Read(ctx context.Context, hash digest.Digest) ([]byte, bool, error) {
	key := hash.String()
	if e, ok := c.hot.get(key); ok {
		if e.State != StateReady {
			return nil, false, nil
		}
		return c.readReady(ctx, e)
	}

	e, ok, err := getFileRow(ctx, c.db, hash)
	if err != nil {
		return nil, false, fmt.Errorf("cache: read index: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	c.hot.set(key, e)
	if e.State != StateReady {
		return nil, false, nil
	}
	return c.readReady(ctx, e)
}

func (c *fileCache) readReady(ctx context.Context, e Entry) ([]byte, bool, error) {
	data, err := afero.ReadFile(c.fs, c.blobPath(e.Hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, fmt.Errorf("%w: index marks %s READY but its file is missing", zerrdefs.ErrCacheCorrupt, e.Hash)
		}
		return nil, false, fmt.Errorf("cache: read blob: %w", err)
	}

	now := c.clock.Now()
	_ = touchFileRow(ctx, c.db, e.Hash, now)
	e.LastUsedMs = now.UnixMilli()
	c.hot.set(e.Hash.String(), e)
	return data, true, nil
}

func (c *fileCache) Pin(ctx context.Context, appName string, manifestHash digest.Digest, fileHashes []digest.Digest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, h := range fileHashes {
		e, ok, err := getFileRow(ctx, c.db, h)
		if err != nil {
			return fmt.Errorf("cache: pin: %w", err)
		}
		if !ok || e.State != StateReady {
			return fmt.Errorf("%w: cannot pin %s, entry is not READY", zerrdefs.ErrCacheCorrupt, h)
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: pin: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deletePinsForApp(ctx, tx, appName); err != nil {
		return fmt.Errorf("cache: pin: release old pins: %w", err)
	}
	for _, h := range fileHashes {
		if err := insertPin(ctx, tx, appName, manifestHash, h); err != nil {
			return fmt.Errorf("cache: pin: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache: pin: commit: %w", err)
	}

	return c.evictLocked(ctx)
}

func (c *fileCache) Unpin(ctx context.Context, appName string, manifestHash digest.Digest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := deletePin(ctx, c.db, appName, manifestHash); err != nil {
		return fmt.Errorf("cache: unpin: %w", err)
	}
	return c.evictLocked(ctx)
}

func (c *fileCache) FindPin(ctx context.Context, appName string) (digest.Digest, bool, error) {
	return findPinForApp(ctx, c.db, appName)
}

func (c *fileCache) Prune(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dirty, err := allDirtyRows(ctx, c.db)
	if err != nil {
		return fmt.Errorf("cache: list dirty rows: %w", err)
	}
	for _, e := range dirty {
		_ = c.fs.Remove(c.blobPath(e.Hash) + ".dirty")
		if err := deleteFileRow(ctx, c.db, e.Hash); err != nil {
			return fmt.Errorf("cache: prune: %w", err)
		}
		c.hot.invalidate(e.Hash.String())
	}

	// A READY row whose file vanished underneath us (e.g. manual deletion)
	// is corrupt rather than dirty; drop it so later reads fail cleanly
	// instead of surfacing ErrCacheCorrupt on every lookup.
	ready, err := readyUnpinnedLRU(ctx, c.db)
	if err != nil {
		return fmt.Errorf("cache: prune: list ready rows: %w", err)
	}
	for _, e := range ready {
		if _, statErr := c.fs.Stat(c.blobPath(e.Hash)); os.IsNotExist(statErr) {
			if err := deleteFileRow(ctx, c.db, e.Hash); err != nil {
				return fmt.Errorf("cache: prune: drop orphan row: %w", err)
			}
			c.hot.invalidate(e.Hash.String())
		}
	}

	return c.evictLocked(ctx)
}

func (c *fileCache) Stats(ctx context.Context) (Stats, error) {
	return totalStats(ctx, c.db)
}

func (c *fileCache) Close() error {
	return c.db.Close()
}

// evict acquires mu itself; callers that already hold it must use
// evictLocked instead.
func (c *fileCache) evict(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked(ctx)
}

func (c *fileCache) evictLocked(ctx context.Context) error {
	pinned, err := pinnedSize(ctx, c.db)
	if err != nil {
		return fmt.Errorf("cache: evict: pinned size: %w", err)
	}

	budget := c.maxSizeBytes - pinned
	if budget < 0 {
		budget = 0
	}

	candidates, err := readyUnpinnedLRU(ctx, c.db)
	if err != nil {
		return fmt.Errorf("cache: evict: list candidates: %w", err)
	}

	var total int64
	for _, e := range candidates {
		total += e.Size
	}

	for _, e := range candidates {
		if total <= budget {
			break
		}
		if err := c.deleteEntryLocked(ctx, e.Hash); err != nil {
			return fmt.Errorf("cache: evict %s: %w", e.Hash, err)
		}
		total -= e.Size
	}
	return nil
}

func (c *fileCache) deleteEntryLocked(ctx context.Context, hash digest.Digest) error {
	if err := c.fs.Remove(c.blobPath(hash)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := deleteFileRow(ctx, c.db, hash); err != nil {
		return err
	}
	c.hot.invalidate(hash.String())
	return nil
}
