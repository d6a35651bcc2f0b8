// Package filestore keeps each cache entry in its own file inside a
// directory. Writes are atomic (temp file + rename) and guarded by an
// advisory lock so separate processes sharing the directory never observe a
// half-written entry.
package filestore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/crypto/blake2b"

	"github.com/adeilh/carefeed/cache"
)

const (
	lockName   = ".lock"
	entryExt   = ".entry"
	retryDelay = 20 * time.Millisecond
)

type record struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Backend is a directory-backed cache.Backend.
type Backend struct {
	dir  string
	// mu serializes goroutines; the flock only coordinates processes.
	mu   sync.Mutex
	lock *flock.Flock
}

var _ cache.Backend = (*Backend)(nil)

// New creates dir if needed.
func New(dir string) (*Backend, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("filestore: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: ensure dir: %w", err)
	}
	return &Backend{dir: dir, lock: flock.New(filepath.Join(dir, lockName))}, nil
}

// Dir returns the backing directory.
func (b *Backend) Dir() string { return b.dir }

func (b *Backend) path(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return filepath.Join(b.dir, hex.EncodeToString(sum[:])+entryExt)
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	unlock, err := b.shared(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, err := readRecord(b.path(key))
	if err != nil {
		return nil, err
	}
	if rec.Key != key {
		return nil, cache.ErrNotFound
	}
	return rec.Value, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte) error {
	data, err := json.Marshal(record{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("filestore: encode %q: %w", key, err)
	}
	unlock, err := b.exclusive(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	tmp, err := os.CreateTemp(b.dir, "tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: close %q: %w", key, err)
	}
	if err := os.Rename(tmpName, b.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: commit %q: %w", key, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	unlock, err := b.exclusive(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(b.path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cache.ErrNotFound
		}
		return fmt.Errorf("filestore: delete %q: %w", key, err)
	}
	return nil
}

// Keys reads every entry file because names are hashed.
func (b *Backend) Keys(ctx context.Context, prefix string) ([]string, error) {
	unlock, err := b.shared(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	dirents, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: list: %w", err)
	}
	var keys []string
	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), entryExt) {
			continue
		}
		rec, err := readRecord(filepath.Join(b.dir, d.Name()))
		if err != nil {
			continue
		}
		if strings.HasPrefix(rec.Key, prefix) {
			keys = append(keys, rec.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *Backend) shared(ctx context.Context) (func(), error) {
	b.mu.Lock()
	ok, err := b.lock.TryRLockContext(ctx, retryDelay)
	if err != nil || !ok {
		b.mu.Unlock()
		return nil, lockErr(ctx, err)
	}
	return func() {
		_ = b.lock.Unlock()
		b.mu.Unlock()
	}, nil
}

func (b *Backend) exclusive(ctx context.Context) (func(), error) {
	b.mu.Lock()
	ok, err := b.lock.TryLockContext(ctx, retryDelay)
	if err != nil || !ok {
		b.mu.Unlock()
		return nil, lockErr(ctx, err)
	}
	return func() {
		_ = b.lock.Unlock()
		b.mu.Unlock()
	}, nil
}

func lockErr(ctx context.Context, err error) error {
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = errors.New("lock not acquired")
	}
	return fmt.Errorf("filestore: lock: %w", err)
}

func readRecord(path string) (record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return record{}, cache.ErrNotFound
		}
		return record{}, fmt.Errorf("filestore: read: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, fmt.Errorf("filestore: decode %s: %w", filepath.Base(path), err)
	}
	return rec, nil
}
