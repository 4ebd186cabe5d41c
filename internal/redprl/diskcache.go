package redprl

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Bump when cachedResponse changes shape.
const responseCacheSchema uint16 = 1

// ResponseCache stores raw tool responses on disk, keyed by everything that
// went into producing them. Safe for concurrent use; a nil cache is a no-op.
type ResponseCache struct {
	mu  sync.RWMutex
	dir string
}

type cachedResponse struct {
	Schema    uint16
	Path      string
	Response  string
	CreatedAt time.Time
}

// OpenResponseCache uses dir, or $XDG_CACHE_HOME/redprl-mcp when dir is empty.
func OpenResponseCache(dir string) (*ResponseCache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("locate cache dir: %w", err)
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, "redprl-mcp")
	}
	dir = filepath.Join(dir, "responses")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &ResponseCache{dir: dir}, nil
}

// cacheKeyer is implemented by runners whose output is determined by the key.
type cacheKeyer interface {
	CacheKey(doc Document) string
}

// CacheKey hashes the command line and the document contents.
func (r *ProcessRunner) CacheKey(doc Document) string {
	h := sha256.New()
	write := func(s string) {
		fmt.Fprintf(h, "%d:%s;", len(s), s)
	}
	write(r.Binary)
	write(string(r.Invocation))
	write(string(r.Stderr))
	for _, a := range r.Command(doc) {
		write(a)
	}
	write(doc.Text)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *ResponseCache) pathFor(key string) string {
	return filepath.Join(c.dir, key+".mp")
}

// Get returns the stored response. Unreadable or outdated entries are misses.
func (c *ResponseCache) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		return "", false
	}
	var entry cachedResponse
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return "", false
	}
	if entry.Schema != responseCacheSchema {
		return "", false
	}
	return entry.Response, true
}

// Put writes the entry through a temp file so readers never see a partial file.
func (c *ResponseCache) Put(key, path, response string) error {
	if c == nil {
		return nil
	}
	data, err := msgpack.Marshal(&cachedResponse{
		Schema:    responseCacheSchema,
		Path:      path,
		Response:  response,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.CreateTemp(c.dir, "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, c.pathFor(key)); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Remove deletes the entries recorded for path and reports how many went.
// Unreadable entries are left for a later Put to overwrite.
func (c *ResponseCache) Remove(path string) (int, error) {
	if c == nil {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".mp" {
			continue
		}
		file := filepath.Join(c.dir, e.Name())
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var entry cachedResponse
		if err := msgpack.Unmarshal(data, &entry); err != nil || entry.Path != path {
			continue
		}
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
