package internal

import (
	"crypto/md5"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	tt "github.com/gnolang/irreduce/internal/types"
)

const cacheFileName = "verdict_cache.gob"

// VerdictEntry is one persisted oracle answer. The verdict is stored as a
// plain int so gob does not route it through its text marshaller.
type VerdictEntry struct {
	Verdict      int
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Cache memoises oracle verdicts across runs. Keys are hashed, so callers
// may use arbitrarily long keys such as an oracle identity followed by a
// module fingerprint. An empty CacheDir keeps the cache in memory.
type Cache struct {
	CacheDir string
	entries  map[string]VerdictEntry
	mutex    sync.RWMutex
	maxAge   time.Duration
	dirty    bool
}

func NewCache(cacheDir string) (*Cache, error) {
	cache := &Cache{
		CacheDir: cacheDir,
		entries:  make(map[string]VerdictEntry),
	}
	if cacheDir == "" {
		return cache, nil
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := cache.load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	return cache, nil
}

func (c *Cache) path() string { return filepath.Join(c.CacheDir, cacheFileName) }

func (c *Cache) load() error {
	file, err := os.Open(c.path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(&c.entries); err != nil {
		return fmt.Errorf("failed to decode cache file: %w", err)
	}
	return nil
}

func (c *Cache) save() error {
	if c.CacheDir == "" {
		return nil
	}
	tmp := c.path() + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if err := gob.NewEncoder(file).Encode(c.entries); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return os.Rename(tmp, c.path())
}

func hashKey(key string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(key)))
}

// Put records v in memory. Flush writes pending entries to disk.
func (c *Cache) Put(key string, v tt.Verdict) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	c.entries[hashKey(key)] = VerdictEntry{
		Verdict:      int(v),
		CreatedAt:    now,
		LastAccessed: now,
	}
	c.dirty = true
	return nil
}

func (c *Cache) Get(key string) (tt.Verdict, bool) {
	h := hashKey(key)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[h]
	if !exists {
		return 0, false
	}
	if c.maxAge > 0 && time.Since(entry.CreatedAt) > c.maxAge {
		delete(c.entries, h)
		c.dirty = true
		return 0, false
	}

	entry.LastAccessed = time.Now()
	c.entries[h] = entry
	return tt.Verdict(entry.Verdict), true
}

// Flush persists the cache if it changed since the last flush.
func (c *Cache) Flush() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.dirty {
		return nil
	}
	if err := c.save(); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

func (c *Cache) SetMaxAge(duration time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.maxAge = duration
}

func (c *Cache) InvalidateAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]VerdictEntry)
	c.dirty = false
	_ = c.save() // manual operation; a stale file is reloaded as empty next time anyway
}

// CommandFingerprint identifies a command line together with the content
// of the files it depends on: the resolved executable and every argument
// naming a regular file. Editing a test script therefore changes the
// fingerprint and retires the verdicts cached for the old script.
func CommandFingerprint(argv []string) (string, error) {
	if len(argv) == 0 {
		return "", nil
	}
	hash := md5.New()
	for i, arg := range argv {
		fmt.Fprintf(hash, "%d:%s\x00", len(arg), arg)

		path := arg
		if i == 0 {
			resolved, err := exec.LookPath(arg)
			if err != nil {
				return "", fmt.Errorf("failed to resolve %s: %w", arg, err)
			}
			path = resolved
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		fileHash, err := getFileHash(path)
		if err != nil {
			return "", fmt.Errorf("failed to get hash for %s: %w", path, err)
		}
		fmt.Fprintf(hash, "%s\x00", fileHash)
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

func getFileHash(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}
