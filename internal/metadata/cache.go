package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fifosk/ebook-tools-sub003/internal/files"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
)

// DefaultCacheTTL keeps metadata for a week; external catalogs change
// slowly.
const DefaultCacheTTL = 7 * 24 * time.Hour

// CacheKey hashes the query's salient fields, lower-cased, into the first
// 16 hex characters of a SHA-256.
func CacheKey(q Query) string {
	tuple := strings.ToLower(strings.Join([]string{
		string(q.MediaType), q.Title, q.Author, q.ISBN, q.SeriesName,
		fmt.Sprint(q.Season), fmt.Sprint(q.Episode), fmt.Sprint(q.Year),
		q.YouTubeVideoID, q.IMDBID, q.TMDBID,
	}, "|"))
	sum := sha256.Sum256([]byte(tuple))
	return hex.EncodeToString(sum[:])[:16]
}

// cacheEnvelope is the on-disk shape of one entry.
type cacheEnvelope struct {
	CachedAt time.Time `json:"cached_at"`
	Query    Query     `json:"query"`
	Result   Result    `json:"result"`
}

// Cache is a file-per-key metadata cache with TTL expiry.
type Cache struct {
	Dir string
	TTL time.Duration

	now func() time.Time
}

func NewCache(dir string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{Dir: dir, TTL: ttl, now: time.Now}
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns a fresh cached result, or nil on miss. An expired entry is
// deleted before reporting the miss.
func (c *Cache) Get(q Query) *Result {
	path := c.path(CacheKey(q))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var env cacheEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Warn("Discarding unreadable cache entry", "path", path, "error", err)
		os.Remove(path)
		return nil
	}
	if c.now().Sub(env.CachedAt) > c.TTL {
		os.Remove(path)
		return nil
	}
	return &env.Result
}

// Put stores a result under the query's key.
func (c *Cache) Put(q Query, result Result) error {
	if err := files.EnsureDir(c.Dir, 0o755); err != nil {
		return err
	}
	env := cacheEnvelope{CachedAt: c.now(), Query: q, Result: result}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	return files.AtomicWrite(c.path(CacheKey(q)), data, 0o644)
}

// Clear removes every cache entry.
func (c *Cache) Clear() error {
	entries, err := filepath.Glob(filepath.Join(c.Dir, "*.json"))
	if err != nil {
		return err
	}
	for _, path := range entries {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}

// CleanupExpired removes stale entries and returns how many it deleted.
func (c *Cache) CleanupExpired() (int, error) {
	entries, err := filepath.Glob(filepath.Join(c.Dir, "*.json"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range entries {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var env cacheEnvelope
		if err := json.Unmarshal(data, &env); err != nil || c.now().Sub(env.CachedAt) > c.TTL {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed, nil
}
