package resolver

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"

	"seriescomplete/models"
)

const defaultMemoryEntries = 100

// cacheRecord is the self-describing on-disk format: one JSON file per key.
// Checksum is an integrity check over the payload bytes, not a cryptographic
// commitment.
type cacheRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	TTLSecs   int64           `json:"ttlSecs"`
	Checksum  string          `json:"checksum"`
	Payload   json.RawMessage `json:"payload"`
}

type memEntry struct {
	value     *models.SeriesMetadata
	expiresAt time.Time
}

type diskWrite struct {
	key    string
	record cacheRecord
	flush  chan struct{} // non-nil marks a flush barrier, no file is written
}

// TwoTierCache is a bounded in-memory LRU backed by a checksummed on-disk
// store. Disk writes go through a write-behind queue drained by a single
// writer goroutine; Flush drains it synchronously and is called on shutdown.
// The cache is an optimization: disk failures are logged, never returned.
type TwoTierCache struct {
	mem *lru.Cache[string, memEntry]
	fs  afero.Fs
	dir string

	now func() time.Time

	mu     sync.Mutex
	closed bool
	writes chan diskWrite
	wg     sync.WaitGroup
}

// NewTwoTierCache creates the cache over the given filesystem and directory.
// maxEntries <= 0 uses the default memory bound of 100.
func NewTwoTierCache(fs afero.Fs, dir string, maxEntries int) (*TwoTierCache, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMemoryEntries
	}
	mem, err := lru.New[string, memEntry](maxEntries)
	if err != nil {
		return nil, err
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	c := &TwoTierCache{
		mem:    mem,
		fs:     fs,
		dir:    dir,
		now:    time.Now,
		writes: make(chan diskWrite, 64),
	}
	c.wg.Add(1)
	go c.writer()
	return c, nil
}

func (c *TwoTierCache) writer() {
	defer c.wg.Done()
	for w := range c.writes {
		if w.flush != nil {
			close(w.flush)
			continue
		}
		if err := c.writeFile(w.key, w.record); err != nil {
			log.Printf("[cache] disk write failed for %s: %v", w.key, err)
		}
	}
}

// Get checks memory first, then disk. A disk hit is promoted into memory.
// Corrupted or expired disk entries are deleted and reported as a miss.
func (c *TwoTierCache) Get(key string) (*models.SeriesMetadata, bool) {
	if entry, ok := c.mem.Get(key); ok {
		if c.now().Before(entry.expiresAt) {
			return entry.value, true
		}
		c.mem.Remove(key)
	}

	path := c.path(key)
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return nil, false
	}

	var rec cacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("[cache] deleting unreadable entry %s: %v", key, err)
		_ = c.fs.Remove(path)
		return nil, false
	}
	if checksum(rec.Payload) != rec.Checksum {
		log.Printf("[cache] checksum mismatch for %s, deleting", key)
		_ = c.fs.Remove(path)
		return nil, false
	}
	expiresAt := rec.Timestamp.Add(time.Duration(rec.TTLSecs) * time.Second)
	if !c.now().Before(expiresAt) {
		_ = c.fs.Remove(path)
		return nil, false
	}

	var value models.SeriesMetadata
	if err := json.Unmarshal(rec.Payload, &value); err != nil {
		_ = c.fs.Remove(path)
		return nil, false
	}

	c.mem.Add(key, memEntry{value: &value, expiresAt: expiresAt})
	return &value, true
}

// Set stores the value in memory immediately and queues the disk write.
func (c *TwoTierCache) Set(key string, value *models.SeriesMetadata, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		log.Printf("[cache] marshal failed for %s: %v", key, err)
		return
	}
	now := c.now()
	c.mem.Add(key, memEntry{value: value, expiresAt: now.Add(ttl)})

	rec := cacheRecord{
		Timestamp: now,
		TTLSecs:   int64(ttl / time.Second),
		Checksum:  checksum(payload),
		Payload:   payload,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		// Shutdown already drained the queue; write through synchronously.
		if err := c.writeFile(key, rec); err != nil {
			log.Printf("[cache] disk write failed for %s: %v", key, err)
		}
		return
	}
	c.writes <- diskWrite{key: key, record: rec}
}

// Flush blocks until every queued disk write has been persisted.
func (c *TwoTierCache) Flush() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	barrier := make(chan struct{})
	c.writes <- diskWrite{flush: barrier}
	c.mu.Unlock()
	<-barrier
}

// Close flushes pending writes and stops the writer goroutine.
func (c *TwoTierCache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.writes)
	c.mu.Unlock()
	c.wg.Wait()
}

// InvalidatePattern removes entries whose key contains the given substring
// from both tiers. An empty pattern clears everything.
func (c *TwoTierCache) InvalidatePattern(pattern string) int {
	removed := 0
	for _, key := range c.mem.Keys() {
		if pattern == "" || strings.Contains(key, pattern) {
			c.mem.Remove(key)
			removed++
		}
	}

	// File names embed the sanitized key slug, so match on the slugged form.
	slugged := slugify(pattern)
	infos, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		return removed
	}
	for _, fi := range infos {
		if fi.IsDir() || filepath.Ext(fi.Name()) != ".json" {
			continue
		}
		if pattern == "" || strings.Contains(fi.Name(), slugged) {
			if err := c.fs.Remove(filepath.Join(c.dir, fi.Name())); err == nil {
				removed++
			}
		}
	}
	return removed
}

func (c *TwoTierCache) writeFile(key string, rec cacheRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	path := c.path(key)
	tmp := path + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		return err
	}
	if err := c.fs.Rename(tmp, path); err != nil {
		_ = c.fs.Remove(tmp)
		return err
	}
	return nil
}

// path builds the file name for a key: a readable slug plus a short hash so
// distinct keys can never collide after sanitization.
func (c *TwoTierCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := fmt.Sprintf("%s-%s.json", slugify(key), hex.EncodeToString(sum[:4]))
	return filepath.Join(c.dir, name)
}

func slugify(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// checksum hashes the canonical (compacted) form of the payload so that JSON
// reformatting on disk does not read as corruption, while any content change
// still does.
func checksum(payload []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err == nil {
		payload = buf.Bytes()
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
