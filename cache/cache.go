package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Config struct {
	Size int           `json:"size"`
	TTL  time.Duration `json:"ttl"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Size: 2048,
		TTL:  time.Hour,
	}
}

// Entry is a finished correction and translation for one audio fingerprint.
type Entry struct {
	CorrectedText  string
	TranslatedText string
	CreatedAt      time.Time
}

type Stats struct {
	Hits   uint64
	Misses uint64
}

// Cache maps audio fingerprints to their corrected translations. It is safe
// for concurrent use; two identical misses racing each other both go to the
// providers and the later Add wins.
type Cache struct {
	lru    *expirable.LRU[string, Entry]
	hits   atomic.Uint64
	misses atomic.Uint64
}

func New(config Config) *Cache {
	if config.Size <= 0 {
		config.Size = DefaultConfig().Size
	}
	return &Cache{lru: expirable.NewLRU[string, Entry](config.Size, nil, config.TTL)}
}

// Fingerprint identifies an audio blob by its size and SHA-256.
func Fingerprint(blob []byte) string {
	sum := sha256.Sum256(blob)
	return strconv.Itoa(len(blob)) + ":" + hex.EncodeToString(sum[:])
}

func (c *Cache) Get(fingerprint string) (Entry, bool) {
	e, ok := c.lru.Get(fingerprint)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, ok
}

func (c *Cache) Add(fingerprint string, e Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	c.lru.Add(fingerprint, e)
}

// Purge drops every entry. Stats are kept.
func (c *Cache) Purge() {
	c.lru.Purge()
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
