package optimization

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultCovarianceTTL bounds how long a cached covariance matrix is served
// before it must be re-estimated.
const DefaultCovarianceTTL = 15 * time.Minute

type covariancePayload struct {
	Matrix [][]float64 `msgpack:"matrix"`
}

type cacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

// CovarianceCache memoizes estimated covariance matrices keyed by the exact
// universe and return data that produced them. Entries are stored msgpack
// encoded so a Get never aliases a matrix a caller may mutate.
type CovarianceCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	log     zerolog.Logger
}

func NewCovarianceCache(ttl time.Duration, log zerolog.Logger) *CovarianceCache {
	if ttl <= 0 {
		ttl = DefaultCovarianceTTL
	}
	return &CovarianceCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		log:     log.With().Str("component", "covariance_cache").Logger(),
	}
}

// Key hashes the symbols and their return series. Any change in universe
// membership, ordering, or a single observation yields a different key.
func (c *CovarianceCache) Key(series []AssetSeries) string {
	h := sha256.New()
	for _, s := range series {
		h.Write([]byte(s.Symbol))
		h.Write([]byte{0})
		binary.Write(h, binary.BigEndian, uint32(len(s.Returns)))
		for _, r := range s.Returns {
			binary.Write(h, binary.BigEndian, math.Float64bits(r))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CovarianceCache) Get(key string) ([][]float64, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}

	var payload covariancePayload
	if err := msgpack.Unmarshal(entry.payload, &payload); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to decode cached covariance, dropping entry")
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return payload.Matrix, true
}

func (c *CovarianceCache) Put(key string, matrix [][]float64) {
	payload, err := msgpack.Marshal(covariancePayload{Matrix: matrix})
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to encode covariance for cache")
		return
	}

	now := time.Now()
	c.mu.Lock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{payload: payload, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
}

// Len reports the number of stored entries, including ones past their TTL
// that have not been swept yet.
func (c *CovarianceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
