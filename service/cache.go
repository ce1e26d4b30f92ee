package service

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"priorauth-backend/models"
)

// DefaultCacheSize bounds the default result cache. Entries are
// idempotent, so eviction only costs a recomputation.
const DefaultCacheSize = 4096

// ResultCache stores per-criterion results keyed by fingerprint. It is
// shared by all in-flight evaluations in the process, so
// implementations must be safe under concurrent access. Writes for the
// same fingerprint always carry the same value; last-write-wins is
// acceptable. Correctness never depends on a hit.
type ResultCache interface {
	Get(fingerprint string) (*models.CriterionResult, bool)
	Put(fingerprint string, result *models.CriterionResult)
}

// LRUResultCache is the default ResultCache: a bounded, concurrency-safe
// LRU map.
type LRUResultCache struct {
	inner *lru.Cache[string, *models.CriterionResult]
}

// NewLRUResultCache creates a bounded result cache.
func NewLRUResultCache(size int) (*LRUResultCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	inner, err := lru.New[string, *models.CriterionResult](size)
	if err != nil {
		return nil, err
	}
	return &LRUResultCache{inner: inner}, nil
}

// Get returns a cached result for a fingerprint.
func (c *LRUResultCache) Get(fingerprint string) (*models.CriterionResult, bool) {
	return c.inner.Get(fingerprint)
}

// Put stores a result under a fingerprint.
func (c *LRUResultCache) Put(fingerprint string, result *models.CriterionResult) {
	c.inner.Add(fingerprint, result)
}

// Len returns the number of cached entries.
func (c *LRUResultCache) Len() int {
	return c.inner.Len()
}

// NopResultCache never hits and never stores; used by tests that must
// observe every collaborator call.
type NopResultCache struct{}

// Get always misses.
func (NopResultCache) Get(string) (*models.CriterionResult, bool) { return nil, false }

// Put discards the entry.
func (NopResultCache) Put(string, *models.CriterionResult) {}
