package eventbus

import (
	"crypto/sha256"
	"encoding/binary"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DeduplicationConfig controls how long an identical error is suppressed
// after its first occurrence.
type DeduplicationConfig struct {
	Enabled         bool
	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
}

// DefaultDeduplicationConfig returns the settings used when none are given.
func DefaultDeduplicationConfig() *DeduplicationConfig {
	return &DeduplicationConfig{
		Enabled:         true,
		TTL:             5 * time.Minute,
		MaxEntries:      2000,
		CleanupInterval: time.Minute,
	}
}

// ErrorDeduplicator suppresses repeat deliveries of the same error within a
// TTL window, so a stuck device callback logging on every block doesn't
// flood notify/mqttpublish consumers.
type ErrorDeduplicator struct {
	config *DeduplicationConfig
	cache  map[uint64]*dedupeEntry
	mu     sync.RWMutex

	entries  []*lruEntry
	entryMap map[uint64]int

	totalSeen       atomic.Uint64
	totalSuppressed atomic.Uint64
	cacheHits       atomic.Uint64
	cacheMisses     atomic.Uint64

	stopCleanup chan struct{}
	cleanupDone chan struct{}
	logger      *slog.Logger
}

type dedupeEntry struct {
	hash       uint64
	firstSeen  time.Time
	lastSeen   time.Time
	count      int64
	suppressed int64
}

type lruEntry struct {
	hash     uint64
	lastUsed time.Time
}

// NewErrorDeduplicator constructs a deduplicator, starting its background
// cleanup loop if config enables one.
func NewErrorDeduplicator(config *DeduplicationConfig, logger *slog.Logger) *ErrorDeduplicator {
	if config == nil {
		config = DefaultDeduplicationConfig()
	}
	ed := &ErrorDeduplicator{
		config:      config,
		cache:       make(map[uint64]*dedupeEntry),
		entries:     make([]*lruEntry, 0, config.MaxEntries),
		entryMap:    make(map[uint64]int),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
		logger:      logger,
	}
	if config.Enabled && config.CleanupInterval > 0 {
		go ed.cleanupLoop()
	}
	return ed
}

// ShouldProcess reports whether event is new (or past its TTL) and should
// be forwarded to consumers, recording it either way.
func (ed *ErrorDeduplicator) ShouldProcess(event ErrorEvent) bool {
	if ed == nil || !ed.config.Enabled {
		return true
	}

	ed.totalSeen.Add(1)
	hash := ed.calculateHash(event)

	ed.mu.Lock()
	defer ed.mu.Unlock()

	now := time.Now()
	entry, exists := ed.cache[hash]

	if !exists {
		ed.cacheMisses.Add(1)
		if len(ed.cache) >= ed.config.MaxEntries {
			ed.evictOldest()
		}
		entry = &dedupeEntry{hash: hash, firstSeen: now, lastSeen: now, count: 1}
		ed.cache[hash] = entry
		lru := &lruEntry{hash: hash, lastUsed: now}
		ed.entries = append(ed.entries, lru)
		ed.entryMap[hash] = len(ed.entries) - 1
		return true
	}

	ed.cacheHits.Add(1)

	if now.Sub(entry.lastSeen) > ed.config.TTL {
		entry.firstSeen = now
		entry.lastSeen = now
		entry.count = 1
		entry.suppressed = 0
		ed.updateLRU(hash, now)
		return true
	}

	entry.lastSeen = now
	entry.count++
	entry.suppressed++
	ed.totalSuppressed.Add(1)
	ed.updateLRU(hash, now)

	if entry.suppressed%10 == 0 {
		ed.logger.Debug("suppressing duplicate error",
			"component", event.GetComponent(), "category", event.GetCategory(),
			"count", entry.count, "suppressed", entry.suppressed, "first_seen", entry.firstSeen)
	}
	return false
}

func (ed *ErrorDeduplicator) calculateHash(event ErrorEvent) uint64 {
	h := sha256.New()
	h.Write([]byte(event.GetComponent()))
	h.Write([]byte(event.GetCategory()))
	h.Write([]byte(event.GetMessage()))

	if ctx := event.GetContext(); ctx != nil {
		if op, ok := ctx["operation"].(string); ok {
			h.Write([]byte(op))
		}
		if deviceName, ok := ctx["device_name"].(string); ok {
			h.Write([]byte(deviceName))
		}
		if path, ok := ctx["path"].(string); ok {
			h.Write([]byte(path))
		}
	}

	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

func (ed *ErrorDeduplicator) updateLRU(hash uint64, now time.Time) {
	if idx, ok := ed.entryMap[hash]; ok {
		ed.entries[idx].lastUsed = now
	}
}

func (ed *ErrorDeduplicator) evictOldest() {
	if len(ed.entries) == 0 {
		return
	}

	oldestIdx := 0
	oldestTime := ed.entries[0].lastUsed
	for i := 1; i < len(ed.entries); i++ {
		if ed.entries[i].lastUsed.Before(oldestTime) {
			oldestIdx = i
			oldestTime = ed.entries[i].lastUsed
		}
	}

	oldestHash := ed.entries[oldestIdx].hash
	delete(ed.cache, oldestHash)
	delete(ed.entryMap, oldestHash)
	ed.entries = append(ed.entries[:oldestIdx], ed.entries[oldestIdx+1:]...)
	for i := oldestIdx; i < len(ed.entries); i++ {
		ed.entryMap[ed.entries[i].hash] = i
	}
}

func (ed *ErrorDeduplicator) cleanupLoop() {
	ticker := time.NewTicker(ed.config.CleanupInterval)
	defer ticker.Stop()
	defer close(ed.cleanupDone)

	for {
		select {
		case <-ticker.C:
			ed.cleanup()
		case <-ed.stopCleanup:
			return
		}
	}
}

func (ed *ErrorDeduplicator) cleanup() {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	now := time.Now()
	var toRemove []uint64
	for hash, entry := range ed.cache {
		if now.Sub(entry.lastSeen) > ed.config.TTL {
			toRemove = append(toRemove, hash)
		}
	}

	for _, hash := range toRemove {
		delete(ed.cache, hash)
		if idx, ok := ed.entryMap[hash]; ok {
			ed.entries = append(ed.entries[:idx], ed.entries[idx+1:]...)
			delete(ed.entryMap, hash)
			for i := idx; i < len(ed.entries); i++ {
				ed.entryMap[ed.entries[i].hash] = i
			}
		}
	}

	if len(toRemove) > 0 && ed.logger != nil {
		ed.logger.Debug("cleaned up expired deduplication entries",
			"expired", len(toRemove), "remaining", len(ed.cache))
	}
}

// DeduplicationStats reports deduplicator cache performance.
type DeduplicationStats struct {
	TotalSeen       uint64
	TotalSuppressed uint64
	CacheSize       int
	CacheHits       uint64
	CacheMisses     uint64
	HitRate         float64
}

// GetStats returns a snapshot of deduplication counters.
func (ed *ErrorDeduplicator) GetStats() DeduplicationStats {
	if ed == nil {
		return DeduplicationStats{}
	}

	ed.mu.RLock()
	cacheSize := len(ed.cache)
	ed.mu.RUnlock()

	hits := ed.cacheHits.Load()
	misses := ed.cacheMisses.Load()
	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return DeduplicationStats{
		TotalSeen:       ed.totalSeen.Load(),
		TotalSuppressed: ed.totalSuppressed.Load(),
		CacheSize:       cacheSize,
		CacheHits:       hits,
		CacheMisses:     misses,
		HitRate:         hitRate,
	}
}

// Shutdown stops the cleanup loop, blocking until it exits.
func (ed *ErrorDeduplicator) Shutdown() {
	if ed == nil {
		return
	}
	if ed.config.Enabled && ed.config.CleanupInterval > 0 {
		close(ed.stopCleanup)
		<-ed.cleanupDone
	}
}
