package securefs

import (
	"fmt"
	"io/fs"
	"sync"
	"time"
)

// PathCache memoizes the filesystem syscalls behind path validation
// (symlink resolution, stat, absolute-path resolution, within-base checks)
// for a short TTL. Project trees routinely re-validate the same clip/export
// path many times per playback cycle; this keeps those repeats off the
// syscall path without ever caching a failure, since a transient error
// (file briefly locked, NFS hiccup) shouldn't freeze a negative result.
type PathCache struct {
	mu sync.Mutex

	symlinkTTL    time.Duration
	statTTL       time.Duration
	absPathTTL    time.Duration
	validateTTL   time.Duration
	withinBaseTTL time.Duration

	symlinks   map[string]cacheEntry[string]
	stats      map[string]cacheEntry[fs.FileInfo]
	absPaths   map[string]cacheEntry[string]
	validated  map[string]cacheEntry[string]
	withinBase map[string]cacheEntry[bool]
}

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

const defaultCacheTTL = 2 * time.Second

// NewPathCache returns a PathCache with a default TTL for every category.
func NewPathCache() *PathCache {
	return &PathCache{
		symlinkTTL:    defaultCacheTTL,
		statTTL:       defaultCacheTTL,
		absPathTTL:    defaultCacheTTL,
		validateTTL:   defaultCacheTTL,
		withinBaseTTL: defaultCacheTTL,
		symlinks:      make(map[string]cacheEntry[string]),
		stats:         make(map[string]cacheEntry[fs.FileInfo]),
		absPaths:      make(map[string]cacheEntry[string]),
		validated:     make(map[string]cacheEntry[string]),
		withinBase:    make(map[string]cacheEntry[bool]),
	}
}

func getCached[T any](pc *PathCache, table map[string]cacheEntry[T], key string, ttl time.Duration, compute func() (T, error)) (T, error) {
	pc.mu.Lock()
	entry, ok := table[key]
	pc.mu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	value, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}

	pc.mu.Lock()
	table[key] = cacheEntry[T]{value: value, expiresAt: time.Now().Add(ttl)}
	pc.mu.Unlock()
	return value, nil
}

// GetSymlinkResolution caches the result of resolving path's symlinks.
func (pc *PathCache) GetSymlinkResolution(path string, compute func(string) (string, error)) (string, error) {
	return getCached(pc, pc.symlinks, path, pc.symlinkTTL, func() (string, error) { return compute(path) })
}

// GetStat caches the result of stat-ing path.
func (pc *PathCache) GetStat(path string, compute func(string) (fs.FileInfo, error)) (fs.FileInfo, error) {
	return getCached(pc, pc.stats, path, pc.statTTL, func() (fs.FileInfo, error) { return compute(path) })
}

// GetAbsPath caches the result of resolving path to an absolute path.
func (pc *PathCache) GetAbsPath(path string, compute func(string) (string, error)) (string, error) {
	return getCached(pc, pc.absPaths, path, pc.absPathTTL, func() (string, error) { return compute(path) })
}

// GetValidatePath caches the result of validating a relative path.
func (pc *PathCache) GetValidatePath(path string, compute func(string) (string, error)) (string, error) {
	return getCached(pc, pc.validated, path, pc.validateTTL, func() (string, error) { return compute(path) })
}

// GetWithinBase caches the result of a base-directory containment check.
func (pc *PathCache) GetWithinBase(key string, compute func() (bool, error)) (bool, error) {
	return getCached(pc, pc.withinBase, key, pc.withinBaseTTL, compute)
}

// CacheStats reports how many live entries each cache table holds.
type CacheStats struct {
	SymlinkTotal   int
	StatTotal      int
	AbsPathTotal   int
	ValidateTotal  int
	WithinBaseTotal int
}

// GetCacheStats returns the current size of each cache table.
func (pc *PathCache) GetCacheStats() CacheStats {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return CacheStats{
		SymlinkTotal:    len(pc.symlinks),
		StatTotal:       len(pc.stats),
		AbsPathTotal:    len(pc.absPaths),
		ValidateTotal:   len(pc.validated),
		WithinBaseTotal: len(pc.withinBase),
	}
}

// ClearExpiredCache drops every entry past its TTL from every table.
func (pc *PathCache) ClearExpiredCache() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	now := time.Now()
	for k, v := range pc.symlinks {
		if now.After(v.expiresAt) {
			delete(pc.symlinks, k)
		}
	}
	for k, v := range pc.stats {
		if now.After(v.expiresAt) {
			delete(pc.stats, k)
		}
	}
	for k, v := range pc.absPaths {
		if now.After(v.expiresAt) {
			delete(pc.absPaths, k)
		}
	}
	for k, v := range pc.validated {
		if now.After(v.expiresAt) {
			delete(pc.validated, k)
		}
	}
	for k, v := range pc.withinBase {
		if now.After(v.expiresAt) {
			delete(pc.withinBase, k)
		}
	}
}

// IsPathWithinBaseWithCache is IsPathWithinBase with its result memoized
// in cache under the basePath+targetPath pair.
func IsPathWithinBaseWithCache(cache *PathCache, basePath, targetPath string) (bool, error) {
	if cache == nil {
		return IsPathWithinBase(basePath, targetPath)
	}
	key := fmt.Sprintf("%s\x00%s", basePath, targetPath)
	return cache.GetWithinBase(key, func() (bool, error) {
		return IsPathWithinBase(basePath, targetPath)
	})
}
