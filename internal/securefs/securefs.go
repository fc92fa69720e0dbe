// Package securefs provides filesystem operations with path validation,
// generalized from internal/httpcontroller/securefs (which confines the
// UI shell's static-file serving to one directory) to confining the
// engine's project/export/recordings directories and canonicalizing
// arbitrary source paths for the sample cache. The path-resolution cache
// and extra accessors (Readlink, ParentPath, read-size limits) carry over
// the teacher's own securefs package, which layers the same features on
// top of the httpcontroller implementation; this version drops the
// echo-specific ServeFile/ServeRelativeFile handlers and named-pipe
// support, since this engine serves no HTTP static files and has no RTSP
// stream to pipe frames from.
package securefs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/resonantfield/tapedeck/internal/errors"
)

// SecureFS restricts filesystem operations to one base directory using
// Go's os.Root for OS-level sandboxing: directory traversal via "../",
// symlinks pointing outside the base, and TOCTOU races are all rejected
// at the OS level rather than by string matching alone.
type SecureFS struct {
	baseDir string
	root    *os.Root
	cache   *PathCache

	maxReadFileSize int64
}

// New creates a SecureFS rooted at baseDir, creating the directory if it
// doesn't exist.
func New(baseDir string) (*SecureFS, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("securefs").
			Category(errors.CategorySecurePath).
			Context("base_dir", baseDir).
			Build()
	}

	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, errors.Wrap(err).
			Component("securefs").
			Category(errors.CategoryFileIO).
			Context("base_dir", absPath).
			Build()
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("securefs").
			Category(errors.CategorySecurePath).
			Context("base_dir", absPath).
			Build()
	}

	return &SecureFS{baseDir: absPath, root: root, cache: NewPathCache()}, nil
}

// Close releases the sandboxed root handle.
func (sfs *SecureFS) Close() error {
	return sfs.root.Close()
}

// BaseDir returns the absolute base directory this SecureFS is rooted at.
func (sfs *SecureFS) BaseDir() string {
	return sfs.baseDir
}

// SetMaxReadFileSize bounds how many bytes ReadFile will read; 0 means
// unlimited. Export/render jobs read whole clips into memory, so this
// guards against an accidentally huge or corrupt file stalling a worker.
func (sfs *SecureFS) SetMaxReadFileSize(n int64) {
	sfs.maxReadFileSize = n
}

// GetMaxReadFileSize returns the current ReadFile size limit, 0 meaning
// unlimited.
func (sfs *SecureFS) GetMaxReadFileSize() int64 {
	return sfs.maxReadFileSize
}

// GetCacheStats reports the current size of the path-resolution cache.
func (sfs *SecureFS) GetCacheStats() CacheStats {
	if sfs.cache == nil {
		return CacheStats{}
	}
	return sfs.cache.GetCacheStats()
}

// ClearExpiredCache evicts expired entries from the path-resolution cache.
func (sfs *SecureFS) ClearExpiredCache() {
	if sfs.cache != nil {
		sfs.cache.ClearExpiredCache()
	}
}

// ParentPath returns the parent directory of path, within the sandbox, or
// "" if path is already the base directory.
func (sfs *SecureFS) ParentPath(path string) (string, error) {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return "", err
	}
	if relPath == "" || relPath == "." {
		return "", nil
	}
	parent := filepath.Dir(relPath)
	if parent == "." {
		return sfs.baseDir, nil
	}
	return filepath.Join(sfs.baseDir, parent), nil
}

// Readlink returns the target of the symlink at path, without validating
// or following it. A symlink whose target escapes the sandbox still
// reports its target string here; the escape is rejected only when
// something tries to follow it (Open, Stat, ...).
func (sfs *SecureFS) Readlink(path string) (string, error) {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return "", err
	}
	return os.Readlink(filepath.Join(sfs.baseDir, relPath))
}

// Open opens a file at a path relative to the base directory, rejecting
// any path that escapes the sandbox.
func (sfs *SecureFS) Open(relPath string) (*os.File, error) {
	cleaned, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return nil, err
	}
	f, err := sfs.root.Open(cleaned)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("securefs").
			Category(errors.CategoryFileIO).
			Context("path", relPath).
			Build()
	}
	return f, nil
}

// Create creates a file at a path relative to the base directory.
func (sfs *SecureFS) Create(relPath string) (*os.File, error) {
	cleaned, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return nil, err
	}
	f, err := sfs.root.Create(cleaned)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("securefs").
			Category(errors.CategoryFileIO).
			Context("path", relPath).
			Build()
	}
	return f, nil
}

// RelativePath converts an absolute or relative path into one relative to
// the base directory, rejecting anything that resolves outside it.
func (sfs *SecureFS) RelativePath(path string) (string, error) {
	path = filepath.Clean(path)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err).
			Component("securefs").
			Category(errors.CategorySecurePath).
			Context("path", path).
			Build()
	}

	within, err := IsPathWithinBase(sfs.baseDir, absPath)
	if err != nil {
		return "", errors.Wrap(err).
			Component("securefs").
			Category(errors.CategorySecurePath).
			Context("path", path).
			Build()
	}
	if !within {
		return "", outsideBaseError(path, sfs.baseDir)
	}

	relPath, err := filepath.Rel(sfs.baseDir, absPath)
	if err != nil {
		return "", errors.Wrap(err).
			Component("securefs").
			Category(errors.CategorySecurePath).
			Context("path", path).
			Build()
	}
	return strings.TrimPrefix(relPath, string(filepath.Separator)), nil
}

// ValidateRelativePath checks that a path, assumed relative to the base
// directory, is safe and canonical, returning the cleaned relative path.
func (sfs *SecureFS) ValidateRelativePath(relPath string) (string, error) {
	cleaned := filepath.Clean(relPath)

	if filepath.IsAbs(cleaned) {
		return "", errors.New(errors.NewStd("path must be relative")).
			Component("securefs").
			Category(errors.CategorySecurePath).
			Context("path", relPath).
			Build()
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", errors.New(errors.NewStd("security error: path traverses outside base directory")).
			Component("securefs").
			Category(errors.CategorySecurePath).
			Context("path", relPath).
			Build()
	}

	return strings.TrimPrefix(cleaned, string(filepath.Separator)), nil
}

// MkdirAll creates a directory and all necessary parents within the
// sandbox.
func (sfs *SecureFS) MkdirAll(path string, perm os.FileMode) error {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return err
	}
	if relPath == "" || relPath == "." {
		return nil
	}

	components := strings.Split(relPath, string(filepath.Separator))
	currentPath := ""
	for _, component := range components {
		if component == "" {
			continue
		}
		if currentPath == "" {
			currentPath = component
		} else {
			currentPath = filepath.Join(currentPath, component)
		}
		if err := sfs.root.Mkdir(currentPath, perm); err != nil && !os.IsExist(err) {
			return errors.Wrap(err).
				Component("securefs").
				Category(errors.CategoryFileIO).
				Context("path", currentPath).
				Build()
		}
	}
	return nil
}

// RemoveAll removes path and everything under it, walking the tree with
// os.Root operations since os.Root has no built-in RemoveAll.
func (sfs *SecureFS) RemoveAll(path string) error {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return err
	}

	info, err := sfs.root.Stat(relPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err).Component("securefs").Category(errors.CategoryFileIO).Context("path", path).Build()
	}

	if !info.IsDir() {
		return sfs.root.Remove(relPath)
	}

	dir, err := sfs.root.Open(relPath)
	if err != nil {
		return errors.Wrap(err).Component("securefs").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	entries, err := dir.ReadDir(0)
	dir.Close()
	if err != nil {
		return errors.Wrap(err).Component("securefs").Category(errors.CategoryFileIO).Context("path", path).Build()
	}

	for _, entry := range entries {
		childPath := filepath.Join(sfs.baseDir, relPath, entry.Name())
		if entry.IsDir() {
			if err := sfs.RemoveAll(childPath); err != nil {
				return err
			}
		} else if err := sfs.root.Remove(filepath.Join(relPath, entry.Name())); err != nil {
			return errors.Wrap(err).Component("securefs").Category(errors.CategoryFileIO).Context("path", childPath).Build()
		}
	}

	return sfs.root.Remove(relPath)
}

// Remove removes a single file or empty directory within the sandbox.
func (sfs *SecureFS) Remove(path string) error {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return err
	}
	if err := sfs.root.Remove(relPath); err != nil {
		return errors.Wrap(err).Component("securefs").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	return nil
}

// OpenFile opens a file within the sandbox with the given flags.
func (sfs *SecureFS) OpenFile(path string, flag int, perm os.FileMode) (*os.File, error) {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return nil, err
	}
	f, err := sfs.root.OpenFile(relPath, flag, perm)
	if err != nil {
		return nil, errors.Wrap(err).Component("securefs").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	return f, nil
}

// Stat returns file info for path, following symlinks.
func (sfs *SecureFS) Stat(path string) (os.FileInfo, error) {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return nil, err
	}
	info, err := sfs.root.Stat(relPath)
	if err != nil {
		return nil, errors.Wrap(err).Component("securefs").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	return info, nil
}

// Lstat returns file info for path without following a trailing symlink.
func (sfs *SecureFS) Lstat(path string) (os.FileInfo, error) {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return nil, err
	}
	info, err := sfs.root.Lstat(relPath)
	if err != nil {
		return nil, errors.Wrap(err).Component("securefs").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	return info, nil
}

// StatRel stats a path already known to be relative to the base directory.
func (sfs *SecureFS) StatRel(relPath string) (os.FileInfo, error) {
	cleaned, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return nil, err
	}
	info, err := sfs.root.Stat(cleaned)
	if err != nil {
		return nil, errors.Wrap(err).Component("securefs").Category(errors.CategoryFileIO).Context("path", relPath).Build()
	}
	return info, nil
}

// Exists reports whether path exists within the sandbox.
func (sfs *SecureFS) Exists(path string) (bool, error) {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return false, err
	}
	_, err = sfs.root.Stat(relPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err).Component("securefs").Category(errors.CategoryFileIO).Context("path", path).Build()
}

// ExistsNoErr is Exists with validation failures collapsed to false.
func (sfs *SecureFS) ExistsNoErr(path string) bool {
	exists, err := sfs.Exists(path)
	if err != nil {
		return false
	}
	return exists
}

// ReadDir reads the entries of a directory within the sandbox.
func (sfs *SecureFS) ReadDir(path string) ([]os.DirEntry, error) {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return nil, err
	}
	if relPath == "" {
		relPath = "."
	}
	dir, err := sfs.root.Open(relPath)
	if err != nil {
		return nil, errors.Wrap(err).Component("securefs").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	defer dir.Close()
	entries, err := dir.ReadDir(0)
	if err != nil {
		return nil, errors.Wrap(err).Component("securefs").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	return entries, nil
}

// ReadFile reads the full contents of path, rejecting files larger than
// GetMaxReadFileSize when a limit is set.
func (sfs *SecureFS) ReadFile(path string) ([]byte, error) {
	file, err := sfs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if sfs.maxReadFileSize > 0 {
		info, err := file.Stat()
		if err != nil {
			return nil, errors.Wrap(err).Component("securefs").Category(errors.CategoryFileIO).Context("path", path).Build()
		}
		if info.Size() > sfs.maxReadFileSize {
			return nil, errors.New(errors.NewStd("file exceeds maximum read size")).
				Component("securefs").
				Category(errors.CategoryInvalidArgument).
				Context("path", path).
				Context("size", info.Size()).
				Context("max_size", sfs.maxReadFileSize).
				Build()
		}
	}

	return io.ReadAll(file)
}

// WriteFile creates or truncates path within the sandbox and writes data.
func (sfs *SecureFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	file, err := sfs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.Write(data)
	if err != nil {
		return errors.Wrap(err).Component("securefs").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	return nil
}

// IsPathWithinBase reports whether targetPath resolves to a location
// inside or equal to basePath, resolving symlinks where possible.
func IsPathWithinBase(basePath, targetPath string) (bool, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return false, fmt.Errorf("resolving base path: %w", err)
	}
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false, fmt.Errorf("resolving target path: %w", err)
	}

	absBase = filepath.Clean(absBase)
	absTarget = filepath.Clean(absTarget)

	if !filepath.IsLocal(filepath.Base(absTarget)) {
		return false, nil
	}

	if _, err := os.Stat(absTarget); os.IsNotExist(err) {
		return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(filepath.Separator)), nil
	}

	if resolved, err := filepath.EvalSymlinks(absBase); err == nil {
		absBase = resolved
	}
	if resolved, err := filepath.EvalSymlinks(absTarget); err == nil {
		absTarget = resolved
	}

	absBase = filepath.Clean(absBase)
	absTarget = filepath.Clean(absTarget)

	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(filepath.Separator)), nil
}

// CanonicalizePath resolves path to an absolute, symlink-resolved form
// suitable for use as a sourcecache key. Unlike SecureFS, this performs no
// base-directory confinement — sample sources may live anywhere on disk —
// but still rejects anything that fails to resolve cleanly.
func CanonicalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err).
			Component("securefs").
			Category(errors.CategorySecurePath).
			Context("path", path).
			Build()
	}

	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolved
	}

	return filepath.Clean(absPath), nil
}

func outsideBaseError(path, baseDir string) error {
	return errors.New(errors.NewStd(fmt.Sprintf("security error: path %s is outside allowed directory %s", path, baseDir))).
		Component("securefs").
		Category(errors.CategorySecurePath).
		Context("path", path).
		Context("base_dir", baseDir).
		Build()
}

// IsPathValidWithinBase checks that path is within baseDir and returns an
// error if not. A target that doesn't exist yet is tolerated rather than
// treated as a security error, since callers often validate a path they
// are about to create (export destinations, new recordings).
func IsPathValidWithinBase(baseDir, path string) error {
	isWithin, err := IsPathWithinBase(baseDir, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("path validation error: %w", err)
	}
	if !isWithin {
		return fmt.Errorf("security error: path %s is outside allowed directory %s", path, baseDir)
	}
	return nil
}
