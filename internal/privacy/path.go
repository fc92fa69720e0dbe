package privacy

import "strings"

// AnonymizePath replaces every path segment with a stable hash, preserving
// path separators and the final extension so results remain useful for
// correlating recurring errors without exposing directory or file names.
func AnonymizePath(path string) string {
	if path == "" {
		return ""
	}
	if path == "/" {
		return "empty-path"
	}

	sep := getPathSeparator(path)
	segments := strings.Split(path, sep)

	prefix := ""
	if isAbsolutePath(path) && sep == "/" {
		prefix = "/"
		segments = segments[1:]
	}

	anonymized := make([]string, 0, len(segments))
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		anonymized = append(anonymized, anonymizePathSegment(seg, i == len(segments)-1))
	}

	return prefix + strings.Join(anonymized, sep)
}

// isAbsolutePath reports whether path is a Unix absolute path or a Windows
// path rooted at a drive letter.
func isAbsolutePath(path string) bool {
	if path == "" {
		return false
	}
	if strings.HasPrefix(path, "/") {
		return true
	}
	if len(path) >= 3 && path[1] == ':' && (path[2] == '\\' || path[2] == '/') {
		c := path[0]
		return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
	}
	return false
}

// getPathSeparator returns the separator used by path, preferring backslash
// when both are present (Windows paths with a drive letter), and defaulting
// to forward slash otherwise.
func getPathSeparator(path string) string {
	if strings.Contains(path, "\\") {
		return "\\"
	}
	return "/"
}

// anonymizePathSegment hashes a single path segment. When isLast is true and
// the segment carries a file extension, the extension is preserved so log
// correlation on file type survives anonymization.
func anonymizePathSegment(segment string, isLast bool) string {
	if segment == "" {
		return ""
	}

	if isLast {
		if dot := strings.LastIndex(segment, "."); dot > 0 {
			ext := segment[dot:]
			return "path-" + shortHash(segment) + ext
		}
	}

	return "path-" + shortHash(segment)
}
