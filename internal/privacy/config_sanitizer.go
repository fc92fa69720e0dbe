package privacy

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// ConfigSanitizer redacts sensitive fields out of a generic configuration
// tree (map[string]interface{}), the shape produced by unmarshaling
// config into a map for display or support-bundle export.
type ConfigSanitizer struct {
	mu     sync.RWMutex
	fields map[string]bool
}

// defaultSensitiveFields lists leaf field names (matched case-insensitively)
// whose string value is replaced wholesale with RedactedMarker.
var defaultSensitiveFields = []string{
	"password", "username", "host",
	"apikey", "api_key", "secret", "clientsecret", "sessionsecret",
	"encryption_key", "dsn", "token", "userid",
}

// urlCredentialFields lists leaf field names whose string (or []string)
// value is a URL: credentials embedded in the URL are stripped, but the
// field itself is kept so the destination remains useful for diagnosis.
var urlCredentialFields = map[string]bool{
	"broker": true, "url": true, "urls": true,
}

// NewConfigSanitizer returns a ConfigSanitizer seeded with the default set of
// sensitive field names.
func NewConfigSanitizer() *ConfigSanitizer {
	cs := &ConfigSanitizer{fields: make(map[string]bool, len(defaultSensitiveFields))}
	for _, f := range defaultSensitiveFields {
		cs.fields[f] = true
	}
	return cs
}

// IsSensitiveField reports whether fieldName (matched case-insensitively on
// its last dotted-path component) is configured as sensitive.
func (cs *ConfigSanitizer) IsSensitiveField(fieldName string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.fields[strings.ToLower(leafName(fieldName))]
}

// AddSensitiveField marks fieldName as sensitive.
func (cs *ConfigSanitizer) AddSensitiveField(fieldName string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.fields[strings.ToLower(leafName(fieldName))] = true
}

// RemoveSensitiveField unmarks fieldName as sensitive.
func (cs *ConfigSanitizer) RemoveSensitiveField(fieldName string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.fields, strings.ToLower(leafName(fieldName)))
}

// SanitizeConfig returns a deep copy of config with sensitive fields
// redacted and credentials stripped from URL fields.
func (cs *ConfigSanitizer) SanitizeConfig(config map[string]interface{}) map[string]interface{} {
	return cs.sanitizeMap(config)
}

func (cs *ConfigSanitizer) sanitizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cs.sanitizeValue(k, v)
	}
	return out
}

func (cs *ConfigSanitizer) sanitizeValue(key string, v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cs.sanitizeMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cs.sanitizeValue(key, item)
		}
		return out
	case string:
		if cs.isURLField(key) {
			return stripURLCredentials(val)
		}
		if cs.IsSensitiveField(key) && !isEmpty(val) {
			return RedactedMarker
		}
		return val
	default:
		return v
	}
}

func (cs *ConfigSanitizer) isURLField(key string) bool {
	return urlCredentialFields[strings.ToLower(leafName(key))]
}

// leafName returns the last dot-separated component of a (possibly) dotted
// field path.
func leafName(field string) string {
	if idx := strings.LastIndex(field, "."); idx >= 0 {
		return field[idx+1:]
	}
	return field
}

// stripURLCredentials removes userinfo from a URL entirely rather than
// replacing it with a marker, since the destination host and path (not the
// fact that credentials once existed) is what's useful for diagnosis.
func stripURLCredentials(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.User == nil {
		return rawURL
	}
	parsed.User = nil
	return parsed.String()
}

// SanitizeForDisplay renders config as a redacted, human-readable multi-line
// string, suitable for support bundles or debug logs.
func (cs *ConfigSanitizer) SanitizeForDisplay(config map[string]interface{}) string {
	sanitized := cs.SanitizeConfig(config)
	var b strings.Builder
	writeDisplayMap(&b, sanitized, 0)
	return b.String()
}

func writeDisplayMap(b *strings.Builder, m map[string]interface{}, depth int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	indent := strings.Repeat("  ", depth)
	for _, k := range keys {
		switch val := m[k].(type) {
		case map[string]interface{}:
			fmt.Fprintf(b, "%s%s:\n", indent, k)
			writeDisplayMap(b, val, depth+1)
		default:
			fmt.Fprintf(b, "%s%s: %v\n", indent, k, val)
		}
	}
}

var (
	defaultSanitizerOnce sync.Once
	defaultSanitizerInst *ConfigSanitizer
)

func defaultSanitizer() *ConfigSanitizer {
	defaultSanitizerOnce.Do(func() {
		defaultSanitizerInst = NewConfigSanitizer()
	})
	return defaultSanitizerInst
}

// SanitizeConfigValue is the standalone equivalent of sanitizeValue, for call
// sites that only have a single dotted-path key/value pair — e.g. a
// structured log field — rather than a full config tree.
func SanitizeConfigValue(key string, value interface{}) interface{} {
	return defaultSanitizer().sanitizeValue(key, value)
}

// isEmpty reports whether v is the zero value for its type, for types that
// can meaningfully be "empty" (nil, "", empty slice, empty map). Numbers and
// bools are never considered empty: 0 and false are valid configured values.
func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}
