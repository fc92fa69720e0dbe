package telemetry

import "strings"

// maxGenericTitleLength bounds a generic (non-runtime, non-panic) error
// message used as a Sentry title.
const maxGenericTitleLength = 60

// maxPanicPayloadLength bounds the user-supplied portion of a "panic: ..."
// message, kept shorter than maxGenericTitleLength since it's rendered with
// a "Panic: " prefix already counting against readable title length.
const maxPanicPayloadLength = 50

// runtimeErrorTitles maps a lowercase substring of a Go runtime panic
// message to a short human title Sentry can group issues by. Checked in
// order: more specific patterns (e.g. "concurrent map writes") must come
// before broader ones their message text might also satisfy.
var runtimeErrorTitles = []struct {
	substr string
	title  string
}{
	{"nil pointer dereference", "Nil Pointer Dereference"},
	{"index out of range", "Index Out of Range"},
	{"slice bounds out of range", "Slice Bounds Out of Range"},
	{"integer divide by zero", "Integer Divide by Zero"},
	{"send on closed channel", "Send on Closed Channel"},
	{"close of closed channel", "Close of Closed Channel"},
	{"concurrent map writes", "Concurrent Map Write"},
	{"concurrent map read and map write", "Concurrent Map Access"},
	{"invalid memory address", "Invalid Memory Access"},
}

// knownComponentTitles maps a component identifier carrying a known
// initialism (http, rtsp, mqtt, api, db) to its rendered title. Matched
// exactly rather than by prefix, since prefix-stripping would also catch
// unrelated words that happen to start the same way (e.g. "database"
// starts with "db" but isn't one).
var knownComponentTitles = map[string]string{
	"httpcontroller": "HTTP Controller",
	"rtsphandler":    "RTSP Handler",
	"mqttclient":     "MQTT Client",
	"apihandler":     "API Handler",
	"dbconnection":   "DB Connection",
}

// parseErrorType classifies a raw error message into a short, stable title
// suitable for Sentry issue grouping. Runtime panic messages get a specific
// title; "interface conversion: ..." and "panic: ..." messages get special
// handling; everything else is truncated as-is.
func parseErrorType(errMsg string) string {
	firstLine := errMsg
	if idx := strings.IndexByte(errMsg, '\n'); idx >= 0 {
		firstLine = errMsg[:idx]
	}
	firstLine = strings.TrimSpace(firstLine)
	lower := strings.ToLower(firstLine)

	for _, rt := range runtimeErrorTitles {
		if strings.Contains(lower, rt.substr) {
			return rt.title
		}
	}

	if strings.Contains(lower, "interface conversion") {
		if strings.Contains(lower, "interface is nil") {
			return "Interface Conversion: Nil Value"
		}
		return "Interface Conversion Failed"
	}

	if strings.HasPrefix(lower, "panic:") {
		payload := strings.TrimSpace(firstLine[strings.Index(firstLine, ":")+1:])
		return "Panic: " + truncateTitle(payload, maxPanicPayloadLength)
	}

	return truncateTitle(firstLine, maxGenericTitleLength)
}

// truncateTitle keeps at most max characters of s, appending "..." when s
// is longer.
func truncateTitle(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// titleCaseComponent renders a component identifier (e.g. "httpcontroller",
// "media_handler") as a human-readable title, expanding known initialism
// prefixes to their all-caps form.
func titleCaseComponent(component string) string {
	if component == "" {
		return ""
	}

	if strings.Contains(component, "_") {
		words := strings.Split(component, "_")
		for i, w := range words {
			words[i] = capitalizeWord(w)
		}
		return strings.Join(words, " ")
	}

	if title, ok := knownComponentTitles[component]; ok {
		return title
	}

	return capitalizeWord(component)
}

func capitalizeWord(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

// generateErrorTitle combines a component title with an error-type title,
// e.g. "HTTP Controller: Index Out of Range". A component of "" or
// "unknown" is omitted entirely, leaving just the error-type title.
func generateErrorTitle(errMsg, component string) string {
	if component == "unknown" {
		component = ""
	}

	title := parseErrorType(errMsg)

	compTitle := titleCaseComponent(component)
	if compTitle == "" {
		return title
	}
	return compTitle + ": " + title
}
