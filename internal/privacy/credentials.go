package privacy

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Markers used when redacting individual credential fields, as opposed to
// whole messages (see ScrubMessage).
const (
	EmptyUserMarker     = "[NO_USER]"
	EmptyPasswordMarker = "[NO_PASSWORD]"
	EmptyTokenMarker    = "[NO_TOKEN]"
	RedactedMarker      = "[REDACTED]"
)

// ScrubUsername replaces a username with a short, stable, non-reversible
// hash so repeated occurrences of the same account still correlate in logs.
func ScrubUsername(username string) string {
	if username == "" {
		return EmptyUserMarker
	}
	return "user-" + shortHash(username)
}

// ScrubPassword always returns a fixed marker: unlike usernames, passwords
// gain nothing from being correlatable across log lines.
func ScrubPassword(password string) string {
	if password == "" {
		return EmptyPasswordMarker
	}
	return RedactedMarker
}

// ScrubToken replaces a token with a marker carrying only its length, useful
// for diagnosing "token looks truncated" issues without exposing the token.
func ScrubToken(token string) string {
	if token == "" {
		return EmptyTokenMarker
	}
	return fmt.Sprintf("[TOKEN:len=%d]", len(token))
}

var (
	telegramBotPattern = regexp.MustCompile(`/bot\d+:[A-Za-z0-9_-]+`)
	discordWebhookPattern = regexp.MustCompile(`/api/webhooks/(\d+)/([A-Za-z0-9_-]+)`)
)

// ScrubCredentialURL redacts userinfo and well-known notification-webhook
// credentials (Telegram bot tokens, Discord webhook IDs/tokens) embedded in
// a URL, leaving the rest of the URL intact for diagnosis.
func ScrubCredentialURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	result := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.User != nil {
		parsed.User = url.UserPassword("[REDACTED]", "[REDACTED]")
		result = parsed.String()
	}

	result = telegramBotPattern.ReplaceAllString(result, "/bot[TOKEN]")
	result = discordWebhookPattern.ReplaceAllString(result, "/api/webhooks/[WEBHOOK_ID]/[TOKEN]")

	return result
}
