package telemetry

import "github.com/getsentry/sentry-go"

// NotificationReporter reports a dispatched notification (C17) to telemetry
// as a breadcrumb, so a Sentry issue created from a later error can show
// which notifications fired around the same time.
type NotificationReporter interface {
	IsEnabled() bool
	Report(level, message string, tags map[string]string)
}

// SentryNotificationReporter is the Sentry-backed NotificationReporter.
type SentryNotificationReporter struct {
	enabled bool
}

// NewNotificationReporter returns a NotificationReporter enabled or
// disabled per the caller's telemetry setting.
func NewNotificationReporter(enabled bool) NotificationReporter {
	return &SentryNotificationReporter{enabled: enabled}
}

// IsEnabled reports whether this reporter forwards breadcrumbs to Sentry.
func (r *SentryNotificationReporter) IsEnabled() bool {
	return r.enabled
}

// Report adds a breadcrumb for the given notification if reporting is
// enabled; it never blocks or returns an error, since a breadcrumb is best
// effort by nature.
func (r *SentryNotificationReporter) Report(level, message string, tags map[string]string) {
	if !r.IsEnabled() {
		return
	}

	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: "notification",
		Message:  ScrubMessage(message),
		Level:    convertToSentryLevel(level),
		Data:     tagsToData(tags),
	})
}

func tagsToData(tags map[string]string) map[string]interface{} {
	if len(tags) == 0 {
		return nil
	}
	data := make(map[string]interface{}, len(tags))
	for k, v := range tags {
		data[k] = v
	}
	return data
}

// convertToSentryLevel maps the notification dispatcher's own level
// vocabulary (debug/info/warning/error/critical/fatal) onto sentry.Level,
// defaulting unrecognized or empty levels to info rather than erroring.
func convertToSentryLevel(level string) sentry.Level {
	switch level {
	case "debug":
		return sentry.LevelDebug
	case "info":
		return sentry.LevelInfo
	case "warning":
		return sentry.LevelWarning
	case "error":
		return sentry.LevelError
	case "critical", "fatal":
		return sentry.LevelFatal
	default:
		return sentry.LevelInfo
	}
}
