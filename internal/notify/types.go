package notify

import "context"

// Type classifies a Notification so providers/filters can route or drop it.
type Type string

const (
	TypeError    Type = "error"
	TypeWarning  Type = "warning"
	TypeInfo     Type = "info"
	TypeTransport Type = "transport" // record/playback start-stop
	TypeDevice   Type = "device"     // device lost/hot-plugged
	TypeBackup   Type = "backup"
)

// Notification is one message fanned out to every enabled provider.
type Notification struct {
	Type    Type
	Title   string
	Message string
	Context map[string]any
}

// PushProvider delivers a Notification to one external service.
type PushProvider interface {
	GetName() string
	ValidateConfig() error
	SupportsType(t Type) bool
	IsEnabled() bool
	Send(ctx context.Context, n *Notification) error
}
