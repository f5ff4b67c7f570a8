package reconcile

import (
	"context"

	"github.com/doorlink-io/doorlink-core/internal/door"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/logging"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/mqtt"
	"github.com/doorlink-io/doorlink-core/internal/notify"
)

// Handler reconciles one kind of device report against the door mirror.
//
// Apply runs inside the dispatcher's per-message transaction: tx scopes
// every repository the handler builds, and d is the door resolved from the
// topic prefix. A malformed payload is dropped by returning nil; returned
// errors are logged by the dispatcher but never abort the message.
type Handler interface {
	Apply(ctx context.Context, tx DBTX, d *door.Door, payload []byte) error
}

// Registry maps topic kinds to their handlers. New report kinds are added
// by registering an implementation, not by editing the dispatcher.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a topic kind, replacing any previous binding.
func (r *Registry) Register(kind string, h Handler) {
	r.handlers[kind] = h
}

// NewDefaultRegistry wires the standard five report handlers.
// telemetry may be nil when time-series export is disabled; notifyCards
// gates the card list notification.
func NewDefaultRegistry(notifier notify.Notifier, telemetry Telemetry, notifyCards bool, logger *logging.Logger) *Registry {
	r := NewRegistry()
	r.Register(mqtt.KindState, NewStateHandler(notifier, telemetry, logger))
	r.Register(mqtt.KindBattery, NewBatteryHandler(notifier, telemetry, logger))
	r.Register(mqtt.KindLog, NewLogHandler(notifier, telemetry, logger))
	r.Register(mqtt.KindPasscodes, NewPasscodeHandler(notifier, logger))
	r.Register(mqtt.KindICCards, NewCardHandler(notifier, notifyCards, logger))
	return r
}

// Get returns the handler for a kind, or nil when none is registered.
func (r *Registry) Get(kind string) Handler {
	return r.handlers[kind]
}

// Kinds returns the registered kinds, for logging at startup.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	return kinds
}
