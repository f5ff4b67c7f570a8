// Package notify delivers fire-and-forget owner notifications.
//
// The reconciliation handlers call Notifier.Notify when a door's mirrored
// state changes (lock state, battery, access events, list updates). The
// default implementation is a WebSocket hub: connected clients receive
// events for doors they own, subject to channel subscriptions. When the
// hub is disabled, LogNotifier records the events in the service log so
// the side effect is still observable.
//
// Notifications are best-effort: a slow or disconnected client never
// blocks or fails message reconciliation.
package notify
