// Package reconcile turns device-initiated MQTT reports into domain state.
//
// Every report a lock publishes (state, battery, access log, passcode list,
// card list) flows through the Dispatcher: the message is fingerprinted and
// deduplicated, recorded in the mqtt_inbox audit table, routed to the
// handler registered for its topic kind, and marked processed. All steps
// for one message run inside a single SQLite transaction, so two
// concurrent deliveries never share uncommitted state and a duplicate
// insert conflict rolls the whole message back.
//
// Handlers reconcile rather than assign: the device's report is the source
// of truth, and the server's mirror (door state, battery, passcode and
// card lists) plus the pending-command ledger are adjusted to match it.
// Handler failures are logged and swallowed; the inbox row is marked
// processed either way so a poison message cannot wedge the pipeline.
package reconcile
