// Package door defines the server-side mirror of a physical door lock and
// its child collections (passcodes, IC cards).
//
// The Door entity is not the device itself — it is the last state the
// device reported, plus provisioning data (topic prefix, owner). The
// reconciliation engine (internal/reconcile) mutates these entities as
// device reports arrive; the API reads them.
//
// # Entities
//
//   - Door: identity, topic prefix, mirrored lock state and battery,
//     sync timestamps, and the master code written directly onto the door.
//   - Passcode: per-door code rows. One-time codes are soft-expired
//     (deactivated, never deleted); timed codes are replaced wholesale on
//     every device report; master codes never appear as rows.
//   - ICCard: per-door proximity cards, fully replaced on every report.
//
// # Repositories
//
// Repositories accept a DBTX so the same implementation works over both
// *sql.DB and *sql.Tx. The dispatcher runs each message inside one
// transaction and builds tx-scoped repositories from it.
package door
