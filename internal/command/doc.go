// Package command implements the outbound command ledger for door devices.
//
// Commands (lock, unlock, sync) are recorded as ledger rows before being
// published over MQTT. The device never acknowledges a command directly;
// instead the next state report correlates against the most recent pending
// lock/unlock row and resolves it. Commands the device never answers are
// failed by the timeout sweeper.
//
// Components:
//   - Repository: CRUD over the door_commands table
//   - Publisher: per-intent MQTT payload builders (control, list requests,
//     passcode/card add and remove)
//   - Service: ledger row + publish as one operation, enforcing a single
//     outstanding lock/unlock per door
//   - Sweeper: periodic task failing pending commands older than the
//     acknowledgement timeout
//
// Publishes are fire-and-return: the caller gets the transport error, not
// the device outcome.
package command
