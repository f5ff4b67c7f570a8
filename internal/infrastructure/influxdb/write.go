package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteBatteryLevel records a battery report for a door.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Battery history feeds discharge-curve dashboards and replacement
// forecasting.
//
// Parameters:
//   - doorID: Door identifier
//   - level: Battery percentage (0-100)
//
// Example:
//
//	client.WriteBatteryLevel("door-7f3a", 87)
func (c *Client) WriteBatteryLevel(doorID string, level int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"door_battery",
		map[string]string{
			"door_id": doorID,
		},
		map[string]interface{}{
			"level": level,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteLockState records a lock state transition for a door.
//
// Parameters:
//   - doorID: Door identifier
//   - state: The new lock state ("locked", "unlocked", "unknown")
func (c *Client) WriteLockState(doorID string, state string) {
	if !c.IsConnected() {
		return
	}

	// Encode state numerically so dashboards can graph transitions.
	var value int
	switch state {
	case "locked":
		value = 1
	case "unlocked":
		value = 0
	default:
		value = -1
	}

	point := write.NewPoint(
		"door_state",
		map[string]string{
			"door_id": doorID,
			"state":   state,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAccessEvent records an access event (unlock via passcode, card,
// app, etc.) for per-door traffic dashboards.
//
// Parameters:
//   - doorID: Door identifier
//   - method: How the door was operated (e.g., "passcode", "iccard", "app")
func (c *Client) WriteAccessEvent(doorID string, method string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"door_access",
		map[string]string{
			"door_id": doorID,
			"method":  method,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., replayed inbox data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
