package mqtt

import (
	"fmt"
	"strings"
)

// Doorlink topic scheme.
//
// Each door owns a single-segment topic prefix (e.g. "frontdoor"). The
// lock publishes reports on "<prefix>/<kind>" and listens for commands
// on channels beneath the same prefix:
//
//	frontdoor/state              lock state reports
//	frontdoor/battery            battery level reports
//	frontdoor/log                access event reports
//	frontdoor/passcodes          passcode list reports (and add/delete commands)
//	frontdoor/iccards            IC card list reports (and add/remove commands)
//	frontdoor/control            lock/unlock commands (retained)
//	frontdoor/passcodes/request  passcode list sync requests
//	frontdoor/iccards/request    IC card list sync requests
//
// Core's own liveness status lives under the system prefix.
const (
	// TopicPrefixSystem is the base for Core system topics.
	TopicPrefixSystem = "doorlink/system"
)

// Report kinds published by door locks. These are the second segment of
// every inbound report topic.
const (
	KindState     = "state"
	KindBattery   = "battery"
	KindLog       = "log"
	KindPasscodes = "passcodes"
	KindICCards   = "iccards"
)

// Topics provides builders for Doorlink MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	controlTopic := topics.Control("frontdoor")
//	// Returns: "frontdoor/control"
type Topics struct{}

// =============================================================================
// Door Report Topics (inbound)
// =============================================================================

// State returns the lock state report topic for a door.
//
// Example: frontdoor/state
func (Topics) State(prefix string) string {
	return fmt.Sprintf("%s/%s", prefix, KindState)
}

// Battery returns the battery report topic for a door.
//
// Example: frontdoor/battery
func (Topics) Battery(prefix string) string {
	return fmt.Sprintf("%s/%s", prefix, KindBattery)
}

// Log returns the access log report topic for a door.
//
// Example: frontdoor/log
func (Topics) Log(prefix string) string {
	return fmt.Sprintf("%s/%s", prefix, KindLog)
}

// Passcodes returns the passcode channel for a door. The lock reports its
// full passcode list here, and Core publishes add/delete commands to the
// same channel.
//
// Example: frontdoor/passcodes
func (Topics) Passcodes(prefix string) string {
	return fmt.Sprintf("%s/%s", prefix, KindPasscodes)
}

// ICCards returns the IC card channel for a door. The lock reports its
// full card list here, and Core publishes add/remove commands to the
// same channel.
//
// Example: frontdoor/iccards
func (Topics) ICCards(prefix string) string {
	return fmt.Sprintf("%s/%s", prefix, KindICCards)
}

// =============================================================================
// Door Command Topics (outbound)
// =============================================================================

// Control returns the lock control topic for a door. Control messages are
// published retained so a lock that reconnects sees the last command.
//
// Example: frontdoor/control
func (Topics) Control(prefix string) string {
	return fmt.Sprintf("%s/control", prefix)
}

// PasscodesRequest returns the topic that asks a lock to report its full
// passcode list.
//
// Example: frontdoor/passcodes/request
func (Topics) PasscodesRequest(prefix string) string {
	return fmt.Sprintf("%s/%s/request", prefix, KindPasscodes)
}

// ICCardsRequest returns the topic that asks a lock to report its full
// IC card list.
//
// Example: frontdoor/iccards/request
func (Topics) ICCardsRequest(prefix string) string {
	return fmt.Sprintf("%s/%s/request", prefix, KindICCards)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the Core status topic (online/offline, LWT).
//
// Example: doorlink/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllStates returns a pattern matching state reports from every door.
//
// Pattern: +/state
func (Topics) AllStates() string {
	return fmt.Sprintf("+/%s", KindState)
}

// AllBatteries returns a pattern matching battery reports from every door.
//
// Pattern: +/battery
func (Topics) AllBatteries() string {
	return fmt.Sprintf("+/%s", KindBattery)
}

// AllLogs returns a pattern matching access log reports from every door.
//
// Pattern: +/log
func (Topics) AllLogs() string {
	return fmt.Sprintf("+/%s", KindLog)
}

// AllPasscodes returns a pattern matching passcode list reports from every door.
//
// Pattern: +/passcodes
func (Topics) AllPasscodes() string {
	return fmt.Sprintf("+/%s", KindPasscodes)
}

// AllICCards returns a pattern matching IC card list reports from every door.
//
// Pattern: +/iccards
func (Topics) AllICCards() string {
	return fmt.Sprintf("+/%s", KindICCards)
}

// ReportPatterns returns the full set of wildcard subscriptions the
// reconciliation dispatcher needs.
func (t Topics) ReportPatterns() []string {
	return []string{
		t.AllStates(),
		t.AllBatteries(),
		t.AllLogs(),
		t.AllPasscodes(),
		t.AllICCards(),
	}
}

// SplitReport splits an inbound report topic into its door prefix and
// report kind. A report topic has exactly two segments; anything else is
// unroutable and returns ok=false.
func SplitReport(topic string) (prefix, kind string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
