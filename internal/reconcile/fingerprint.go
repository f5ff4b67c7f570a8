package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives the dedup key for an MQTT message: the SHA-256 hex
// digest of the topic and payload joined with "|". Identical redeliveries
// of the same report hash to the same value; a device publishing the same
// payload on a different topic does not.
func Fingerprint(topic string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(topic))
	h.Write([]byte("|"))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
