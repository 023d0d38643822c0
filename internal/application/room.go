package application

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DefaultRoomPrefix is used when no prefix is configured.
const DefaultRoomPrefix = "openemr"

const roomSalt = "jitsi-telehealth"

// RoomName derives the conference room for an appointment. The suffix hashes
// the record's creation time so that room names cannot be guessed from the
// appointment id alone; it is stable for the lifetime of the record.
func RoomName(prefix, appointmentID string, createdAt time.Time) string {
	if prefix == "" {
		prefix = DefaultRoomPrefix
	}
	created := ""
	if !createdAt.IsZero() {
		created = createdAt.UTC().Format(time.RFC3339Nano)
	}
	sum := sha256.Sum256([]byte(appointmentID + created + roomSalt))
	return prefix + "-appt-" + appointmentID + "-" + hex.EncodeToString(sum[:])[:12]
}
