package uid

import (
	"github.com/google/uuid"
)

// GenerateSessionID returns a random identifier for a game session.
// It is only used to correlate log lines and snapshots.
func GenerateSessionID() string {
	return uuid.NewString()
}

// GenerateTokenID returns the unique id stamped into a bridge token.
func GenerateTokenID() string {
	return uuid.NewString()
}

// GenerateConnectionID names one renderer websocket connection.
func GenerateConnectionID() string {
	return uuid.NewString()
}
