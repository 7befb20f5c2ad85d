package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateSecret creates a random signing secret for a bridge started
// without BRIDGE_SECRET. Tokens signed with it die with the process.
func GenerateSecret() string {
	bytes := make([]byte, 32) // 256 bits
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
