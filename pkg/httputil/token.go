package httputil

import (
	"errors"
	"net/http"
	"strings"
)

// GetTokenFromRequest reads "Authorization: Bearer <token>", falling back to
// the "token" query parameter that browsers use for websocket upgrades.
func GetTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimSpace(authHeader[len("Bearer "):]), nil
		}
		return authHeader, nil
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}

	return "", errors.New("no auth token found in header or query")
}
