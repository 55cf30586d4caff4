package httpadapter

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// caller is the resolved identity of one request: a user ID from the bearer
// token, or the anonymous cookie counter.
type caller struct {
	userID      string
	anonymous   bool
	cookieCount int64
}

// resolveCaller prefers the bearer token; anything unusable drops to the
// anonymous path. An absent or garbled cookie counts as zero usage.
func resolveCaller(r *http.Request, cookieName string) caller {
	if sub, ok := bearerSubject(bearerToken(r)); ok {
		return caller{userID: sub}
	}
	return caller{anonymous: true, cookieCount: cookieUsage(r, cookieName)}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// bearerSubject extracts the sub claim from a JWT's payload segment.
// Signature verification belongs to the auth collaborator upstream; this
// service only needs a stable identity to key quota counters on.
func bearerSubject(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", false
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return "", false
	}

	var claims struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Sub == "" {
		return "", false
	}
	return claims.Sub, true
}

func cookieUsage(r *http.Request, cookieName string) int64 {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return 0
	}
	count, err := strconv.ParseInt(cookie.Value, 10, 64)
	if err != nil || count < 0 {
		return 0
	}
	return count
}
