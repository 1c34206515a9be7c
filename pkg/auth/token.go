package auth

import (
	"net/http"
	"strings"
)

// TokenCookieName is the cookie the frontend stores its session token in
const TokenCookieName = "auth_token"

// ExtractToken pulls a bearer token from the request, checking the
// Authorization header, the auth cookie, and finally the token query
// parameter. Returns the empty string when no token is present.
func ExtractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		// Raw token without the Bearer prefix
		return authHeader
	}

	if cookie, err := r.Cookie(TokenCookieName); err == nil {
		return cookie.Value
	}

	// Query parameter (not recommended for production)
	return r.URL.Query().Get("token")
}
