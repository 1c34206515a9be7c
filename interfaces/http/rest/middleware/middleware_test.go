package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medmap-backend/pkg/auth"
	"medmap-backend/pkg/common"
)

const testSecret = "middleware-test-secret-with-enough-entropy"

// staticLimiter returns a fixed decision and records the key it was asked about
type staticLimiter struct {
	allowed bool
	err     error
	lastKey string
}

func (l *staticLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.lastKey = key
	return l.allowed, l.err
}

func (l *staticLimiter) Reset(ctx context.Context, key string) error { return nil }

// reportingLimiter adds window metadata the way the DynamoDB-backed limiter does
type reportingLimiter struct {
	staticLimiter
	limit  int
	window time.Duration
}

func (l *reportingLimiter) GetLimit() int            { return l.limit }
func (l *reportingLimiter) GetWindow() time.Duration { return l.window }

func newValidator(t *testing.T) *auth.JWTValidator {
	t.Helper()
	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     testSecret,
	})
	require.NoError(t, err)
	return validator
}

func bearerToken(t *testing.T) string {
	t.Helper()
	gen, err := auth.NewJWTGenerator(auth.JWTGeneratorConfig{
		SigningMethod: "HS256",
		SecretKey:     testSecret,
		ExpiryTime:    time.Hour,
	})
	require.NoError(t, err)
	token, err := gen.GenerateToken("user123", "doc@example.com", []string{"clinician"})
	require.NoError(t, err)
	return token
}

// signClaims mints tokens the generator refuses to, such as expired ones
func signClaims(t *testing.T, claims auth.Claims, secret string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

type errorBody struct {
	Success bool `json:"success"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body
}

func TestRequireAuth_ValidToken(t *testing.T) {
	var seen *auth.UserContext
	var commonID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.GetUserFromContext(r.Context())
		require.NoError(t, err)
		seen = user
		commonID, _ = common.GetUserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	handler := RequireAuth(newValidator(t), nil, zap.NewNop())(next)

	req := httptest.NewRequest(http.MethodGet, "/api/mindmaps", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user123", seen.UserID)
	assert.Equal(t, "doc@example.com", seen.Email)
	assert.Equal(t, []string{"clinician"}, seen.Roles)
	assert.Equal(t, "user123", commonID)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	handler := RequireAuth(newValidator(t), nil, zap.NewNop())(next)

	req := httptest.NewRequest(http.MethodGet, "/api/mindmaps", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, nextCalled)
	body := decodeError(t, rec)
	assert.Equal(t, common.StandardErrorCodes.Unauthorized, body.Error.Code)
	assert.Equal(t, "Missing authentication token", body.Error.Message)
}

func TestRequireAuth_RejectsBadTokens(t *testing.T) {
	expiredClaims := auth.Claims{
		UserID: "user123",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user123",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	foreignClaims := auth.Claims{
		UserID: "user123",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	tests := []struct {
		name        string
		token       string
		wantMessage string
	}{
		{
			name:        "expired token",
			token:       signClaims(t, expiredClaims, testSecret),
			wantMessage: "Token has expired",
		},
		{
			name:        "wrong signing key",
			token:       signClaims(t, foreignClaims, "a-completely-different-secret"),
			wantMessage: "Invalid token signature",
		},
		{
			name:        "malformed token",
			token:       "not-a-token",
			wantMessage: "Invalid token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("next handler should not run")
			})
			handler := RequireAuth(newValidator(t), nil, zap.NewNop())(next)

			req := httptest.NewRequest(http.MethodGet, "/api/mindmaps", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, common.StandardErrorCodes.Unauthorized, body.Error.Code)
			assert.Equal(t, tt.wantMessage, body.Error.Message)
		})
	}
}

func TestRequireAuth_UserRateLimited(t *testing.T) {
	limiter := &staticLimiter{allowed: false}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not run")
	})

	handler := RequireAuth(newValidator(t), limiter, zap.NewNop())(next)

	req := httptest.NewRequest(http.MethodPost, "/api/mindmaps", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "user123", limiter.lastKey)
	body := decodeError(t, rec)
	assert.Equal(t, common.StandardErrorCodes.TooManyRequests, body.Error.Code)
	assert.Equal(t, "User rate limit exceeded", body.Error.Message)
}

func TestOptionalAuth_AnonymousPassthrough(t *testing.T) {
	var userErr error
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, userErr = auth.GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := OptionalAuth(newValidator(t), zap.NewNop())(next)

	req := httptest.NewRequest(http.MethodGet, "/api/mindmaps", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.ErrorIs(t, userErr, auth.ErrNoUserInContext)
}

func TestOptionalAuth_AuthenticatesCookieToken(t *testing.T) {
	var seen *auth.UserContext
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.GetUserFromContext(r.Context())
		require.NoError(t, err)
		seen = user
		w.WriteHeader(http.StatusOK)
	})

	handler := OptionalAuth(newValidator(t), zap.NewNop())(next)

	req := httptest.NewRequest(http.MethodGet, "/api/mindmaps", nil)
	req.AddCookie(&http.Cookie{Name: auth.TokenCookieName, Value: bearerToken(t)})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user123", seen.UserID)
}

func TestOptionalAuth_RejectsInvalidToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not run")
	})

	handler := OptionalAuth(newValidator(t), zap.NewNop())(next)

	req := httptest.NewRequest(http.MethodGet, "/api/mindmaps", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "Invalid token", body.Error.Message)
}

func TestRateLimitByIP(t *testing.T) {
	limiter := auth.NewSlidingWindowLimiter(2, time.Minute)
	handler := RateLimitByIP(limiter, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/mindmaps", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.7").Code)
	assert.Equal(t, http.StatusOK, send("203.0.113.7").Code)

	rec := send("203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	body := decodeError(t, rec)
	assert.Equal(t, common.StandardErrorCodes.TooManyRequests, body.Error.Code)
	assert.Equal(t, "Too many requests, please try again later", body.Error.Message)

	// Other clients are unaffected
	assert.Equal(t, http.StatusOK, send("198.51.100.24").Code)
}

func TestRateLimitByIP_ReportsLimitHeaders(t *testing.T) {
	limiter := &reportingLimiter{
		staticLimiter: staticLimiter{allowed: false},
		limit:         120,
		window:        5 * time.Minute,
	}
	handler := RateLimitByIP(limiter, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/mindmaps", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "120", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "300", rec.Header().Get("Retry-After"))
}

func TestRateLimitByIP_FailsOpenOnLimiterError(t *testing.T) {
	limiter := &staticLimiter{allowed: true, err: errors.New("store down")}
	handler := RateLimitByIP(limiter, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/mindmaps", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{
			name:      "first forwarded-for entry wins",
			forwarded: "203.0.113.7, 70.41.3.18, 10.0.0.1",
			want:      "203.0.113.7",
		},
		{
			name:   "real-ip header",
			realIP: "198.51.100.24",
			want:   "198.51.100.24",
		},
		{
			name:       "remote addr with port",
			remoteAddr: "192.0.2.1:51234",
			want:       "192.0.2.1",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "10.0.0.5",
			want:       "10.0.0.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.remoteAddr != "" {
				req.RemoteAddr = tt.remoteAddr
			}

			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
