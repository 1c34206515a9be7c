package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		request func() *http.Request
		want    string
	}{
		{
			name: "bearer header",
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/api/mindmaps", nil)
				r.Header.Set("Authorization", "Bearer abc123")
				return r
			},
			want: "abc123",
		},
		{
			name: "bearer prefix is case insensitive",
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/api/mindmaps", nil)
				r.Header.Set("Authorization", "bearer abc123")
				return r
			},
			want: "abc123",
		},
		{
			name: "raw header without prefix",
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/api/mindmaps", nil)
				r.Header.Set("Authorization", "abc123")
				return r
			},
			want: "abc123",
		},
		{
			name: "cookie",
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/api/mindmaps", nil)
				r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "cookie-token"})
				return r
			},
			want: "cookie-token",
		},
		{
			name: "query parameter",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/mindmaps?token=query-token", nil)
			},
			want: "query-token",
		},
		{
			name: "header wins over cookie and query",
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/api/mindmaps?token=query-token", nil)
				r.Header.Set("Authorization", "Bearer header-token")
				r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "cookie-token"})
				return r
			},
			want: "header-token",
		},
		{
			name: "cookie wins over query",
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/api/mindmaps?token=query-token", nil)
				r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "cookie-token"})
				return r
			},
			want: "cookie-token",
		},
		{
			name: "no token anywhere",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/mindmaps", nil)
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractToken(tt.request()))
		})
	}
}
