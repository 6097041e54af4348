package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "cashier-1",
		"exp": expires.Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	s, _ := newTestServer(t, WithJWTSecret("s3cret"))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "no bearer prefix", header: signToken(t, "s3cret", time.Now().Add(time.Hour)), want: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + signToken(t, "other", time.Now().Add(time.Hour)), want: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signToken(t, "s3cret", time.Now().Add(-time.Hour)), want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + signToken(t, "s3cret", time.Now().Add(time.Hour)), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w, env := doJSON(t, s, http.MethodGet, "/tables/list", nil, headers)
			assert.Equal(t, tt.want, w.Code)
			if tt.want != http.StatusOK {
				assert.Equal(t, StatusError, env.Status)
			}
		})
	}
}

func TestAuthMiddleware_HealthIsOpen(t *testing.T) {
	s, _ := newTestServer(t, WithJWTSecret("s3cret"))

	w, _ := doJSON(t, s, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
