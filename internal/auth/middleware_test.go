package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"notably-ai/internal/auth"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

func ownerSeenBy(t *testing.T, authHeader string) (string, bool) {
	t.Helper()

	var gotOwner string
	var gotOK bool
	handler := auth.Middleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner, gotOK = auth.OwnerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return gotOwner, gotOK
}

func TestMiddleware_ValidToken(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{
			name:   "subject claim",
			claims: jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Hour).Unix()},
			want:   "alice",
		},
		{
			name:   "legacy user_id claim",
			claims: jwt.MapClaims{"user_id": "bob", "exp": time.Now().Add(time.Hour).Unix()},
			want:   "bob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := signToken(t, testSecret, tt.claims)
			owner, ok := ownerSeenBy(t, "Bearer "+token)
			if !ok || owner != tt.want {
				t.Errorf("OwnerFromContext() = %q/%v, want %q/true", owner, ok, tt.want)
			}
		})
	}
}

func TestMiddleware_AnonymousFallback(t *testing.T) {
	// Invalid tokens never reject the request; they downgrade it to trial mode.
	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not a bearer token", header: "Basic dXNlcjpwYXNz"},
		{name: "garbage token", header: "Bearer not.a.jwt"},
		{
			name: "wrong secret",
			header: "Bearer " + func() string {
				token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"})
				signed, _ := token.SignedString([]byte("other-secret"))
				return signed
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, ok := ownerSeenBy(t, tt.header)
			if ok || owner != "" {
				t.Errorf("OwnerFromContext() = %q/%v, want anonymous", owner, ok)
			}
		})
	}
}

func TestMiddleware_ExpiredToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	owner, ok := ownerSeenBy(t, "Bearer "+token)
	if ok || owner != "" {
		t.Errorf("expired token must be anonymous, got %q/%v", owner, ok)
	}
}

func TestMiddleware_MissingIdentityClaim(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	owner, ok := ownerSeenBy(t, "Bearer "+token)
	if ok || owner != "" {
		t.Errorf("token without identity claim must be anonymous, got %q/%v", owner, ok)
	}
}
