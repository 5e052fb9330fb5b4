package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/build-sandbox/internal/apperror"
)

const testSecret = "test-secret-at-least-16-chars!!"

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// signClaims signs arbitrary claims with the test secret, for tokens
// Generate refuses to produce.
func signClaims(t *testing.T, c jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return token
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService("short"); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_ValidSecret(t *testing.T) {
	if _, err := NewTokenService("this-is-16-chars"); err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
}

// =========================================================================
// GENERATE TESTS
// =========================================================================

func TestGenerate_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("ci-bot", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if n := strings.Count(token, "."); n != 2 {
		t.Errorf("Generate() token doesn't look like a JWT (expected 2 dots, got %d)", n)
	}
}

func TestGenerate_TokensAreUnique(t *testing.T) {
	ts := newTestTokenService(t)

	token1, _ := ts.Generate("ci-bot", time.Hour)
	token2, _ := ts.Generate("ci-bot", time.Hour)
	if token1 == token2 {
		t.Error("Generate() returned identical tokens for two calls")
	}
}

func TestGenerate_RejectsBadInput(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Generate("", time.Hour); err == nil {
		t.Error("Generate() should reject an empty subject")
	}
	if _, err := ts.Generate("ci-bot", 0); err == nil {
		t.Error("Generate() should reject a non-positive lifetime")
	}
}

// =========================================================================
// VALIDATE TESTS
// =========================================================================

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("alice", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != "alice" {
		t.Errorf("Validate() subject = %q, want %q", got, "alice")
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	valid, _ := ts.Generate("alice", time.Hour)
	other, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!")
	foreign, _ := other.Generate("alice", time.Hour)
	now := time.Now()

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt.token"},
		{name: "tampered signature", token: valid[:len(valid)-3] + "xxx"},
		{name: "wrong secret", token: foreign},
		{
			name: "expired",
			token: signClaims(t, jwt.RegisteredClaims{
				Subject:   "alice",
				Issuer:    Issuer,
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Second)),
			}),
		},
		{
			name: "wrong issuer",
			token: signClaims(t, jwt.RegisteredClaims{
				Subject:   "alice",
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}),
		},
		{
			name:  "no expiry",
			token: signClaims(t, jwt.RegisteredClaims{Subject: "alice", Issuer: Issuer}),
		},
		{
			name: "no subject",
			token: signClaims(t, jwt.RegisteredClaims{
				Issuer:    Issuer,
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Validate(tt.token)
			if err == nil {
				t.Fatal("Validate() should return an error")
			}
			if !errors.Is(err, apperror.ErrUnauthorized) {
				t.Errorf("Validate() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}
