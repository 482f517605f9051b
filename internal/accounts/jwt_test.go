package accounts

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"
)

func makeToken(t *testing.T, claims TokenClaims) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	return "eyJhbGciOiJIUzI1NiJ9." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func TestParseTokenClaims(t *testing.T) {
	exp := time.Now().Add(24 * time.Hour).Unix()
	token := makeToken(t, TokenClaims{Email: "user@example.com", Exp: exp, Sub: "auth0|user_123"})

	claims, err := ParseTokenClaims(token)
	if err != nil {
		t.Fatalf("ParseTokenClaims() error = %v", err)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Exp != exp {
		t.Errorf("Exp = %d, want %d", claims.Exp, exp)
	}
	if claims.Sub != "auth0|user_123" {
		t.Errorf("Sub = %q", claims.Sub)
	}
}

func TestParseTokenClaims_InvalidFormat(t *testing.T) {
	for _, token := range []string{"", "only-one-part", "two.parts", "a.###.c"} {
		if _, err := ParseTokenClaims(token); err == nil {
			t.Errorf("ParseTokenClaims(%q) should fail", token)
		}
	}
}
