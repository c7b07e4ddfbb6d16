package game

import (
	"testing"
	"time"
)

func testToken() Token {
	return Token{
		Nonce:       "8e2f9a40-2f4e-4ad0-9f6f-0f0f6a1c2b3d",
		IssuedAt:    time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		Fingerprint: "abc123",
		CustomerID:  "cust-42",
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := NewSigner("test-secret-at-least-32-bytes-long!!")
	tok := testToken()
	sig := signer.Sign(tok)
	if !signer.Verify(tok, sig) {
		t.Fatalf("expected signature to verify")
	}
}

func TestVerifyRejectsFieldTampering(t *testing.T) {
	signer := NewSigner("test-secret-at-least-32-bytes-long!!")
	sig := signer.Sign(testToken())

	mutations := map[string]func(*Token){
		"nonce":       func(tok *Token) { tok.Nonce = "other-nonce" },
		"issued_at":   func(tok *Token) { tok.IssuedAt = tok.IssuedAt.Add(time.Minute) },
		"fingerprint": func(tok *Token) { tok.Fingerprint = "def456" },
		"customer_id": func(tok *Token) { tok.CustomerID = "cust-43" },
	}
	for field, mutate := range mutations {
		tok := testToken()
		mutate(&tok)
		if signer.Verify(tok, sig) {
			t.Fatalf("tampered %s accepted", field)
		}
	}
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	signer := NewSigner("test-secret-at-least-32-bytes-long!!")
	tok := testToken()
	sig := signer.Sign(tok)

	for _, bad := range []string{"", "zz", "not-hex!", sig[:16], sig + "00"} {
		if signer.Verify(tok, bad) {
			t.Fatalf("malformed signature %q accepted", bad)
		}
	}
}

func TestDistinctSecretsDisagree(t *testing.T) {
	a := NewSigner("secret-a-0123456789-0123456789-01")
	b := NewSigner("secret-b-0123456789-0123456789-01")
	tok := testToken()
	if b.Verify(tok, a.Sign(tok)) {
		t.Fatalf("signature verified under a different secret")
	}
}
