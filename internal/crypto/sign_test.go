package crypto_test

import (
	"errors"
	"testing"

	"denim/internal/crypto"
)

func TestOneTimeSigner_SignVerifyAfterReparse(t *testing.T) {
	s, err := crypto.NewOneTimeSigner(nil)
	if err != nil {
		t.Fatalf("NewOneTimeSigner: %v", err)
	}
	sig, err := s.Sign([]byte("hello"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	der, err := s.MarshalPKCS8()
	if err != nil {
		t.Fatalf("MarshalPKCS8: %v", err)
	}
	s.Discard()

	parsed, err := crypto.ParseOneTimeSigner(der)
	if err != nil {
		t.Fatalf("ParseOneTimeSigner: %v", err)
	}
	if !parsed.Verify([]byte("hello"), sig) {
		t.Fatal("signature did not verify")
	}
	if parsed.Verify([]byte("hellp"), sig) {
		t.Fatal("signature verified for a different message")
	}
}

func TestParseOneTimeSigner_RejectsGarbage(t *testing.T) {
	if _, err := crypto.ParseOneTimeSigner([]byte("nope")); !errors.Is(err, crypto.ErrSignerKey) {
		t.Fatalf("expected ErrSignerKey, got %v", err)
	}
}
