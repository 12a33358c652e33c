package authcore

import (
	"strings"
	"testing"
	"time"
)

// RFC 6238 appendix B test vectors for the SHA-1 mode, 8 digits. The
// secret is the ASCII string "12345678901234567890".
func TestTOTPReferenceVectors(t *testing.T) {
	secret := []byte("12345678901234567890")

	vectors := []struct {
		unix int64
		code string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	}

	for _, v := range vectors {
		counter := v.unix / 30
		code, err := hotpCode(secret, counter, 8)
		if err != nil {
			t.Fatalf("hotpCode(%d) failed: %v", counter, err)
		}
		if code != v.code {
			t.Fatalf("counter %d: got %s, want %s", counter, code, v.code)
		}
	}
}

func TestTOTPVerifyCodeSkewWindow(t *testing.T) {
	m := newTOTPManager(SecondFactorConfig{Digits: 6, Period: 30, Skew: 1})
	secret := []byte("12345678901234567890")
	now := time.Unix(1111111109, 0)
	base := now.Unix() / 30

	for _, offset := range []int64{-1, 0, 1} {
		code, err := hotpCode(secret, base+offset, 6)
		if err != nil {
			t.Fatalf("hotpCode failed: %v", err)
		}
		ok, counter, err := m.VerifyCode(secret, code, now)
		if err != nil {
			t.Fatalf("VerifyCode failed: %v", err)
		}
		if !ok {
			t.Fatalf("offset %d rejected", offset)
		}
		if counter != base+offset {
			t.Fatalf("offset %d: matched counter %d, want %d", offset, counter, base+offset)
		}
	}

	// Outside the window.
	code, err := hotpCode(secret, base+2, 6)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	if ok, _, _ := m.VerifyCode(secret, code, now); ok {
		t.Fatal("code two steps ahead accepted with skew 1")
	}
}

func TestTOTPVerifyCodeRejectsMalformedInput(t *testing.T) {
	m := newTOTPManager(SecondFactorConfig{Digits: 6, Period: 30, Skew: 1})
	secret := []byte("12345678901234567890")
	now := time.Now()

	for _, code := range []string{"", "12345", "1234567", "12a456", "abcdef"} {
		if ok, _, err := m.VerifyCode(secret, code, now); err != nil || ok {
			t.Fatalf("code %q: ok=%v err=%v, want clean rejection", code, ok, err)
		}
	}
}

func TestTOTPVerifyCodeEmptySecret(t *testing.T) {
	m := newTOTPManager(SecondFactorConfig{Digits: 6, Period: 30, Skew: 1})
	if _, _, err := m.VerifyCode(nil, "123456", time.Now()); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestTOTPProvisionURI(t *testing.T) {
	m := newTOTPManager(SecondFactorConfig{
		Issuer: "CartStack",
		Digits: 6,
		Period: 30,
	})

	uri := m.ProvisionURI("JBSWY3DPEHPK3PXP", "shopper@example.com")
	for _, want := range []string{
		"otpauth://totp/",
		"secret=JBSWY3DPEHPK3PXP",
		"issuer=CartStack",
		"period=30",
		"digits=6",
		"algorithm=SHA1",
	} {
		if !strings.Contains(uri, want) {
			t.Fatalf("URI %q missing %q", uri, want)
		}
	}
}

func TestGenerateSecretUnique(t *testing.T) {
	m := newTOTPManager(SecondFactorConfig{Digits: 6, Period: 30})

	_, first, err := m.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	_, second, err := m.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if first == second {
		t.Fatal("two generated secrets collided")
	}
}
