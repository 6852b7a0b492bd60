package totp

import (
	"strings"
	"testing"
	"time"
)

func TestValidateWindow(t *testing.T) {
	t.Parallel()
	enr, err := Generate("Ma Earth", "alice.example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	now := time.Unix(1_700_000_010, 0)

	for _, offset := range []time.Duration{0, -30 * time.Second, 30 * time.Second} {
		code, err := GenerateCode(enr.Secret, now.Add(offset))
		if err != nil {
			t.Fatalf("code: %v", err)
		}
		if !Validate(code, enr.Secret, now) {
			t.Fatalf("code at offset %v rejected", offset)
		}
	}

	far, _ := GenerateCode(enr.Secret, now.Add(-5*time.Minute))
	current, _ := GenerateCode(enr.Secret, now)
	if far != current && Validate(far, enr.Secret, now) {
		t.Fatalf("code outside window accepted")
	}
}

func TestValidateRejectsFixedWrongCode(t *testing.T) {
	t.Parallel()
	enr, _ := Generate("Ma Earth", "bob")
	now := time.Now()
	current, _ := GenerateCode(enr.Secret, now)
	if current == "000000" {
		t.Skip("generated secret happens to produce 000000")
	}
	prev, _ := GenerateCode(enr.Secret, now.Add(-30*time.Second))
	next, _ := GenerateCode(enr.Secret, now.Add(30*time.Second))
	if prev == "000000" || next == "000000" {
		t.Skip("adjacent step produces 000000")
	}
	if Validate("000000", enr.Secret, now) {
		t.Fatalf("000000 accepted")
	}
}

func TestValidateMalformed(t *testing.T) {
	t.Parallel()
	if Validate("123456", "not base32 !!", time.Now()) {
		t.Fatalf("malformed secret accepted")
	}
	enr, _ := Generate("Ma Earth", "carol")
	if Validate("12345", enr.Secret, time.Now()) {
		t.Fatalf("short code accepted")
	}
}

func TestEnrollmentMaterial(t *testing.T) {
	t.Parallel()
	enr, err := Generate("Ma Earth", "dave.example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(enr.Secret) != 32 {
		t.Fatalf("secret length = %d, want 32 base32 chars", len(enr.Secret))
	}
	if !strings.HasPrefix(enr.OTPAuthURL, "otpauth://totp/") || !strings.Contains(enr.OTPAuthURL, "issuer=Ma") {
		t.Fatalf("otpauth url = %s", enr.OTPAuthURL)
	}
	if !strings.Contains(enr.OTPAuthURL, "period=30") || !strings.Contains(enr.OTPAuthURL, "digits=6") {
		t.Fatalf("otpauth url missing parameters: %s", enr.OTPAuthURL)
	}
	if !strings.HasPrefix(enr.QRCodePNG, "data:image/png;base64,") {
		t.Fatalf("qr is not a png data url")
	}
}
