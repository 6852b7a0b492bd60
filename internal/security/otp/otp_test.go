package otp

import "testing"

func TestFormatKeepsLeadingZeros(t *testing.T) {
	t.Parallel()
	cases := map[int64]string{0: "000000", 42: "000042", 999999: "999999", 123456: "123456"}
	for n, want := range cases {
		if got := Format(n); got != want {
			t.Fatalf("Format(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestGenerateShapeAndSpread(t *testing.T) {
	t.Parallel()
	seen := make(map[string]int)
	for i := 0; i < 20; i++ {
		c, err := Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !ValidFormat(c) {
			t.Fatalf("code %q is not 6 digits", c)
		}
		seen[c]++
	}
	// 20 muestras en 10^6: P(colisión) ~ 2e-4. Más de una colisión indica un generador sesgado.
	collisions := 20 - len(seen)
	if collisions > 1 {
		t.Fatalf("too many collisions: %d", collisions)
	}
}

func TestHashAndMatches(t *testing.T) {
	t.Parallel()
	h := Hash("012345")
	if len(h) != 64 {
		t.Fatalf("hash length = %d", len(h))
	}
	if !Matches("012345", h) {
		t.Fatalf("same code must match")
	}
	if Matches("12345", h) || Matches("012346", h) {
		t.Fatalf("different code matched")
	}
}

func TestValidFormat(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", "12345", "1234567", "12a456", " 23456", "１２３４５６"} {
		if ValidFormat(s) {
			t.Fatalf("%q should be invalid", s)
		}
	}
}
