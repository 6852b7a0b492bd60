package pkce

import "testing"

func TestChallengeRFC7636Vector(t *testing.T) {
	t.Parallel()
	// RFC 7636 Appendix B
	const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	const want = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	if got := Challenge(verifier); got != want {
		t.Fatalf("challenge = %s, want %s", got, want)
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	p, err := Generate()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(p.Verifier) != 43 {
		t.Fatalf("verifier length = %d, want 43", len(p.Verifier))
	}
	if p.Challenge != Challenge(p.Verifier) {
		t.Fatalf("challenge does not match verifier")
	}
	q, _ := Generate()
	if p.Verifier == q.Verifier {
		t.Fatalf("verifiers collided")
	}
}

func TestState(t *testing.T) {
	t.Parallel()
	s, err := State()
	if err != nil || len(s) != 22 {
		t.Fatalf("state = %q (%d), err=%v", s, len(s), err)
	}
}
