package logger

import "testing"

func TestRedactDID(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"did:plc:ewvi7nxzyoun6zhxrhs64oiz": "did:plc:ewvi7n…",
		"did:web:example.com":             "did:web:exampl…",
		"did:plc:abc":                     "did:plc:abc",
		"":                                "",
		"alice.example.com":               "ali…",
	}
	for in, want := range cases {
		if got := RedactDID(in); got != want {
			t.Fatalf("RedactDID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRedactHandle(t *testing.T) {
	t.Parallel()
	if got := RedactHandle("bob.bsky.social"); got != "bob…" {
		t.Fatalf("got %q", got)
	}
	if got := RedactHandle("ab"); got != "**" {
		t.Fatalf("short handle should be fully masked, got %q", got)
	}
}

func TestMaskEmail(t *testing.T) {
	t.Parallel()
	if got := MaskEmail("Alice@Example.com"); got != "a…@e….com" {
		t.Fatalf("got %q", got)
	}
	if got := MaskEmail(""); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestOriginOf(t *testing.T) {
	t.Parallel()
	if got := originOf("https://pds.example.com/oauth/token?x=1"); got != "https://pds.example.com" {
		t.Fatalf("got %q", got)
	}
	if got := originOf("::"); got != "invalid" {
		t.Fatalf("got %q", got)
	}
}
