package signedcookie

import (
	"encoding/base64"
	"errors"
	"testing"
)

type sample struct {
	UserDID   string `json:"userDid"`
	CreatedAt int64  `json:"createdAt"`
	Verified  *bool  `json:"verified,omitempty"`
}

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New([]byte("test-secret-0123456789abcdef"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return c
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	c := newCodec(t)
	f := false
	in := sample{UserDID: "did:plc:abc", CreatedAt: 1_700_000_000_000, Verified: &f}

	v, err := c.Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out sample
	if err := c.Decode(v, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.UserDID != in.UserDID || out.CreatedAt != in.CreatedAt || out.Verified == nil || *out.Verified {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestTamperAnySingleCharacter(t *testing.T) {
	t.Parallel()
	c := newCodec(t)
	v, _ := c.Encode(sample{UserDID: "did:plc:abc", CreatedAt: 1})

	for i := 0; i < len(v); i++ {
		b := []byte(v)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		var out sample
		if err := c.Decode(string(b), &out); !errors.Is(err, ErrInvalid) {
			t.Fatalf("tamper at %d accepted: %q -> %+v", i, b, out)
		}
	}
}

func TestMalformed(t *testing.T) {
	t.Parallel()
	c := newCodec(t)
	for _, v := range []string{"", ".", "abc", "abc.", ".sig", "a.b.c", "%%%.%%%"} {
		var out sample
		if err := c.Decode(v, &out); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%q: expected ErrInvalid, got %v", v, err)
		}
	}
}

func TestValidSignatureBadJSON(t *testing.T) {
	t.Parallel()
	c := newCodec(t)
	v := c.Sign(base64.RawURLEncoding.EncodeToString([]byte("{not json")))
	var out sample
	if err := c.Decode(v, &out); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestDifferentKeyRejects(t *testing.T) {
	t.Parallel()
	a := newCodec(t)
	b, _ := New([]byte("another-secret"))
	v, _ := a.Encode(sample{UserDID: "did:plc:x"})
	var out sample
	if err := b.Decode(v, &out); !errors.Is(err, ErrInvalid) {
		t.Fatalf("foreign signature accepted")
	}
}

func TestEmptySecret(t *testing.T) {
	t.Parallel()
	if _, err := New(nil); err == nil {
		t.Fatalf("expected error")
	}
}
