package dpop

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func parseProof(t *testing.T, proof string, pub *ecdsa.PublicKey) (*jwt.Token, *Claims) {
	t.Helper()
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(proof, claims, func(*jwt.Token) (any, error) { return pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}))
	if err != nil {
		t.Fatalf("proof does not verify as ES256: %v", err)
	}
	return tok, claims
}

func TestProofVerifiesWithES256(t *testing.T) {
	t.Parallel()
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	proof, err := kp.Proof(ProofParams{
		Method: "post",
		URL:    "https://pds.example.com/oauth/token?x=1#frag",
		Nonce:  "server-nonce",
		Now:    now,
	})
	if err != nil {
		t.Fatalf("proof: %v", err)
	}

	parts := strings.Split(proof, ".")
	if len(parts) != 3 {
		t.Fatalf("proof is not a compact JWS")
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || len(sig) != 64 {
		t.Fatalf("raw signature must be 64 bytes, got %d (%v)", len(sig), err)
	}
	h := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
	if !ecdsa.Verify(kp.PublicKey(), h[:], new(big.Int).SetBytes(sig[:32]), new(big.Int).SetBytes(sig[32:])) {
		t.Fatalf("raw r||s does not verify")
	}

	tok, claims := parseProof(t, proof, kp.PublicKey())
	if tok.Header["typ"] != HeaderType {
		t.Fatalf("typ = %v", tok.Header["typ"])
	}
	jwkHdr, _ := json.Marshal(tok.Header["jwk"])
	var got JWK
	_ = json.Unmarshal(jwkHdr, &got)
	if got != kp.PublicJWK() || got.D != "" {
		t.Fatalf("jwk header = %+v", got)
	}
	if claims.HTM != "POST" || claims.HTU != "https://pds.example.com/oauth/token" {
		t.Fatalf("htm/htu = %s %s", claims.HTM, claims.HTU)
	}
	if claims.Nonce != "server-nonce" || claims.ATH != "" {
		t.Fatalf("nonce/ath = %q %q", claims.Nonce, claims.ATH)
	}
	if claims.ID == "" || !claims.IssuedAt.Time.Equal(now) {
		t.Fatalf("jti/iat = %q %v", claims.ID, claims.IssuedAt)
	}
}

func TestProofJTIIsFreshAndATH(t *testing.T) {
	t.Parallel()
	kp, _ := GenerateKeyPair()
	p1, _ := kp.Proof(ProofParams{Method: "GET", URL: "https://pds.example.com/xrpc/x", AccessToken: "tok"})
	p2, _ := kp.Proof(ProofParams{Method: "GET", URL: "https://pds.example.com/xrpc/x", AccessToken: "tok"})

	_, c1 := parseProof(t, p1, kp.PublicKey())
	_, c2 := parseProof(t, p2, kp.PublicKey())
	if c1.ID == c2.ID {
		t.Fatalf("jti reused across proofs")
	}
	sum := sha256.Sum256([]byte("tok"))
	if c1.ATH != base64.RawURLEncoding.EncodeToString(sum[:]) {
		t.Fatalf("ath = %s", c1.ATH)
	}
}

func TestProofRejectsRelativeURL(t *testing.T) {
	t.Parallel()
	kp, _ := GenerateKeyPair()
	if _, err := kp.Proof(ProofParams{Method: "POST", URL: "/oauth/par"}); err == nil {
		t.Fatalf("expected error for relative htu")
	}
}

func TestRestoreKeyPair(t *testing.T) {
	t.Parallel()
	kp, _ := GenerateKeyPair()
	priv := kp.PrivateJWK()

	restored, err := RestoreKeyPair(priv)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.PublicJWK() != kp.PublicJWK() {
		t.Fatalf("restored public key differs")
	}

	// derivación determinística sin x/y
	priv.X, priv.Y = "", ""
	again, err := RestoreKeyPair(priv)
	if err != nil || again.PublicJWK() != kp.PublicJWK() {
		t.Fatalf("restore from d only: %v", err)
	}

	proof, _ := restored.Proof(ProofParams{Method: "POST", URL: "https://as.example.com/oauth/token"})
	parseProof(t, proof, kp.PublicKey())
}

func TestRestoreKeyPairRejects(t *testing.T) {
	t.Parallel()
	kp, _ := GenerateKeyPair()
	other, _ := GenerateKeyPair()

	mismatch := kp.PrivateJWK()
	mismatch.X = other.PublicJWK().X

	wrongCrv := kp.PrivateJWK()
	wrongCrv.Crv = "P-384"

	badD := kp.PrivateJWK()
	badD.D = "!!"

	zeroD := kp.PrivateJWK()
	zeroD.D = base64.RawURLEncoding.EncodeToString(make([]byte, 32))
	zeroD.X, zeroD.Y = "", ""

	for name, j := range map[string]JWK{"mismatch": mismatch, "crv": wrongCrv, "bad d": badD, "zero d": zeroD} {
		if _, err := RestoreKeyPair(j); !errors.Is(err, ErrInvalidJWK) {
			t.Fatalf("%s: expected ErrInvalidJWK, got %v", name, err)
		}
	}
}
