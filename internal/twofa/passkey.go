package twofa

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

type challengeKind string

const (
	kindRegistration   challengeKind = "registration"
	kindAuthentication challengeKind = "authentication"
)

// challengeRecord es el slot único de challenge WebAuthn por DID.
type challengeRecord struct {
	Kind    challengeKind        `json:"kind"`
	Session webauthn.SessionData `json:"session"`
}

// ==== webauthn.User ====

type passkeyUser struct {
	id      []byte
	name    string
	display string
	creds   []webauthn.Credential
}

func (u *passkeyUser) WebAuthnID() []byte                         { return u.id }
func (u *passkeyUser) WebAuthnName() string                       { return u.name }
func (u *passkeyUser) WebAuthnDisplayName() string                { return u.display }
func (u *passkeyUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }
func (u *passkeyUser) WebAuthnIcon() string                       { return "" }

// userHandle es el user.id de WebAuthn: los bytes del DID (máximo 64).
func userHandle(did string) []byte {
	if len(did) <= 64 {
		return []byte(did)
	}
	sum := sha256.Sum256([]byte(did))
	return sum[:]
}

func newPasskeyUser(did, handle string, stored []Credential) (*passkeyUser, error) {
	if handle == "" {
		handle = did
	}
	u := &passkeyUser{id: userHandle(did), name: handle, display: handle}
	for _, c := range stored {
		wc, err := c.toWebAuthn()
		if err != nil {
			return nil, err
		}
		u.creds = append(u.creds, wc)
	}
	return u, nil
}

func (c Credential) toWebAuthn() (webauthn.Credential, error) {
	id, err := base64.RawURLEncoding.DecodeString(c.ID)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("twofa: stored credential id: %w", err)
	}
	pk, err := base64.RawURLEncoding.DecodeString(c.PublicKey)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("twofa: stored credential key: %w", err)
	}
	wc := webauthn.Credential{
		ID:        id,
		PublicKey: pk,
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
		Authenticator: webauthn.Authenticator{SignCount: c.Counter},
	}
	for _, t := range c.Transports {
		wc.Transport = append(wc.Transport, protocol.AuthenticatorTransport(t))
	}
	return wc, nil
}

func credentialFrom(wc *webauthn.Credential, createdAt int64) Credential {
	c := Credential{
		ID:             base64.RawURLEncoding.EncodeToString(wc.ID),
		PublicKey:      base64.RawURLEncoding.EncodeToString(wc.PublicKey),
		Counter:        wc.Authenticator.SignCount,
		BackupEligible: wc.Flags.BackupEligible,
		BackupState:    wc.Flags.BackupState,
		CreatedAt:      createdAt,
	}
	for _, t := range wc.Transport {
		c.Transports = append(c.Transports, string(t))
	}
	return c
}

func (s *Service) passkeyReady() error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.wa == nil {
		return ErrMethodNotEnabled
	}
	return nil
}

// ==== registro ====

// BeginPasskeyRegistration emite las opciones de creación y guarda el challenge.
// Las passkeys ya registradas se excluyen.
func (s *Service) BeginPasskeyRegistration(ctx context.Context, did, handle string) (opts *protocol.CredentialCreation, err error) {
	defer func() { s.observe(ctx, MethodPasskey, "register_options", err) }()
	if err := s.passkeyReady(); err != nil {
		return nil, err
	}
	stored, err := s.store.Credentials(ctx, did)
	if err != nil {
		return nil, err
	}
	user, err := newPasskeyUser(did, handle, stored)
	if err != nil {
		return nil, err
	}

	exclude := make([]protocol.CredentialDescriptor, 0, len(user.creds))
	for _, c := range user.creds {
		exclude = append(exclude, c.Descriptor())
	}

	opts, session, err := s.wa.BeginRegistration(user,
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			ResidentKey:        protocol.ResidentKeyRequirementRequired,
			RequireResidentKey: protocol.ResidentKeyRequired(),
			UserVerification:   protocol.VerificationPreferred,
		}),
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
		webauthn.WithExclusions(exclude),
	)
	if err != nil {
		return nil, fmt.Errorf("twofa: begin registration: %w", err)
	}
	rec := challengeRecord{Kind: kindRegistration, Session: *session}
	if err := s.store.PutChallenge(ctx, did, rec, s.challengeTTL); err != nil {
		return nil, err
	}
	return opts, nil
}

// FinishPasskeyRegistration verifica la attestation contra el challenge
// guardado (que se consume siempre) y habilita el método passkey.
func (s *Service) FinishPasskeyRegistration(ctx context.Context, did, handle string, body io.Reader) (err error) {
	defer func() { s.observe(ctx, MethodPasskey, "register_verify", err) }()
	if err := s.passkeyReady(); err != nil {
		return err
	}
	ch, err := s.store.TakeChallenge(ctx, did)
	if err != nil {
		return err
	}
	if ch.Kind != kindRegistration {
		return ErrChallengeMismatch
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasskeyFailed, err)
	}
	stored, err := s.store.Credentials(ctx, did)
	if err != nil {
		return err
	}
	user, err := newPasskeyUser(did, handle, stored)
	if err != nil {
		return err
	}
	wc, err := s.wa.CreateCredential(user, ch.Session, parsed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasskeyFailed, err)
	}

	stored = append(stored, credentialFrom(wc, s.nowMs()))
	if err := s.store.SaveCredentials(ctx, did, stored); err != nil {
		return err
	}
	cfg, err := s.loadOrNew(ctx, did)
	if err != nil {
		return err
	}
	if !cfg.Has(MethodPasskey) {
		cfg.Add(PasskeyMethod{EnabledAt: s.nowMs()})
	}
	return s.store.SaveConfig(ctx, did, cfg)
}

// ==== autenticación ====

// BeginPasskeyLogin emite las opciones de assertion para las passkeys del DID.
func (s *Service) BeginPasskeyLogin(ctx context.Context, did string) (opts *protocol.CredentialAssertion, err error) {
	defer func() { s.observe(ctx, MethodPasskey, "auth_options", err) }()
	if err := s.passkeyReady(); err != nil {
		return nil, err
	}
	user, _, err := s.loginUser(ctx, did)
	if err != nil {
		return nil, err
	}
	opts, session, err := s.wa.BeginLogin(user, webauthn.WithUserVerification(protocol.VerificationPreferred))
	if err != nil {
		return nil, fmt.Errorf("twofa: begin login: %w", err)
	}
	rec := challengeRecord{Kind: kindAuthentication, Session: *session}
	if err := s.store.PutChallenge(ctx, did, rec, s.challengeTTL); err != nil {
		return nil, err
	}
	return opts, nil
}

// FinishPasskeyLogin verifica la assertion. El contador de firmas debe crecer
// (o seguir en cero); el valor guardado se actualiza tras cada éxito.
func (s *Service) FinishPasskeyLogin(ctx context.Context, did string, body io.Reader) (err error) {
	defer func() { s.observe(ctx, MethodPasskey, "verify", err) }()
	if err := s.passkeyReady(); err != nil {
		return err
	}
	ch, err := s.store.TakeChallenge(ctx, did)
	if err != nil {
		return err
	}
	if ch.Kind != kindAuthentication {
		return ErrChallengeMismatch
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasskeyFailed, err)
	}
	user, stored, err := s.loginUser(ctx, did)
	if err != nil {
		return err
	}

	rawID := base64.RawURLEncoding.EncodeToString(parsed.RawID)
	idx := -1
	for i, c := range stored {
		if c.ID == rawID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrUnknownCredential
	}

	wc, err := s.wa.ValidateLogin(user, ch.Session, parsed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasskeyFailed, err)
	}
	if wc.Authenticator.CloneWarning || wc.Authenticator.SignCount < stored[idx].Counter {
		return ErrCounterRegression
	}

	stored[idx].Counter = wc.Authenticator.SignCount
	stored[idx].BackupState = wc.Flags.BackupState
	return s.store.SaveCredentials(ctx, did, stored)
}

// loginUser exige passkey habilitada y al menos una credencial.
func (s *Service) loginUser(ctx context.Context, did string) (*passkeyUser, []Credential, error) {
	cfg, err := s.loadEnabled(ctx, did)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Has(MethodPasskey) {
		return nil, nil, ErrMethodNotEnabled
	}
	stored, err := s.store.Credentials(ctx, did)
	if err != nil {
		return nil, nil, err
	}
	if len(stored) == 0 {
		return nil, nil, ErrNoPasskeys
	}
	user, err := newPasskeyUser(did, "", stored)
	if err != nil {
		return nil, nil, err
	}
	return user, stored, nil
}
