package twofa

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/atgate/internal/cache"
	"github.com/dropDatabas3/atgate/internal/observability/logger"
)

// ==== keys ====

func configKey(did string) string { return "twofa:" + did }
func credentialsKey(did string) string { return "twofa:credentials:" + did }
func challengeKey(did string) string { return "twofa:challenge:" + did }
func pendingKey(did string) string { return "twofa:pending:" + did }
func totpSetupKey(did string) string { return "twofa:totp-setup:" + did }

// Store persiste los registros 2FA en el cache (Redis en prod).
type Store struct {
	kv cache.Client
}

func NewStore(kv cache.Client) *Store {
	return &Store{kv: kv}
}

// ==== config ====

// LoadConfig retorna (nil, nil) si el DID no tiene 2FA. Un registro legacy
// se convierte y se persiste en la forma nueva una única vez.
func (s *Store) LoadConfig(ctx context.Context, did string) (*Config, error) {
	raw, err := s.kv.Get(ctx, configKey(did))
	if cache.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("twofa: load config: %w", err)
	}

	cfg, migrated, err := decodeConfig([]byte(raw))
	if err != nil {
		return nil, err
	}
	if migrated {
		if err := s.SaveConfig(ctx, did, cfg); err != nil {
			return nil, err
		}
		logger.From(ctx).Info("legacy 2fa config migrated",
			logger.Layer("store"), logger.Op("twofa.migrate"), logger.DID(did),
			logger.String("method", string(cfg.DefaultMethod)))
	}
	return cfg, nil
}

// SaveConfig guarda cfg; una config vacía borra el registro.
func (s *Store) SaveConfig(ctx context.Context, did string, cfg *Config) error {
	if cfg == nil || cfg.Empty() {
		return s.kv.Delete(ctx, configKey(did))
	}
	b, err := encodeConfig(cfg)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, configKey(did), string(b), 0); err != nil {
		return fmt.Errorf("twofa: save config: %w", err)
	}
	return nil
}

// ==== passkey credentials ====

// Credential es una passkey registrada. ID y PublicKey en base64url.
type Credential struct {
	ID             string   `json:"credentialId"`
	PublicKey      string   `json:"publicKey"`
	Counter        uint32   `json:"counter"`
	Transports     []string `json:"transports,omitempty"`
	BackupEligible bool     `json:"backupEligible,omitempty"`
	BackupState    bool     `json:"backupState,omitempty"`
	CreatedAt      int64    `json:"createdAt,omitempty"`
}

func (s *Store) Credentials(ctx context.Context, did string) ([]Credential, error) {
	var out []Credential
	if err := s.getJSON(ctx, credentialsKey(did), &out); err != nil {
		if cache.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

func (s *Store) SaveCredentials(ctx context.Context, did string, creds []Credential) error {
	if len(creds) == 0 {
		return s.kv.Delete(ctx, credentialsKey(did))
	}
	return s.setJSON(ctx, credentialsKey(did), creds, 0)
}

// ==== challenge (slot único, consumo único) ====

func (s *Store) PutChallenge(ctx context.Context, did string, ch challengeRecord, ttl time.Duration) error {
	return s.setJSON(ctx, challengeKey(did), ch, ttl)
}

// TakeChallenge lee y borra el challenge. Ausente o vencido: ErrChallengeExpired.
func (s *Store) TakeChallenge(ctx context.Context, did string) (challengeRecord, error) {
	raw, err := s.kv.Take(ctx, challengeKey(did))
	if cache.IsNotFound(err) {
		return challengeRecord{}, ErrChallengeExpired
	}
	if err != nil {
		return challengeRecord{}, fmt.Errorf("twofa: take challenge: %w", err)
	}
	var ch challengeRecord
	if err := json.Unmarshal([]byte(raw), &ch); err != nil {
		return challengeRecord{}, ErrChallengeExpired
	}
	return ch, nil
}

// ==== pending verification ====

func (s *Store) PutPending(ctx context.Context, did string, p pendingRecord, ttl time.Duration) error {
	return s.setJSON(ctx, pendingKey(did), p, ttl)
}

// Pending retorna ErrCodeExpired si no hay registro.
func (s *Store) Pending(ctx context.Context, did string) (pendingRecord, error) {
	var p pendingRecord
	if err := s.getJSON(ctx, pendingKey(did), &p); err != nil {
		if cache.IsNotFound(err) {
			return pendingRecord{}, ErrCodeExpired
		}
		return pendingRecord{}, err
	}
	return p, nil
}

func (s *Store) DeletePending(ctx context.Context, did string) error {
	return s.kv.Delete(ctx, pendingKey(did))
}

// ==== totp setup ====

func (s *Store) PutTOTPSetup(ctx context.Context, did, secret string, ttl time.Duration) error {
	return s.kv.Set(ctx, totpSetupKey(did), secret, ttl)
}

// TOTPSetup retorna ErrSetupExpired si no hay secreto pendiente.
func (s *Store) TOTPSetup(ctx context.Context, did string) (string, error) {
	v, err := s.kv.Get(ctx, totpSetupKey(did))
	if cache.IsNotFound(err) {
		return "", ErrSetupExpired
	}
	return v, err
}

func (s *Store) DeleteTOTPSetup(ctx context.Context, did string) error {
	return s.kv.Delete(ctx, totpSetupKey(did))
}

// ==== helpers ====

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("twofa: decode %s: %w", keyKind(key), err)
	}
	return nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, key, string(b), ttl); err != nil {
		return fmt.Errorf("twofa: save %s: %w", keyKind(key), err)
	}
	return nil
}

// keyKind evita que el DID termine en mensajes de error.
func keyKind(key string) string {
	for _, k := range []string{"twofa:credentials:", "twofa:challenge:", "twofa:pending:", "twofa:totp-setup:"} {
		if strings.HasPrefix(key, k) {
			return strings.TrimSuffix(k, ":")
		}
	}
	return "twofa"
}
