package twofa

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Method identifica un segundo factor.
type Method string

const (
	MethodTOTP    Method = "totp"
	MethodEmail   Method = "email"
	MethodPasskey Method = "passkey"
)

// ParseMethod valida un método recibido del cliente. "" devuelve "" sin error
// (el llamador usa el método por defecto).
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case "", MethodTOTP, MethodEmail, MethodPasskey:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// MethodConfig es la configuración de un método habilitado.
// Interfaz sellada: solo TOTPMethod, EmailMethod y PasskeyMethod la implementan.
type MethodConfig interface {
	Method() Method
	EnabledSince() int64 // epoch ms
	sealed()
}

type TOTPMethod struct {
	Secret    string
	EnabledAt int64
}

type EmailMethod struct {
	Address   string
	EnabledAt int64
}

// PasskeyMethod solo marca la habilitación; las credenciales viven aparte.
type PasskeyMethod struct {
	EnabledAt int64
}

func (TOTPMethod) Method() Method { return MethodTOTP }
func (EmailMethod) Method() Method { return MethodEmail }
func (PasskeyMethod) Method() Method { return MethodPasskey }
func (m TOTPMethod) EnabledSince() int64 { return m.EnabledAt }
func (m EmailMethod) EnabledSince() int64 { return m.EnabledAt }
func (m PasskeyMethod) EnabledSince() int64 { return m.EnabledAt }
func (TOTPMethod) sealed() {}
func (EmailMethod) sealed() {}
func (PasskeyMethod) sealed() {}

// Config es la configuración 2FA de un DID.
// Invariante: sin métodos no existe registro (2FA deshabilitado).
type Config struct {
	DefaultMethod Method
	Methods       map[Method]MethodConfig
}

// Has indica si m está habilitado.
func (c *Config) Has(m Method) bool {
	_, ok := c.Methods[m]
	return ok
}

// Enabled lista los métodos habilitados en orden estable.
func (c *Config) Enabled() []Method {
	out := make([]Method, 0, len(c.Methods))
	for m := range c.Methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

// Add habilita (o reemplaza) un método. El default solo cambia si no había métodos.
func (c *Config) Add(mc MethodConfig) {
	if c.Methods == nil {
		c.Methods = map[Method]MethodConfig{}
	}
	if len(c.Methods) == 0 || !c.Has(c.DefaultMethod) {
		c.DefaultMethod = mc.Method()
	}
	c.Methods[mc.Method()] = mc
}

// Remove quita un método. Si era el default, el default pasa a otro restante.
func (c *Config) Remove(m Method) {
	delete(c.Methods, m)
	if c.DefaultMethod != m {
		return
	}
	c.DefaultMethod = ""
	if rest := c.Enabled(); len(rest) > 0 {
		c.DefaultMethod = rest[0]
	}
}

// Empty indica que no quedan métodos.
func (c *Config) Empty() bool { return len(c.Methods) == 0 }

func rank(m Method) int {
	switch m {
	case MethodPasskey:
		return 0
	case MethodTOTP:
		return 1
	case MethodEmail:
		return 2
	default:
		return 3
	}
}

// ==== wire ====

const configVersion = 2

type configWire struct {
	Version       int         `json:"version"`
	DefaultMethod Method      `json:"defaultMethod"`
	Methods       methodsWire `json:"methods"`
}

type methodsWire struct {
	TOTP    *totpWire    `json:"totp,omitempty"`
	Email   *emailWire   `json:"email,omitempty"`
	Passkey *passkeyWire `json:"passkey,omitempty"`
}

type totpWire struct {
	Secret    string `json:"secret"`
	EnabledAt int64  `json:"enabledAt"`
}

type emailWire struct {
	Address   string `json:"address"`
	EnabledAt int64  `json:"enabledAt"`
}

type passkeyWire struct {
	EnabledAt int64 `json:"enabledAt"`
}

// legacyConfig es el formato previo de un solo método (sin version).
type legacyConfig struct {
	Method     Method `json:"method"`
	Email      string `json:"email,omitempty"`
	TOTPSecret string `json:"totpSecret,omitempty"`
	EnabledAt  int64  `json:"enabledAt"`
}

func encodeConfig(c *Config) ([]byte, error) {
	w := configWire{Version: configVersion, DefaultMethod: c.DefaultMethod}
	for _, mc := range c.Methods {
		switch v := mc.(type) {
		case TOTPMethod:
			w.Methods.TOTP = &totpWire{Secret: v.Secret, EnabledAt: v.EnabledAt}
		case EmailMethod:
			w.Methods.Email = &emailWire{Address: v.Address, EnabledAt: v.EnabledAt}
		case PasskeyMethod:
			w.Methods.Passkey = &passkeyWire{EnabledAt: v.EnabledAt}
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnknownMethod, mc)
		}
	}
	return json.Marshal(w)
}

// decodeConfig acepta v2 y el formato legacy. migrated=true indica que el
// llamador debe persistir la forma nueva.
func decodeConfig(raw []byte) (cfg *Config, migrated bool, err error) {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, false, fmt.Errorf("twofa: decode config: %w", err)
	}

	if probe.Version == 0 {
		cfg, err := migrateLegacy(raw)
		return cfg, err == nil, err
	}
	if probe.Version != configVersion {
		return nil, false, fmt.Errorf("twofa: unsupported config version %d", probe.Version)
	}

	var w configWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, false, fmt.Errorf("twofa: decode config: %w", err)
	}
	cfg = &Config{DefaultMethod: w.DefaultMethod, Methods: map[Method]MethodConfig{}}
	if t := w.Methods.TOTP; t != nil {
		cfg.Methods[MethodTOTP] = TOTPMethod{Secret: t.Secret, EnabledAt: t.EnabledAt}
	}
	if e := w.Methods.Email; e != nil {
		cfg.Methods[MethodEmail] = EmailMethod{Address: e.Address, EnabledAt: e.EnabledAt}
	}
	if p := w.Methods.Passkey; p != nil {
		cfg.Methods[MethodPasskey] = PasskeyMethod{EnabledAt: p.EnabledAt}
	}
	if !cfg.Has(cfg.DefaultMethod) {
		if rest := cfg.Enabled(); len(rest) > 0 {
			cfg.DefaultMethod = rest[0]
		}
	}
	return cfg, false, nil
}

func migrateLegacy(raw []byte) (*Config, error) {
	var l legacyConfig
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("twofa: decode legacy config: %w", err)
	}
	var mc MethodConfig
	switch l.Method {
	case MethodTOTP:
		if l.TOTPSecret == "" {
			return nil, fmt.Errorf("twofa: legacy totp config without secret")
		}
		mc = TOTPMethod{Secret: l.TOTPSecret, EnabledAt: l.EnabledAt}
	case MethodEmail:
		if l.Email == "" {
			return nil, fmt.Errorf("twofa: legacy email config without address")
		}
		mc = EmailMethod{Address: l.Email, EnabledAt: l.EnabledAt}
	case MethodPasskey:
		mc = PasskeyMethod{EnabledAt: l.EnabledAt}
	default:
		return nil, fmt.Errorf("%w: legacy method %q", ErrUnknownMethod, l.Method)
	}
	cfg := &Config{}
	cfg.Add(mc)
	return cfg, nil
}
