package twofa

import "context"

// Verify chequea un código de login. method "" usa el default.
// Passkey no pasa por acá: usa BeginPasskeyLogin/FinishPasskeyLogin.
func (s *Service) Verify(ctx context.Context, did string, method Method, code string) (err error) {
	defer func() { s.observe(ctx, method, "verify", err) }()
	if err := s.ready(); err != nil {
		return err
	}
	cfg, err := s.loadEnabled(ctx, did)
	if err != nil {
		return err
	}
	if method == "" {
		method = cfg.DefaultMethod
	}
	mc, ok := cfg.Methods[method]
	if !ok {
		return ErrMethodNotEnabled
	}

	switch v := mc.(type) {
	case TOTPMethod:
		if !s.validTOTP(code, v.Secret) {
			return ErrInvalidCode
		}
		return nil
	case EmailMethod:
		_, err := s.checkCode(ctx, did, code, PurposeEmailVerify)
		return err
	case PasskeyMethod:
		return ErrPasskeyCeremony
	default:
		return ErrUnknownMethod
	}
}

// Disable quita un método. TOTP y email exigen un código vigente de ese
// método; passkey no (la sesión verificada alcanza). Quitar el último método
// borra la configuración.
func (s *Service) Disable(ctx context.Context, did string, method Method, code string) (err error) {
	defer func() { s.observe(ctx, method, "disable", err) }()
	if err := s.ready(); err != nil {
		return err
	}
	cfg, err := s.loadEnabled(ctx, did)
	if err != nil {
		return err
	}
	if method == "" {
		method = cfg.DefaultMethod
	}
	mc, ok := cfg.Methods[method]
	if !ok {
		return ErrMethodNotEnabled
	}

	switch v := mc.(type) {
	case TOTPMethod:
		if !s.validTOTP(code, v.Secret) {
			return ErrInvalidCode
		}
	case EmailMethod:
		if _, err := s.checkCode(ctx, did, code, PurposeDisable); err != nil {
			return err
		}
	case PasskeyMethod:
		if err := s.store.SaveCredentials(ctx, did, nil); err != nil {
			return err
		}
	default:
		return ErrUnknownMethod
	}

	cfg.Remove(method)
	return s.store.SaveConfig(ctx, did, cfg)
}
