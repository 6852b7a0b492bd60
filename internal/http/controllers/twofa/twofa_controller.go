// Package twofa contiene los controllers de /api/twofa/*.
//
// Todas las rutas pasan por WithSession y WithCSRF. Las de alta, baja y
// default-method además exigen una sesión verificada (RequireVerified).
package twofa

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	dto "github.com/dropDatabas3/atgate/internal/http/dto/twofa"
	httperrors "github.com/dropDatabas3/atgate/internal/http/errors"
	"github.com/dropDatabas3/atgate/internal/http/helpers"
	mw "github.com/dropDatabas3/atgate/internal/http/middlewares"
	"github.com/dropDatabas3/atgate/internal/observability/logger"
	"github.com/dropDatabas3/atgate/internal/session"
	"github.com/dropDatabas3/atgate/internal/twofa"
)

type TwoFAController struct {
	svc      *twofa.Service
	sessions *session.Manager
}

func NewTwoFAController(svc *twofa.Service, sessions *session.Manager) *TwoFAController {
	return &TwoFAController{svc: svc, sessions: sessions}
}

// current devuelve la sesión del contexto y el logger del controller.
func (c *TwoFAController) current(w http.ResponseWriter, r *http.Request, op string) (session.UserSession, *zap.Logger, bool) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("twofa."+op))
	s, ok := mw.GetSession(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return session.UserSession{}, log, false
	}
	return s, log, true
}

// ==== lectura ====

// Status handles GET /api/twofa/status
func (c *TwoFAController) Status(w http.ResponseWriter, r *http.Request) {
	s, log, ok := c.current(w, r, "status")
	if !ok {
		return
	}
	st, err := c.svc.Status(r.Context(), s.UserDID)
	if err != nil {
		c.handleServiceError(w, err, log)
		return
	}
	resp := dto.StatusResponse{Enabled: st.Enabled, Method: string(st.Method), Email: st.Email}
	for _, m := range st.Methods {
		resp.Methods = append(resp.Methods, string(m))
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// ==== enrolamiento ====

// TOTPSetup handles POST /api/twofa/totp-setup {step: init|verify, code?}
func (c *TwoFAController) TOTPSetup(w http.ResponseWriter, r *http.Request) {
	s, log, ok := c.current(w, r, "totp_setup")
	if !ok {
		return
	}
	var req dto.SetupRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	step, err := twofa.ParseStep(twofa.FlowTOTPSetup, req.Step)
	if err != nil {
		c.handleServiceError(w, err, log)
		return
	}

	switch step {
	case twofa.StepInit:
		enr, err := c.svc.BeginTOTPSetup(r.Context(), s.UserDID, s.UserHandle)
		if err != nil {
			c.handleServiceError(w, err, log)
			return
		}
		helpers.WriteJSON(w, http.StatusOK, dto.TOTPInitResponse{
			Secret:     enr.Secret,
			OTPAuthURL: enr.OTPAuthURL,
			QRCodePNG:  enr.QRCodePNG,
		})
	case twofa.StepVerify:
		if err := c.svc.ConfirmTOTPSetup(r.Context(), s.UserDID, req.Code); err != nil {
			c.handleServiceError(w, err, log)
			return
		}
		log.Info("totp enabled")
		helpers.Success(w)
	}
}

// EmailSetup handles POST /api/twofa/email-setup {step: send|verify, email?, code?}
func (c *TwoFAController) EmailSetup(w http.ResponseWriter, r *http.Request) {
	s, log, ok := c.current(w, r, "email_setup")
	if !ok {
		return
	}
	var req dto.SetupRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	step, err := twofa.ParseStep(twofa.FlowEmailSetup, req.Step)
	if err != nil {
		c.handleServiceError(w, err, log)
		return
	}

	switch step {
	case twofa.StepSend:
		err = c.svc.BeginEmailSetup(r.Context(), s.UserDID, req.Email)
	case twofa.StepVerify:
		err = c.svc.ConfirmEmailSetup(r.Context(), s.UserDID, req.Code)
		if err == nil {
			log.Info("email 2fa enabled")
		}
	}
	if err != nil {
		c.handleServiceError(w, err, log)
		return
	}
	helpers.Success(w)
}

// PasskeyRegisterOptions handles POST /api/twofa/passkey-register-options
func (c *TwoFAController) PasskeyRegisterOptions(w http.ResponseWriter, r *http.Request) {
	s, log, ok := c.current(w, r, "passkey_register_options")
	if !ok {
		return
	}
	opts, err := c.svc.BeginPasskeyRegistration(r.Context(), s.UserDID, s.UserHandle)
	if err != nil {
		c.handleServiceError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, opts.Response)
}

// PasskeyRegisterVerify handles POST /api/twofa/passkey-register-verify.
// El body es la respuesta cruda de navigator.credentials.create().
func (c *TwoFAController) PasskeyRegisterVerify(w http.ResponseWriter, r *http.Request) {
	s, log, ok := c.current(w, r, "passkey_register_verify")
	if !ok {
		return
	}
	if err := c.svc.FinishPasskeyRegistration(r.Context(), s.UserDID, s.UserHandle, helpers.LimitBody(w, r)); err != nil {
		c.handleServiceError(w, err, log)
		return
	}
	log.Info("passkey registered")
	helpers.Success(w)
}

// DefaultMethod handles POST /api/twofa/default-method {method}
func (c *TwoFAController) DefaultMethod(w http.ResponseWriter, r *http.Request) {
	s, log, ok := c.current(w, r, "default_method")
	if !ok {
		return
	}
	var req dto.DefaultMethodRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	m, err := twofa.ParseMethod(req.Method)
	if err == nil && m == "" {
		err = twofa.ErrUnknownMethod
	}
	if err == nil {
		err = c.svc.SetDefaultMethod(r.Context(), s.UserDID, m)
	}
	if err != nil {
		c.handleServiceError(w, err, log)
		return
	}
	helpers.Success(w)
}

// ==== verificación (login) ====

// SendEmailCode handles POST /api/twofa/send-email-code {purpose?: verify|disable}
func (c *TwoFAController) SendEmailCode(w http.ResponseWriter, r *http.Request) {
	s, log, ok := c.current(w, r, "send_email_code")
	if !ok {
		return
	}
	var req dto.SendEmailCodeRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	purpose, err := twofa.ParseSendPurpose(req.Purpose)
	if err == nil {
		err = c.svc.SendEmailCode(r.Context(), s.UserDID, purpose)
	}
	if err != nil {
		c.handleServiceError(w, err, log)
		return
	}
	helpers.Success(w)
}

// Verify handles POST /api/twofa/verify {code, method?}. Un éxito marca la
// sesión como verificada.
func (c *TwoFAController) Verify(w http.ResponseWriter, r *http.Request) {
	s, log, ok := c.current(w, r, "verify")
	if !ok {
		return
	}
	var req dto.VerifyRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	m, err := twofa.ParseMethod(req.Method)
	if err == nil {
		err = c.svc.Verify(r.Context(), s.UserDID, m, req.Code)
	}
	if err != nil {
		c.handleServiceError(w, err, log)
		return
	}
	c.markVerified(w, s, log)
}

// PasskeyAuthOptions handles POST /api/twofa/passkey-auth-options
func (c *TwoFAController) PasskeyAuthOptions(w http.ResponseWriter, r *http.Request) {
	s, log, ok := c.current(w, r, "passkey_auth_options")
	if !ok {
		return
	}
	opts, err := c.svc.BeginPasskeyLogin(r.Context(), s.UserDID)
	if err != nil {
		c.handleServiceError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, opts.Response)
}

// PasskeyVerify handles POST /api/twofa/passkey-verify.
// El body es la respuesta cruda de navigator.credentials.get().
func (c *TwoFAController) PasskeyVerify(w http.ResponseWriter, r *http.Request) {
	s, log, ok := c.current(w, r, "passkey_verify")
	if !ok {
		return
	}
	if err := c.svc.FinishPasskeyLogin(r.Context(), s.UserDID, helpers.LimitBody(w, r)); err != nil {
		c.handleServiceError(w, err, log)
		return
	}
	c.markVerified(w, s, log)
}

// ==== baja ====

// Disable handles POST /api/twofa/disable {method?, code?}. La cookie se
// reemite como verificada.
func (c *TwoFAController) Disable(w http.ResponseWriter, r *http.Request) {
	s, log, ok := c.current(w, r, "disable")
	if !ok {
		return
	}
	var req dto.DisableRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	m, err := twofa.ParseMethod(req.Method)
	if err == nil {
		err = c.svc.Disable(r.Context(), s.UserDID, m, req.Code)
	}
	if err != nil {
		c.handleServiceError(w, err, log)
		return
	}
	log.Info("2fa method disabled", logger.String("method", req.Method))
	c.markVerified(w, s, log)
}

// markVerified reemite session_id con verified=true conservando createdAt.
func (c *TwoFAController) markVerified(w http.ResponseWriter, s session.UserSession, log *zap.Logger) {
	v := true
	s.Verified = &v
	if err := c.sessions.SetSession(w, s); err != nil {
		log.Error("session cookie", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	helpers.Success(w)
}

// handleServiceError traduce los errores de twofa al catálogo HTTP.
func (c *TwoFAController) handleServiceError(w http.ResponseWriter, err error, log *zap.Logger) {
	var appErr *httperrors.AppError
	switch {
	case errors.As(err, &appErr):
		httperrors.WriteError(w, appErr)
	case errors.Is(err, twofa.ErrStoreUnavailable):
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail("2FA storage not configured"))
	case errors.Is(err, twofa.ErrEmailUnavailable):
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail("email delivery not configured"))
	case errors.Is(err, twofa.ErrNotEnabled):
		httperrors.WriteError(w, httperrors.ErrTwoFactorNotEnabled)
	case errors.Is(err, twofa.ErrMethodNotEnabled):
		httperrors.WriteError(w, httperrors.ErrMethodNotEnabled)
	case errors.Is(err, twofa.ErrUnknownMethod):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("unknown method"))
	case errors.Is(err, twofa.ErrInvalidPurpose):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("unknown purpose"))
	case errors.Is(err, twofa.ErrPasskeyCeremony):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("use passkey-auth-options and passkey-verify"))
	case errors.Is(err, twofa.ErrInvalidStep):
		httperrors.WriteError(w, httperrors.ErrInvalidStep)
	case errors.Is(err, twofa.ErrInvalidEmail):
		httperrors.WriteError(w, httperrors.ErrInvalidEmail)
	case errors.Is(err, twofa.ErrInvalidCode):
		httperrors.WriteError(w, httperrors.ErrInvalidCode)
	case errors.Is(err, twofa.ErrCodeExpired):
		httperrors.WriteError(w, httperrors.ErrCodeExpired)
	case errors.Is(err, twofa.ErrTooManyAttempts):
		httperrors.WriteError(w, httperrors.ErrTooManyAttempts)
	case errors.Is(err, twofa.ErrPurposeMismatch):
		httperrors.WriteError(w, httperrors.ErrPurposeMismatch)
	case errors.Is(err, twofa.ErrSetupExpired):
		httperrors.WriteError(w, httperrors.ErrSetupExpired)
	case errors.Is(err, twofa.ErrChallengeExpired), errors.Is(err, twofa.ErrChallengeMismatch):
		httperrors.WriteError(w, httperrors.ErrChallengeExpired)
	case errors.Is(err, twofa.ErrNoPasskeys):
		httperrors.WriteError(w, httperrors.ErrNoPasskeys)
	case errors.Is(err, twofa.ErrUnknownCredential):
		httperrors.WriteError(w, httperrors.ErrUnknownCredential)
	case errors.Is(err, twofa.ErrCounterRegression):
		log.Warn("passkey counter regression", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrPasskeyFailed)
	case errors.Is(err, twofa.ErrPasskeyFailed):
		log.Info("passkey ceremony failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrPasskeyFailed)
	default:
		log.Error("unexpected error", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
