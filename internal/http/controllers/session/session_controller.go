// Package session expone la sesión actual a la UI.
package session

import (
	"net/http"

	dto "github.com/dropDatabas3/atgate/internal/http/dto/session"
	httperrors "github.com/dropDatabas3/atgate/internal/http/errors"
	"github.com/dropDatabas3/atgate/internal/http/helpers"
	mw "github.com/dropDatabas3/atgate/internal/http/middlewares"
)

type SessionController struct{}

func NewSessionController() *SessionController { return &SessionController{} }

// Get handles GET /api/session (detrás de WithSession).
func (c *SessionController) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := mw.GetSession(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.SessionResponse{
		DID:      s.UserDID,
		Handle:   s.UserHandle,
		Verified: s.IsVerified(),
	})
}
