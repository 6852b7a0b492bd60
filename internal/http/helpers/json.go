// Package helpers reúne utilidades JSON compartidas por los controllers.
package helpers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/atgate/internal/http/errors"
)

// MaxJSONBody acota los bodies JSON de la API (las attestations WebAuthn
// son los más grandes).
const MaxJSONBody = 64 << 10

// ReadJSON decodifica el body en dst. Un body vacío deja dst en su valor cero.
// Los errores ya son AppError listos para WriteError.
func ReadJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "application/json") {
		return httperrors.ErrInvalidJSON.WithDetail("Content-Type must be application/json")
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBody)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, &tooLarge):
			return httperrors.ErrBodyTooLarge
		default:
			return httperrors.ErrInvalidJSON
		}
	}
	if dec.More() {
		return httperrors.ErrInvalidJSON.WithDetail("trailing data after JSON body")
	}
	return nil
}

// LimitBody acota un body que se pasa crudo a otra capa (respuestas WebAuthn).
func LimitBody(w http.ResponseWriter, r *http.Request) io.Reader {
	return http.MaxBytesReader(w, r.Body, MaxJSONBody)
}

// WriteJSON escribe v como JSON con el status dado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Success es la respuesta {"success": true} de las operaciones sin payload.
func Success(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
