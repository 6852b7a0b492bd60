// Package errors define el formato de error JSON de la API: {"error": "...", "code": "..."}.
//
// Los flujos de navegador (login/callback OAuth) NO usan este paquete: redirigen
// a un indicador genérico de falla.
package errors

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// WriteError escribe el error como JSON con el status del AppError.
// El detalle solo se envía en errores 4xx; la causa nunca se expone.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Error: appErr.Message,
		Code:  appErr.Code,
	}
	if appErr.HTTPStatus < http.StatusInternalServerError {
		resp.Detail = appErr.Detail
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}
