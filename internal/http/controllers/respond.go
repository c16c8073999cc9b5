// Package controllers expone los handlers HTTP del servicio.
package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	httperrors "github.com/dropDatabas3/mailplane/internal/http/errors"
)

// writeJSON serializa una respuesta con status explícito.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON parsea el body en dst. Body vacío deja dst en cero.
// Devuelve el AppError listo para escribir si el body es inválido.
func decodeJSON(r *http.Request, dst any) *httperrors.AppError {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return httperrors.ErrBodyTooLarge
	}
	return httperrors.ErrInvalidJSON.WithCause(err)
}
