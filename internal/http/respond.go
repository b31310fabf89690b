package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"haybase/internal/core"
	"haybase/internal/log"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("Failed to encode response", "error", err)
		}
	}
}

// respondError maps domain error kinds onto HTTP statuses. Anything
// unclassified is a 500 with a generic body so internals do not leak.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case core.KindUnauthenticated:
		status = http.StatusUnauthorized
	case core.KindForbidden:
		status = http.StatusForbidden
	case core.KindNotFound:
		status = http.StatusNotFound
	case core.KindValidation:
		status = http.StatusUnprocessableEntity
	case core.KindConflict:
		status = http.StatusConflict
	}

	// The kind travels in its own field, so the message carries only
	// the human-readable part of a domain error.
	message := err.Error()
	var de *core.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	if status == http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentHTTP)
		message = "internal error"
	}
	respondJSON(w, status, errorBody{Error: message, Kind: kind.String()})
}

// decodeJSON reads a request body into dst, rejecting unknown fields
// and trailing garbage.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return core.Validationf("invalid request body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return core.Validationf("invalid request body: trailing data")
	}
	return nil
}
