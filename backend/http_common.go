package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/roomiematch/roomiematch/backend/model"
	"github.com/roomiematch/roomiematch/backend/store"
)

const maxBodyBytes = 1 << 20

// --- Response helpers ---
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeErrorDetails adds a human message and extra fields to the error body.
func writeErrorDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	body := map[string]any{"error": code}
	if message != "" {
		body["message"] = message
	}
	for k, v := range details {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// serverError logs err and answers with a generic 500.
func (a *app) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	a.log.Error(msg,
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("user_id", currentUserID(r)),
	)
	writeError(w, http.StatusInternalServerError, "server_error")
}

// decodeJSON reads a bounded JSON body into dst. It writes the error
// response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large")
			return false
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			fe := model.FieldError{Field: typeErr.Field, Message: "must be of type " + typeErr.Type.String()}
			writeErrorDetails(w, http.StatusBadRequest, "validation_failed", "Validation failed",
				map[string]any{"errors": []model.FieldError{fe}})
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter. ok is false when the
// parameter is present but not an integer.
func queryInt(r *http.Request, name string, def int) (v int, ok bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// writeStoreError maps store and validation errors onto responses.
func (a *app) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	var dup *store.DuplicateError
	switch {
	case errors.As(err, &verr):
		writeErrorDetails(w, http.StatusBadRequest, "validation_failed", "Validation failed", map[string]any{"errors": verr.Errors})
	case errors.As(err, &dup):
		writeErrorDetails(w, http.StatusConflict, "user_exists", dup.Error(), map[string]any{"field": dup.Field})
	case errors.Is(err, store.ErrNotFound):
		writeErrorDetails(w, http.StatusNotFound, "not_found", "User not found", nil)
	case errors.Is(err, store.ErrConflict):
		writeErrorDetails(w, http.StatusConflict, "conflict", "The profile was modified concurrently, please retry", nil)
	default:
		a.serverError(w, r, "store operation failed", err)
	}
}
