package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/typoreporter/apiserver/internal/account"
	"github.com/typoreporter/apiserver/internal/logging"
)

type contextKey string

const contextSubjectKey contextKey = "sub"

const maxJSONBody = 1 << 20

func accountIDFromContext(ctx context.Context) (string, error) {
	subject, ok := ctx.Value(contextSubjectKey).(string)
	if !ok {
		return "", errors.New("missing subject")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("invalid subject")
	}
	return subject, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decodeForm is decodeJSON for routes that accept a whole submitted form and
// ignore the fields they do not use.
func decodeForm(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FieldErrorResponse reports per-field form errors.
type FieldErrorResponse struct {
	Error        string            `json:"error"`
	Fields       map[string]string `json:"fields"`
	FormModified bool              `json:"formModified"`
}

// writeAccountError maps account errors to responses. Anything that is not a
// known account error is logged and reported as a 500 with fallback.
func writeAccountError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error, fallback string) {
	if account.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	if fields := account.FieldErrors(err); fields != nil {
		status, message := http.StatusUnprocessableEntity, "validation failed"
		if conflictOnly(err) {
			status, message = http.StatusConflict, "email already in use"
		}
		writeJSON(w, status, FieldErrorResponse{Error: message, Fields: fields, FormModified: true})
		return
	}

	logger.Error(r.Context(), fallback, "err", err)
	writeError(w, http.StatusInternalServerError, fallback)
}

func conflictOnly(err error) bool {
	var (
		cerr *account.ConflictError
		verr *account.ValidationError
		perr *account.PasswordError
	)
	return errors.As(err, &cerr) && !errors.As(err, &verr) && !errors.As(err, &perr)
}
