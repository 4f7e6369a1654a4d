package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/fortivault/fortivault/internal/errs"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

type errorKind struct {
	target error
	status int
	kind   string
}

// errorKinds is ordered: the first sentinel matched by errors.Is wins.
var errorKinds = []errorKind{
	{errs.ErrValidation, http.StatusBadRequest, "ValidationError"},
	{errs.ErrDuplicateEmail, http.StatusConflict, "DuplicateEmail"},
	{errs.ErrInvalidCredentials, http.StatusUnauthorized, "InvalidCredentials"},
	{errs.ErrExpired, http.StatusUnauthorized, "Expired"},
	{errs.ErrInvalidToken, http.StatusUnauthorized, "InvalidToken"},
	{errs.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{errs.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{errs.ErrNotFound, http.StatusNotFound, "NotFound"},
	{errs.ErrRateLimited, http.StatusTooManyRequests, "RateLimited"},
	{errs.ErrDecryption, http.StatusInternalServerError, "DecryptionError"},
	{errs.ErrExternalService, http.StatusServiceUnavailable, "ExternalServiceError"},
}

// classify maps err to a status code and error kind.
func classify(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.kind
		}
	}
	return http.StatusInternalServerError, "Internal"
}

// publicMessage hides server-side detail behind a fixed text for 5xx responses.
func publicMessage(status int, kind string, err error) string {
	if status < http.StatusInternalServerError {
		return err.Error()
	}
	switch kind {
	case "DecryptionError":
		return "a stored credential could not be decrypted"
	case "ExternalServiceError":
		return "threat intelligence service unavailable"
	default:
		return "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("kind", kind),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, ErrorResponse{Kind: kind, Error: publicMessage(status, kind, err)})
}

// decodeJSON reads one JSON object into dst. Every decoding failure is a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", errs.ErrValidation)
		}
		return fmt.Errorf("%w: malformed request body: %v", errs.ErrValidation, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must hold a single JSON object", errs.ErrValidation)
	}
	return nil
}
