package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"realty-backend/internal/domain"
	"realty-backend/internal/logger"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "status", status, "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeErrorFrom reports err with its first letter capitalized.
func writeErrorFrom(w http.ResponseWriter, status int, err error) {
	writeError(w, status, errorMessage(err))
}

func errorMessage(err error) string {
	msg := err.Error()
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}

// decodeJSON reads a JSON request body into dst and validates its struct tags
// when validate is non-nil.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, validate *validator.Validate) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	if validate == nil {
		return nil
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid field %s: failed %s", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

// writeServiceError maps domain errors onto HTTP statuses. Unknown errors
// are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProfileNotFound), errors.Is(err, domain.ErrSequenceNotFound):
		writeErrorFrom(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrAlreadyEnrolled),
		errors.Is(err, domain.ErrSequenceHasNoSteps),
		errors.Is(err, domain.ErrSequenceInactive),
		errors.Is(err, domain.ErrSequenceTypeMismatch),
		errors.Is(err, domain.ErrInvalidStage),
		errors.Is(err, domain.ErrInvalidProfileType):
		writeErrorFrom(w, http.StatusBadRequest, err)
	default:
		logger.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
