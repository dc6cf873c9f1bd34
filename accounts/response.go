package accounts

import (
	"encoding/json"
	"errors"
	"net/http"

	"bank-transfer/accounts/domain"
)

type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

type ErrorResponse struct {
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// StatusFor traduz um erro de domínio para status HTTP.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAccountID),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSelfTransfer):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateAccount):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrLockTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string, details []FieldError) {
	writeJSON(w, code, ErrorResponse{Message: msg, Details: details})
}
