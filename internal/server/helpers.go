package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Simon-Egedal/farmor-aktier/internal/clients/eodhd"
	"github.com/Simon-Egedal/farmor-aktier/internal/models"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// RequireMethod validates the HTTP method and returns true if it matches.
// If it doesn't match, it writes a 405 response and returns false.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// WriteDomainError maps service-level errors to HTTP status codes.
func WriteDomainError(w http.ResponseWriter, err error) {
	var apiErr *eodhd.APIError

	switch {
	case errors.Is(err, models.ErrInvalidAmount), errors.Is(err, models.ErrInvalidShares):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_input")
	case errors.Is(err, models.ErrInsufficientFunds):
		WriteErrorWithCode(w, http.StatusUnprocessableEntity, err.Error(), "insufficient_funds")
	case errors.Is(err, models.ErrInsufficientShares):
		WriteErrorWithCode(w, http.StatusUnprocessableEntity, err.Error(), "insufficient_shares")
	case errors.Is(err, models.ErrVersionConflict):
		WriteErrorWithCode(w, http.StatusConflict, "portfolio was modified concurrently, please retry", "version_conflict")
	case errors.Is(err, models.ErrNotFound):
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.As(err, &apiErr):
		WriteErrorWithCode(w, http.StatusBadGateway, "market data provider error: "+err.Error(), "provider_error")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
