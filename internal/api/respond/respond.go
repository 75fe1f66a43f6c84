package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// BusyMessage is returned to clients when the generation upstream stays overloaded.
const BusyMessage = "Model is busy. Please retry."

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    statusCode,
		Message: message,
	})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}

func WriteServiceUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, message)
}

// WriteDomainError maps errors from the memory pipeline to HTTP statuses.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case model.IsValidation(err):
		WriteBadRequest(w, err.Error())
	case model.IsUpstreamUnavailable(err):
		log.Warn().Err(err).Msg("generation upstream unavailable")
		WriteServiceUnavailable(w, BusyMessage)
	case model.IsCapacityExceeded(err):
		log.Error().Err(err).Msg("token budget misconfigured")
		WriteInternalError(w, err.Error())
	case model.IsStorageCorruption(err):
		log.Error().Stack().Err(err).Msg("stored record unreadable")
		WriteInternalError(w, "stored conversation record is unreadable")
	default:
		log.Error().Stack().Err(err).Msg("request failed")
		WriteInternalError(w, err.Error())
	}
}
