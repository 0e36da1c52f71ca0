package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"trivia-quiz-service/internal/domain"
)

type errorPayload struct {
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorPayload{Message: message})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidName):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSubmissionRejected),
		errors.Is(err, domain.ErrSubmissionInProgress),
		errors.Is(err, domain.ErrSessionNotComplete),
		errors.Is(err, domain.ErrNoActiveQuestion):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidAnswer),
		errors.Is(err, domain.ErrEmptyPool),
		errors.Is(err, domain.ErrMalformedQuestion):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondWithDomainError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError || code == http.StatusBadGateway {
		// Infrastructure details stay in the logs.
		msg = http.StatusText(code)
	}
	respondWithError(w, code, msg)
}
