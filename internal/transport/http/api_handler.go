package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

// APIHandler serves the REST surface of the quiz.
type APIHandler struct {
	service          *app.QuizService
	log              logrus.FieldLogger
	completionMaxAge time.Duration
}

func NewAPIHandler(service *app.QuizService, log logrus.FieldLogger, completionMaxAge time.Duration) *APIHandler {
	return &APIHandler{service: service, log: log, completionMaxAge: completionMaxAge}
}

type startRequest struct {
	Day string `json:"day"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type submitRequest struct {
	Name string `json:"name"`
}

// StartSession begins (or resumes, for a finished day) the caller's session.
func (h *APIHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req startRequest
	if err := decodeOptional(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	scope, err := h.service.ResolveScope(req.Day)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var prior *domain.CompletionRecord
	if record, ok := app.NewCompletionStore(newCookieStore(w, r), h.completionMaxAge).Load(); ok {
		prior = &record
	}

	view, err := h.service.Start(r.Context(), identity, scope, prior)
	if err != nil {
		h.logFailure(err, identity, "start session")
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

// GetSession returns the current view. A finished daily session also (re)writes the
// completion cookie, which covers sessions completed over the play socket.
func (h *APIHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	view, err := h.service.Current(r.Context(), identity)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	h.saveCompletion(w, r, view)
	respondWithJSON(w, http.StatusOK, view)
}

// Answer submits one answer; a completed daily session also sets the completion cookie.
func (h *APIHandler) Answer(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.service.Answer(r.Context(), identity, req.Answer)
	if err != nil {
		h.logFailure(err, identity, "answer")
		respondWithDomainError(w, err)
		return
	}
	if result.Completed {
		h.saveCompletion(w, r, result.State)
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *APIHandler) Restart(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	view, err := h.service.Restart(r.Context(), identity)
	if err != nil {
		h.logFailure(err, identity, "restart")
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *APIHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	scope, err := h.service.ResolveScope(r.URL.Query().Get("day"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	ranked, err := h.service.Leaderboard(r.Context(), scope)
	if err != nil {
		h.log.WithError(err).Error("fetch leaderboard failed")
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ranked)
}

func (h *APIHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	entry, err := h.service.SubmitScore(r.Context(), identity, req.Name)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, entry)
}

func (h *APIHandler) saveCompletion(w http.ResponseWriter, r *http.Request, view domain.SessionView) {
	if !view.Complete || !view.Scope.IsDaily() {
		return
	}
	app.NewCompletionStore(newCookieStore(w, r), h.completionMaxAge).Save(domain.CompletionRecord{
		Day:            view.Scope.Day,
		ElapsedSeconds: view.ElapsedSeconds,
	})
}

func (h *APIHandler) logFailure(err error, identity, op string) {
	entry := h.log.WithError(err).WithFields(logrus.Fields{"identity": identity, "op": op})
	if statusFor(err) >= http.StatusInternalServerError {
		entry.Error("request failed")
		return
	}
	entry.Debug("request rejected")
}

// decodeOptional accepts an empty body.
func decodeOptional(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
