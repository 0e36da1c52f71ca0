package http

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"trivia-quiz-service/internal/app"
)

// RouterConfig carries what NewRouter needs to wire handlers.
type RouterConfig struct {
	Service          *app.QuizService
	Logger           logrus.FieldLogger
	Gatherer         prometheus.Gatherer
	IdentityMaxAge   time.Duration
	CompletionMaxAge time.Duration
}

// NewRouter builds the HTTP routes: health, metrics, REST API and the play socket.
func NewRouter(cfg RouterConfig) *mux.Router {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	r := mux.NewRouter()
	r.Use(requestLogger(cfg.Logger))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := NewAPIHandler(cfg.Service, cfg.Logger, cfg.CompletionMaxAge)
	ws := NewWSHandler(cfg.Service, cfg.Logger, cfg.CompletionMaxAge)

	s := r.PathPrefix("/").Subrouter()
	s.Use(IdentityMiddleware(cfg.IdentityMaxAge))
	s.HandleFunc("/api/session", api.StartSession).Methods(http.MethodPost)
	s.HandleFunc("/api/session", api.GetSession).Methods(http.MethodGet)
	s.HandleFunc("/api/session/answer", api.Answer).Methods(http.MethodPost)
	s.HandleFunc("/api/session/restart", api.Restart).Methods(http.MethodPost)
	s.HandleFunc("/api/leaderboard", api.GetLeaderboard).Methods(http.MethodGet)
	s.HandleFunc("/api/leaderboard", api.SubmitScore).Methods(http.MethodPost)
	s.HandleFunc("/ws", ws.ServeWS).Methods(http.MethodGet)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func requestLogger(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Debug("http request")
		})
	}
}
