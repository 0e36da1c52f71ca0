package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the quiz service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	AnswersTotal          *prometheus.CounterVec
	SessionsStarted       *prometheus.CounterVec
	SessionsCompleted     *prometheus.CounterVec
	SessionDuration       prometheus.Histogram
	RetryEntered          prometheus.Counter
	LeaderboardSubmission *prometheus.CounterVec
}

// New registers the quiz metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AnswersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trivia",
				Name:      "answers_total",
				Help:      "Answers submitted, by mode and result",
			},
			[]string{"mode", "result"},
		),
		SessionsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trivia",
				Name:      "sessions_started_total",
				Help:      "Sessions started, by mode",
			},
			[]string{"mode"},
		),
		SessionsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trivia",
				Name:      "sessions_completed_total",
				Help:      "Sessions completed, by mode",
			},
			[]string{"mode"},
		),
		SessionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "trivia",
				Name:      "session_duration_seconds",
				Help:      "Time from start to completion of a session",
				Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
			},
		),
		RetryEntered: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "trivia",
				Name:      "retry_entered_total",
				Help:      "Times a session entered retry mode",
			},
		),
		LeaderboardSubmission: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trivia",
				Name:      "leaderboard_submissions_total",
				Help:      "Leaderboard submissions, by outcome",
			},
			[]string{"status"},
		),
	}
}

func (m *Metrics) ObserveAnswer(mode string, correct bool) {
	if m == nil {
		return
	}
	result := "wrong"
	if correct {
		result = "correct"
	}
	m.AnswersTotal.WithLabelValues(mode, result).Inc()
}

func (m *Metrics) ObserveStart(mode string) {
	if m == nil {
		return
	}
	m.SessionsStarted.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObserveCompletion(mode string, seconds float64) {
	if m == nil {
		return
	}
	m.SessionsCompleted.WithLabelValues(mode).Inc()
	m.SessionDuration.Observe(seconds)
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.RetryEntered.Inc()
}

func (m *Metrics) ObserveSubmission(status string) {
	if m == nil {
		return
	}
	m.LeaderboardSubmission.WithLabelValues(status).Inc()
}
