package domain

import "errors"

var (
	// ErrEmptyPool is returned when a session is started without questions.
	ErrEmptyPool = errors.New("no questions available")
	// ErrNoActiveQuestion is returned when answering with no current question.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrInvalidAnswer is returned when the answer is not among the offered choices.
	ErrInvalidAnswer = errors.New("answer is not one of the offered choices")
	// ErrSessionNotComplete is returned when elapsed time is requested before completion.
	ErrSessionNotComplete = errors.New("session not complete")
	// ErrInvalidName is returned when a display name is empty or fails validation.
	ErrInvalidName = errors.New("invalid name")
	// ErrSubmissionRejected is returned for duplicate or non-qualifying leaderboard submissions.
	ErrSubmissionRejected = errors.New("submission rejected")
	// ErrSessionNotFound is returned when an identity has no session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSubmissionInProgress is returned when a second answer arrives before the first is applied.
	ErrSubmissionInProgress = errors.New("answer already being processed")
	// ErrMalformedQuestion indicates a question record that violates its invariants.
	ErrMalformedQuestion = errors.New("malformed question")
	// ErrFetch is matched by every FetchError.
	ErrFetch = errors.New("fetch failed")
)

// FetchError reports a failed remote read.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrFetch) match any FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }
