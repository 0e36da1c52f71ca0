package domain

import (
	"errors"
	"testing"
	"time"
)

func TestQuestionValidate(t *testing.T) {
	ok := Question{ID: "q1", Prompt: "2+2?", Answers: []string{"3", "4"}, CorrectAnswer: "4"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid question, got %v", err)
	}

	cases := map[string]Question{
		"missing id":      {Answers: []string{"a"}, CorrectAnswer: "a"},
		"no answers":      {ID: "q"},
		"duplicate":       {ID: "q", Answers: []string{"a", "a"}, CorrectAnswer: "a"},
		"correct missing": {ID: "q", Answers: []string{"a", "b"}, CorrectAnswer: "c"},
	}
	for name, q := range cases {
		if err := q.Validate(); !errors.Is(err, ErrMalformedQuestion) {
			t.Fatalf("%s: expected ErrMalformedQuestion, got %v", name, err)
		}
	}
}

func TestScopes(t *testing.T) {
	day := DayScope(time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC))
	if day.Day != "2024-03-09" || day.Key() != "2024-03-09" || !day.IsDaily() {
		t.Fatalf("unexpected day scope %+v", day)
	}
	if GlobalScope.Key() != "all" || GlobalScope.IsDaily() {
		t.Fatalf("unexpected global scope key %q", GlobalScope.Key())
	}
	if _, err := ParseScope("09/03/2024"); err == nil {
		t.Fatalf("expected parse error")
	}
	s, err := ParseScope("")
	if err != nil || s != GlobalScope {
		t.Fatalf("expected global scope, got %+v %v", s, err)
	}
}

func TestFetchErrorMatches(t *testing.T) {
	cause := errors.New("connection refused")
	var err error = &FetchError{Op: "load questions", Err: cause}
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch match")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap")
	}
	if err.Error() != "load questions: connection refused" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
