package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"trivia-quiz-service/internal/domain"
)

const (
	// IdentityKey is the client-side key holding the player's pseudonymous id.
	IdentityKey = "user_id"
	// CompletionKey is the client-side key marking a finished daily session.
	CompletionKey = "completed"

	DefaultIdentityMaxAge   = 365 * 24 * time.Hour
	DefaultCompletionMaxAge = 24 * time.Hour
)

// KeyValueStore is client-side persistence (cookies in the HTTP transport).
type KeyValueStore interface {
	Get(key string) (string, bool)
	Set(key, value string, maxAge time.Duration)
}

// IdentityProvider hands out a durable pseudonymous identifier. It is never rotated.
type IdentityProvider struct {
	kv     KeyValueStore
	maxAge time.Duration
}

func NewIdentityProvider(kv KeyValueStore, maxAge time.Duration) *IdentityProvider {
	if maxAge <= 0 {
		maxAge = DefaultIdentityMaxAge
	}
	return &IdentityProvider{kv: kv, maxAge: maxAge}
}

// GetOrCreateIdentity returns the stored identity, minting and persisting a UUID on first visit.
func (p *IdentityProvider) GetOrCreateIdentity() string {
	if id, ok := p.kv.Get(IdentityKey); ok {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	id := uuid.NewString()
	p.kv.Set(IdentityKey, id, p.maxAge)
	return id
}

// CompletionStore reads and writes the completion-day marker, encoded as "day|elapsedSeconds".
type CompletionStore struct {
	kv     KeyValueStore
	maxAge time.Duration
}

func NewCompletionStore(kv KeyValueStore, maxAge time.Duration) *CompletionStore {
	if maxAge <= 0 {
		maxAge = DefaultCompletionMaxAge
	}
	return &CompletionStore{kv: kv, maxAge: maxAge}
}

func (c *CompletionStore) Save(record domain.CompletionRecord) {
	c.kv.Set(CompletionKey, EncodeCompletion(record), c.maxAge)
}

// Load returns the stored record; malformed values are ignored.
func (c *CompletionStore) Load() (domain.CompletionRecord, bool) {
	raw, ok := c.kv.Get(CompletionKey)
	if !ok {
		return domain.CompletionRecord{}, false
	}
	record, err := DecodeCompletion(raw)
	if err != nil {
		return domain.CompletionRecord{}, false
	}
	return record, true
}

func EncodeCompletion(r domain.CompletionRecord) string {
	return r.Day + "|" + strconv.FormatFloat(r.ElapsedSeconds, 'f', -1, 64)
}

func DecodeCompletion(raw string) (domain.CompletionRecord, error) {
	day, secs, ok := strings.Cut(raw, "|")
	if !ok {
		return domain.CompletionRecord{}, fmt.Errorf("completion record %q: missing separator", raw)
	}
	elapsed, err := strconv.ParseFloat(secs, 64)
	if err != nil {
		return domain.CompletionRecord{}, fmt.Errorf("completion record elapsed %q", secs)
	}
	record := domain.CompletionRecord{Day: day, ElapsedSeconds: elapsed}
	if err := record.Validate(); err != nil {
		return domain.CompletionRecord{}, err
	}
	return record, nil
}
