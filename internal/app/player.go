package app

import (
	"sync"
	"time"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/session"
)

// Player holds one identity's session state and its subscribers.
type Player struct {
	identity string
	now      func() time.Time

	// inflight serializes transitions; a second caller is turned away instead of queued.
	inflight sync.Mutex

	mu          sync.RWMutex
	state       session.State
	scope       domain.Scope
	lastSeen    time.Time
	closed      bool
	subscribers map[chan domain.SessionView]struct{}
}

// NewPlayerWithClock stamps LastSeen with now. Session stores pass their own clock.
func NewPlayerWithClock(identity string, now func() time.Time) *Player {
	return &Player{
		identity:    identity,
		now:         now,
		lastSeen:    now(),
		subscribers: make(map[chan domain.SessionView]struct{}),
	}
}

func (p *Player) Identity() string { return p.identity }

// LastSeen is the time of creation or of the last applied transition. Idle sweeps read it.
func (p *Player) LastSeen() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSeen
}

func (p *Player) begin() bool { return p.inflight.TryLock() }
func (p *Player) end()        { p.inflight.Unlock() }

func (p *Player) snapshot() (session.State, domain.Scope) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state, p.scope
}

// replace installs the successor state and notifies subscribers.
func (p *Player) replace(state session.State, scope domain.Scope) domain.SessionView {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	p.scope = scope
	p.lastSeen = p.now()
	return p.broadcastLocked()
}

func (p *Player) subscribe() (<-chan domain.SessionView, func()) {
	ch := make(chan domain.SessionView, 8)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	p.subscribers[ch] = struct{}{}
	// Enqueued under the lock so a concurrent Close cannot close ch first.
	ch <- p.state.View(p.scope)
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if _, ok := p.subscribers[ch]; ok {
			delete(p.subscribers, ch)
			close(ch)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

// Close ends every subscription; later subscribers get a closed channel.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for ch := range p.subscribers {
		delete(p.subscribers, ch)
		close(ch)
	}
}

func (p *Player) broadcastLocked() domain.SessionView {
	view := p.state.View(p.scope)
	for ch := range p.subscribers {
		select {
		case ch <- view:
		default:
			// Slow reader: drop the stale view and keep the newest.
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
	return view
}
