package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config controls bus delivery behavior.
type Config struct {
	// PerSubscriberBuffer is the max number of undelivered events a
	// subscriber may accumulate before it is dropped.
	PerSubscriberBuffer int
	// SessionReapGrace is how long a terminal session stays in the
	// registry so late subscribers still resolve it.
	SessionReapGrace time.Duration
}

// Bus is the process-wide session registry. Open/Publish/Subscribe/Close
// are safe from any goroutine: registry reads scale under the RWMutex,
// registry writes (open, reap) serialize.
type Bus struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      Config
}

// NewBus creates an empty bus with the given delivery configuration.
func NewBus(cfg Config) *Bus {
	return &Bus{
		sessions: make(map[string]*Session),
		cfg:      cfg,
	}
}

// Open returns the live session for id, creating it if absent. Reopening
// an existing live session returns the existing one; a fresh session is
// only created after the prior one has been reaped.
func (b *Bus) Open(sessionID string) *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[sessionID]; ok {
		return s
	}
	s := newSession(sessionID, b.cfg.PerSubscriberBuffer)
	b.sessions[sessionID] = s
	return s
}

// Publish fans env out to all subscribers of sessionID. It is a silent
// no-op if the session does not exist or has already emitted its terminal
// event; producers never block on absent or slow subscribers.
func (b *Bus) Publish(sessionID string, env Envelope) {
	b.mu.RLock()
	s, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return
	}
	if becameTerminal := s.publish(env); becameTerminal {
		b.scheduleReap(sessionID)
	}
}

// Subscribe attaches a new subscriber to sessionID, creating the session
// if it does not exist (clients may connect before the orchestrator
// publishes). The subscriber's first event is always a synthetic
// connection_established.
func (b *Bus) Subscribe(sessionID string) *Subscriber {
	s := b.Open(sessionID)
	return s.subscribe()
}

// Close marks the session terminal, disconnects its subscribers, and
// removes it from the registry immediately. Publish-after-close is a
// no-op. Used at transport shutdown; normal runs terminate via the
// terminal event plus the reap grace.
func (b *Bus) Close(sessionID string) {
	b.mu.Lock()
	s, ok := b.sessions[sessionID]
	if ok {
		delete(b.sessions, sessionID)
	}
	b.mu.Unlock()
	if ok {
		s.close()
	}
}

// Shutdown closes every live session. Called once at process teardown.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	sessions := make([]*Session, 0, len(b.sessions))
	for id, s := range b.sessions {
		sessions = append(sessions, s)
		delete(b.sessions, id)
	}
	b.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}

// Len returns the number of live sessions. Used by health reporting.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// scheduleReap removes the session from the registry after the grace
// period. Subscribers were already disconnected when the terminal event
// was fanned out; the grace only keeps the id resolvable so a reopened
// session is not silently recreated mid-teardown.
func (b *Bus) scheduleReap(sessionID string) {
	time.AfterFunc(b.cfg.SessionReapGrace, func() {
		b.mu.Lock()
		delete(b.sessions, sessionID)
		b.mu.Unlock()
		slog.Debug("Session reaped", "session_id", sessionID)
	})
}

// Session binds one orchestration run to its stream of events. The
// session monitor (mu) is the single serializing point: concurrent
// producers race to acquire it, and the acquisition order becomes the
// global enqueue order every subscriber observes.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	subs     []*Subscriber
	terminal bool
	buffer   int
}

func newSession(id string, buffer int) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		buffer:    buffer,
	}
}

// Terminal reports whether the session has emitted its terminal event.
func (s *Session) Terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}

// publish enqueues env to every subscriber. Sends are non-blocking: a
// full buffer drops that subscriber with an overflow marker and leaves
// producers and the remaining subscribers unaffected. Returns true when
// env was the session's terminal event.
func (s *Session) publish(env Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal {
		return false
	}

	kept := s.subs[:0]
	for _, sub := range s.subs {
		select {
		case sub.ch <- env:
			kept = append(kept, sub)
		default:
			sub.reason = ReasonOverflow
			close(sub.ch)
			slog.Warn("Dropping slow subscriber",
				"session_id", s.ID, "subscriber_id", sub.ID)
		}
	}
	s.subs = kept

	if !IsTerminal(env.Type) {
		return false
	}
	s.terminal = true
	for _, sub := range s.subs {
		sub.reason = ReasonTerminal
		close(sub.ch)
	}
	s.subs = nil
	return true
}

// subscribe registers a new subscriber and seeds its queue with the
// synthetic connection_established event. Subscribing to a terminal
// session yields that event followed by an immediate terminal close.
func (s *Session) subscribe() *Subscriber {
	sub := &Subscriber{
		ID:      uuid.New().String(),
		session: s,
		ch:      make(chan Envelope, s.buffer+1), // +1 reserves room for connection_established
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ch <- connectionEstablishedEnvelope(s.ID, sub.ID)
	if s.terminal {
		sub.reason = ReasonTerminal
		close(sub.ch)
		return sub
	}
	s.subs = append(s.subs, sub)
	return sub
}

// close disconnects all subscribers and refuses further publishes.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.terminal {
		s.terminal = true
	}
	for _, sub := range s.subs {
		if sub.reason == "" {
			sub.reason = ReasonTerminal
		}
		close(sub.ch)
	}
	s.subs = nil
}

// remove detaches sub without closing the session.
func (s *Session) remove(sub *Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, candidate := range s.subs {
		if candidate == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			sub.reason = ReasonDetached
			close(sub.ch)
			return
		}
	}
}

// Subscriber is a read-only view of one session queue. Events() yields
// envelopes in enqueue order until the channel closes; Reason() explains
// the close afterwards.
type Subscriber struct {
	ID      string
	session *Session
	ch      chan Envelope
	reason  CloseReason
}

// Events returns the subscriber's delivery channel.
func (s *Subscriber) Events() <-chan Envelope { return s.ch }

// Reason reports why the channel was closed. Only meaningful after
// Events() has been drained to closure.
func (s *Subscriber) Reason() CloseReason {
	s.session.mu.Lock()
	defer s.session.mu.Unlock()
	return s.reason
}

// Close detaches the subscriber from its session. Safe to call after the
// session already dropped or closed it.
func (s *Subscriber) Close() {
	s.session.remove(s)
}
