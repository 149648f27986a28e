// Package session owns one conversation: the append-only message log,
// the state derived from it, the guide's reactive announcements, and
// the scheduler that drives the dialogue once it turns autonomous.
// All writes to the log funnel through a single Session, one mutation
// at a time.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"elevator-game/internal/models"
)

// Responder produces the next turn for a persona. It must be total:
// the engine's responder converts every failure into a fallback turn.
type Responder interface {
	Respond(ctx context.Context, persona models.Persona, floor int, prior []models.Turn) models.Turn
}

// Snapshot is a consistent view of a session handed to observers: the
// derived state plus a copy of the log that produced it.
type Snapshot struct {
	State models.GameState
	Turns []models.Turn
}

// Session drives one conversation.
type Session struct {
	mu        sync.Mutex
	log       *models.MessageLog
	state     models.GameState
	announcer *Announcer
	scheduler *Scheduler
	logger    *zap.Logger
	onChange  func(Snapshot)
}

// Option configures a Session.
type Option func(*Session)

// WithDelays overrides the scheduler's base and per-turn delays.
// Mostly for tests and the offline simulator.
func WithDelays(base, step time.Duration) Option {
	return func(s *Session) {
		s.scheduler.base = base
		s.scheduler.step = step
	}
}

// New creates an empty session wired to the given responder.
func New(responder Responder, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		log:       models.NewMessageLog(),
		state:     models.InitialState(),
		announcer: NewAnnouncer(),
		logger:    logger,
	}
	s.scheduler = NewScheduler(responder, s.Append, logger)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetOnChange registers a callback invoked (outside the session lock)
// after every batch of appends. Used by the TUI to refresh.
func (s *Session) SetOnChange(fn func(Snapshot)) {
	s.onChange = fn
}

// Snapshot returns the current state and log contents.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, Turns: s.log.Turns()}
}

// SubmitUserTurn ingests a player turn. It is a no-op when the text is
// blank or the player is out of moves; it reports whether the turn was
// accepted.
func (s *Session) SubmitUserTurn(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	s.mu.Lock()
	if s.state.MovesLeft <= 0 {
		s.mu.Unlock()
		return false
	}
	appended := s.appendLocked(models.Turn{Persona: models.PersonaUser, Text: text, Action: models.ActionNone})
	snap := Snapshot{State: s.state, Turns: s.log.Turns()}
	s.mu.Unlock()

	if appended {
		s.changed(snap)
	}
	return appended
}

// TriggerHandoff appends the guide turn carrying the hand-off
// sentinel, switching the elevator's voice to Marvin in the reducer.
func (s *Session) TriggerHandoff() {
	s.Append(models.Turn{Persona: models.PersonaGuide, Text: models.HandoffText, Action: models.ActionNone})
}

// JoinMarvin appends Marvin's scripted join turn, flipping the
// conversation into autonomous mode.
func (s *Session) JoinMarvin() {
	s.Append(models.Turn{
		Persona: models.PersonaMarvin,
		Text:    "Oh. A passenger. And an elevator with delusions of cheerfulness. I suppose I'll talk to it, since nobody else will.",
		Action:  models.ActionJoin,
	})
}

// Append adds a turn to the log and runs the reactive pipeline:
// re-derive state, let the announcer react, then notify observers and
// the scheduler. Duplicate adjacent turns are dropped by the log.
func (s *Session) Append(turn models.Turn) {
	s.mu.Lock()
	appended := s.appendLocked(turn)
	snap := Snapshot{State: s.state, Turns: s.log.Turns()}
	s.mu.Unlock()

	if appended {
		s.changed(snap)
	}
}

// appendLocked appends turn and any announcer reactions it provokes.
// Reactions carry action none, so the recursion cannot move the floor
// again and terminates.
func (s *Session) appendLocked(turn models.Turn) bool {
	if !s.log.Append(turn) {
		s.logger.Debug("duplicate adjacent turn dropped",
			zap.String("persona", string(turn.Persona)))
		return false
	}

	prev := s.state
	s.state = models.Derive(s.log.Turns())

	for _, reaction := range s.announcer.React(prev, s.state, turn) {
		s.appendLocked(reaction)
	}
	return true
}

// changed fans a fresh snapshot out to the scheduler and the UI.
func (s *Session) changed(snap Snapshot) {
	s.scheduler.Reevaluate(snap)
	if s.onChange != nil {
		s.onChange(snap)
	}
}

// Close stops the scheduler and waits for any in-flight fetch.
func (s *Session) Close() {
	s.scheduler.Stop()
}
