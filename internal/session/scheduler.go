package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"elevator-game/internal/models"
)

// Scheduler delay defaults. The delay grows with the conversation so
// the autonomous dialogue slows down as it rambles on.
const (
	DefaultBaseDelay = 2500 * time.Millisecond
	DefaultStepDelay = 500 * time.Millisecond
)

type schedState int

const (
	schedIdle schedState = iota
	schedArmed
	schedFetching
)

// Scheduler drives the autonomous conversation. It is a three-state
// machine: Idle until the mode turns autonomous, Armed while a delayed
// timer is pending, Fetching while a responder call is in flight. Any
// input change cancels an armed timer before re-evaluating; an
// in-flight fetch is never aborted, its result re-enters through the
// ordinary append path and the log's dedup discards it if stale. At
// most one fetch is in flight per session.
type Scheduler struct {
	responder Responder
	sink      func(models.Turn)
	logger    *zap.Logger
	base      time.Duration
	step      time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    schedState
	timer    *time.Timer
	gen      uint64 // bumped on every re-evaluation; stale timer fires check it
	lastSnap Snapshot
	inFlight sync.WaitGroup
}

// NewScheduler wires a scheduler to a responder and an append sink.
func NewScheduler(responder Responder, sink func(models.Turn), logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		responder: responder,
		sink:      sink,
		logger:    logger,
		base:      DefaultBaseDelay,
		step:      DefaultStepDelay,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Reevaluate reacts to a log/state change. It cancels any pending
// timer, then arms a new one when the conversation is autonomous and
// non-empty. A change during Fetching leaves the in-flight call alone.
func (s *Scheduler) Reevaluate(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.lastSnap = snap
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.state == schedArmed {
		s.state = schedIdle
	}
	if s.state == schedFetching {
		return
	}
	if s.ctx.Err() != nil {
		return
	}

	if snap.State.Mode != models.ModeAutonomous || len(snap.Turns) == 0 {
		return
	}

	next := nextSpeaker(snap.Turns)

	delay := s.base + time.Duration(len(snap.Turns))*s.step
	gen := s.gen
	floor := snap.State.CurrentFloor
	turns := snap.Turns

	s.state = schedArmed
	s.timer = time.AfterFunc(delay, func() { s.fire(gen, next, floor, turns) })
	s.logger.Debug("scheduler armed",
		zap.String("next", string(next)),
		zap.Duration("delay", delay),
		zap.Int("log_len", len(turns)))
}

// nextSpeaker alternates between the two autonomous personas: whoever
// of the pair spoke last yields to the other. Guide announcements and
// user turns in between do not disturb the alternation.
func nextSpeaker(turns []models.Turn) models.Persona {
	for i := len(turns) - 1; i >= 0; i-- {
		switch turns[i].Persona {
		case models.PersonaMarvin:
			return models.PersonaElevator
		case models.PersonaElevator:
			return models.PersonaMarvin
		}
	}
	return models.PersonaMarvin
}

// fire runs on the timer goroutine. It moves Armed -> Fetching, calls
// the responder, appends the result, and returns to Idle. A stale fire
// (the inputs changed after arming) is a no-op.
func (s *Scheduler) fire(gen uint64, next models.Persona, floor int, turns []models.Turn) {
	s.mu.Lock()
	if gen != s.gen || s.state != schedArmed {
		s.mu.Unlock()
		return
	}
	s.state = schedFetching
	s.timer = nil
	s.inFlight.Add(1)
	s.mu.Unlock()

	turn := s.responder.Respond(s.ctx, next, floor, turns)

	s.mu.Lock()
	stopped := s.ctx.Err() != nil
	s.mu.Unlock()

	// The append happens while still in Fetching, so the Reevaluate it
	// triggers only records the new snapshot; exclusivity holds until
	// the result has landed. The log dedups the result if an identical
	// turn arrived meanwhile.
	if !stopped {
		s.sink(turn)
	}

	s.mu.Lock()
	s.state = schedIdle
	snap := s.lastSnap
	s.mu.Unlock()
	s.inFlight.Done()

	if !stopped {
		s.Reevaluate(snap)
	}
}

// Stop cancels the scheduler and waits for any in-flight fetch. The
// scheduler cannot be rearmed afterwards.
func (s *Scheduler) Stop() {
	s.cancel()
	s.mu.Lock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.state == schedArmed {
		s.state = schedIdle
	}
	s.mu.Unlock()
	s.inFlight.Wait()
}
