package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"elevator-game/internal/models"
)

func autonomousSnapshot(turns ...models.Turn) Snapshot {
	state := models.Derive(turns)
	return Snapshot{State: state, Turns: turns}
}

func waitFor(t *testing.T, ch <-chan models.Persona) models.Persona {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a responder call")
		return ""
	}
}

func TestSchedulerStaysIdleWhileInteractive(t *testing.T) {
	responder := &recordingResponder{}
	sched := NewScheduler(responder, func(models.Turn) {}, zaptest.NewLogger(t))
	sched.base, sched.step = time.Millisecond, 0
	defer sched.Stop()

	snap := Snapshot{
		State: models.InitialState(),
		Turns: []models.Turn{{Persona: models.PersonaUser, Text: "hi", Action: models.ActionNone}},
	}
	sched.Reevaluate(snap)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, responder.callCount())
}

func TestSchedulerStaysIdleOnEmptyLog(t *testing.T) {
	responder := &recordingResponder{}
	sched := NewScheduler(responder, func(models.Turn) {}, zaptest.NewLogger(t))
	sched.base, sched.step = time.Millisecond, 0
	defer sched.Stop()

	state := models.InitialState()
	state.Mode = models.ModeAutonomous
	sched.Reevaluate(Snapshot{State: state})

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, responder.callCount())
}

func TestSchedulerAlternatesSpeakers(t *testing.T) {
	notify := make(chan models.Persona, 64)
	responder := &recordingResponder{
		line: func(persona models.Persona, _ int, prior []models.Turn) models.Turn {
			select {
			case notify <- persona:
			default:
			}
			return models.Turn{Persona: persona, Text: fmt.Sprintf("line %d", len(prior)), Action: models.ActionNone}
		},
	}
	s := New(responder, zaptest.NewLogger(t), WithDelays(time.Millisecond, 0))
	defer s.Close()

	s.JoinMarvin()

	// Marvin spoke last (his join turn), so the elevator answers
	// first, then strict alternation.
	first := waitFor(t, notify)
	second := waitFor(t, notify)
	third := waitFor(t, notify)

	assert.Equal(t, models.PersonaElevator, first)
	assert.Equal(t, models.PersonaMarvin, second)
	assert.Equal(t, models.PersonaElevator, third)
}

func TestNextSpeaker(t *testing.T) {
	marvin := models.Turn{Persona: models.PersonaMarvin, Text: "sigh", Action: models.ActionNone}
	elev := models.Turn{Persona: models.PersonaElevator, Text: "whee", Action: models.ActionNone}
	guide := models.Turn{Persona: models.PersonaGuide, Text: "narration", Action: models.ActionNone}
	player := models.Turn{Persona: models.PersonaUser, Text: "hello", Action: models.ActionNone}

	assert.Equal(t, models.PersonaElevator, nextSpeaker([]models.Turn{marvin}))
	assert.Equal(t, models.PersonaMarvin, nextSpeaker([]models.Turn{elev}))
	assert.Equal(t, models.PersonaElevator, nextSpeaker([]models.Turn{marvin, guide}),
		"a guide interjection must not break the alternation")
	assert.Equal(t, models.PersonaMarvin, nextSpeaker([]models.Turn{elev, player, guide}))
	assert.Equal(t, models.PersonaMarvin, nextSpeaker(nil))
}

func TestSchedulerAtMostOneFetchInFlight(t *testing.T) {
	var inFlight, maxSeen atomic.Int64
	responder := &recordingResponder{
		line: func(persona models.Persona, _ int, prior []models.Turn) models.Turn {
			n := inFlight.Add(1)
			for {
				seen := maxSeen.Load()
				if n <= seen || maxSeen.CompareAndSwap(seen, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return models.Turn{Persona: persona, Text: fmt.Sprintf("busy %d", len(prior)), Action: models.ActionNone}
		},
	}
	s := New(responder, zaptest.NewLogger(t), WithDelays(time.Millisecond, 0))
	defer s.Close()

	s.JoinMarvin()

	// Hammer the session with input changes while the loop runs; each
	// one cancels and re-arms the timer but must never start a second
	// fetch alongside an in-flight one.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			s.SubmitUserTurn(fmt.Sprintf("poke %d", i))
			time.Sleep(2 * time.Millisecond)
		}
	}()
	wg.Wait()
	time.Sleep(20 * time.Millisecond)

	assert.LessOrEqual(t, maxSeen.Load(), int64(1))
	assert.Greater(t, responder.callCount(), 0, "the loop should have run")
}

func TestSchedulerCancelsStaleTimer(t *testing.T) {
	fetched := make(chan []models.Turn, 8)
	responder := &recordingResponder{
		line: func(persona models.Persona, _ int, prior []models.Turn) models.Turn {
			select {
			case fetched <- prior:
			default:
			}
			return models.Turn{Persona: persona, Text: "reply", Action: models.ActionNone}
		},
	}
	sched := NewScheduler(responder, func(models.Turn) {}, zaptest.NewLogger(t))
	sched.base, sched.step = 20*time.Millisecond, 0
	defer sched.Stop()

	join := models.Turn{Persona: models.PersonaMarvin, Text: "here", Action: models.ActionJoin}
	poke := models.Turn{Persona: models.PersonaUser, Text: "hello?", Action: models.ActionNone}

	sched.Reevaluate(autonomousSnapshot(join))
	// Before the first timer fires, the log changes. The armed timer
	// must be replaced, and the eventual fetch must see the new log.
	sched.Reevaluate(autonomousSnapshot(join, poke))

	select {
	case prior := <-fetched:
		require.Len(t, prior, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the rescheduled fetch")
	}
}

func TestSchedulerStopReleasesPendingTimer(t *testing.T) {
	responder := &recordingResponder{}
	sched := NewScheduler(responder, func(models.Turn) {}, zaptest.NewLogger(t))
	sched.base, sched.step = 10*time.Millisecond, 0

	join := models.Turn{Persona: models.PersonaMarvin, Text: "here", Action: models.ActionJoin}
	sched.Reevaluate(autonomousSnapshot(join))
	sched.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, responder.callCount())
}

func TestSchedulerInFlightResultStillAppends(t *testing.T) {
	release := make(chan struct{})
	responder := &recordingResponder{
		line: func(persona models.Persona, _ int, _ []models.Turn) models.Turn {
			<-release
			return models.Turn{Persona: persona, Text: "late but here", Action: models.ActionNone}
		},
	}

	appended := make(chan models.Turn, 8)
	sink := func(turn models.Turn) {
		select {
		case appended <- turn:
		default:
		}
	}
	sched := NewScheduler(responder, sink, zaptest.NewLogger(t))
	sched.base, sched.step = time.Millisecond, 0

	join := models.Turn{Persona: models.PersonaMarvin, Text: "here", Action: models.ActionJoin}
	sched.Reevaluate(autonomousSnapshot(join))

	// Wait until the fetch is in flight, then change the inputs. The
	// fetch is not aborted; its result still lands.
	require.Eventually(t, func() bool {
		return responder.callCount() == 1
	}, 2*time.Second, time.Millisecond)
	poke := models.Turn{Persona: models.PersonaUser, Text: "anyone?", Action: models.ActionNone}
	sched.Reevaluate(autonomousSnapshot(join, poke))

	close(release)
	select {
	case turn := <-appended:
		assert.Equal(t, "late but here", turn.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight result was dropped")
	}
	sched.Stop()
}

var _ Responder = (*recordingResponder)(nil)
