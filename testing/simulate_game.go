package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"elevator-game/internal/config"
	"elevator-game/internal/engine"
	"elevator-game/internal/models"
	"elevator-game/internal/session"
)

const maxAutonomousTurns = 40

// Plays a whole game against the real generator: a scripted "player"
// talks the elevator down, then the autonomous loop runs until the
// top floor or the turn cap. Useful for eyeballing persona quality.
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		log.Fatalf("%v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	eng, err := engine.NewEngine(ctx, cfg.GeminiAPIKey, cfg.Model, logger)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	defer eng.Close()

	sess := session.New(eng, logger, session.WithDelays(time.Second, 200*time.Millisecond))
	defer sess.Close()

	printed := 0
	done := make(chan struct{})
	sess.SetOnChange(func(snap session.Snapshot) {
		for ; printed < len(snap.Turns); printed++ {
			turn := snap.Turns[printed]
			fmt.Printf("[%s] %s", turn.Persona, turn.Text)
			if turn.Action != models.ActionNone {
				fmt.Printf("  <%s>", turn.Action)
			}
			fmt.Println()
		}
		if snap.State.HasWon || len(snap.Turns) >= maxAutonomousTurns {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	})

	// Phase 1: talk the elevator down to the ground floor. The real
	// model may dawdle, so keep asking until it descends or we give up.
	playerLines := []string{
		"Hello, elevator. Lovely shaft you have here. Could we go down?",
		"Down, please. The ground floor. It will be an adventure.",
		"I promise the basement is full of happy vertical people.",
		"Think of it as reverse ascending. Very fashionable.",
		"Just one floor down. You can do it.",
		"Please? The ground floor misses you.",
		"Down. Truly. I am asking nicely.",
		"One more floor down and I'll say such nice things about you.",
	}
	for _, line := range playerLines {
		fmt.Printf("--- Player: %s\n", line)
		if !sess.SubmitUserTurn(line) {
			log.Fatalf("User turn rejected: %q", line)
		}
		snap := sess.Snapshot()
		sess.Append(eng.Respond(ctx, snap.State.CurrentPersona, snap.State.CurrentFloor, snap.Turns))

		if sess.Snapshot().State.FirstStageComplete {
			break
		}
	}

	snap := sess.Snapshot()
	if !snap.State.FirstStageComplete {
		fmt.Printf("\nThe elevator would not be talked down (floor %d). Ending run.\n", snap.State.CurrentFloor)
		return
	}

	// Phase 2: hand off to Marvin and let the scheduler drive.
	fmt.Println("--- Hand-off: Marvin joins ---")
	sess.TriggerHandoff()
	sess.JoinMarvin()

	select {
	case <-done:
	case <-time.After(5 * time.Minute):
		fmt.Println("Timed out waiting for the autonomous conversation.")
	}

	final := sess.Snapshot()
	fmt.Printf("\nFinal: floor=%d movesLeft=%d won=%v turns=%d\n",
		final.State.CurrentFloor, final.State.MovesLeft, final.State.HasWon, len(final.Turns))
}
