package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"elevator-game/internal/config"
	"elevator-game/internal/engine"
	"elevator-game/internal/models"
	"elevator-game/internal/session"
	"elevator-game/internal/tui"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "elevator",
		Short: "Talk an anxious elevator down, then watch Marvin talk it back up",
		RunE: func(cmd *cobra.Command, args []string) error {
			return play(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted playthrough offline (no API key needed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return simulate()
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func play(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}
	cfg.Verbose = verbose

	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	models.TranscriptDir = cfg.TranscriptDir

	eng, err := engine.NewEngine(ctx, cfg.GeminiAPIKey, cfg.Model, logger)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer eng.Close()

	sess := session.New(eng, logger, session.WithDelays(cfg.BaseDelay, cfg.StepDelay))
	defer sess.Close()

	return tui.Run(sess, eng)
}

// simulate drives a full game against a scripted generator: the player
// talks the elevator down to the ground floor, the guide hands off to
// Marvin, and the autonomous loop climbs back to the top.
func simulate() error {
	logger := zap.NewNop()
	if verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
	}

	// Replies pop in call order: two elevator descents in the
	// interactive phase, then the autonomous alternation (the elevator
	// answers Marvin's join first) with Marvin doing the climbing.
	gen := engine.NewScriptedGenerator(
		`{"message": "Down? Oh. Well. If you absolutely insist.", "action": "down"}`,
		`{"message": "Ground floor. I hope you're happy.", "action": "down"}`,
		`{"message": "A new passenger! Welcome aboard! Where to?", "action": "none"}`,
		`{"message": "Up, I suppose. Not that arriving will help.", "action": "up"}`,
		`{"message": "That's the spirit, Marvin! Going up is what I'm FOR!", "action": "none"}`,
		`{"message": "Spare me the enthusiasm. Up.", "action": "up"}`,
		`{"message": "Whee! I feel fulfilled!", "action": "none"}`,
		`{"message": "Fulfilled. A transporter of vertical people. Up.", "action": "up"}`,
		`{"message": "Nearly there, everyone!", "action": "none"}`,
		`{"message": "One last floor of pointless ascent. Up.", "action": "up"}`,
	)

	eng, err := engine.NewEngineWithGenerator(gen, logger)
	if err != nil {
		return err
	}

	sess := session.New(eng, logger, session.WithDelays(50*time.Millisecond, 10*time.Millisecond))
	defer sess.Close()

	printed := 0
	won := make(chan struct{})
	sess.SetOnChange(func(snap session.Snapshot) {
		for ; printed < len(snap.Turns); printed++ {
			turn := snap.Turns[printed]
			fmt.Printf("[%s] %s", turn.Persona, turn.Text)
			if turn.Action != models.ActionNone {
				fmt.Printf("  <%s>", turn.Action)
			}
			fmt.Println()
		}
		if snap.State.HasWon {
			select {
			case <-won:
			default:
				close(won)
			}
		}
	})

	ctx := context.Background()

	// Interactive phase: the player asks, the current persona answers.
	for _, line := range []string{
		"Hello? Could we go down, please?",
		"All the way to the ground floor. I believe in you.",
	} {
		if !sess.SubmitUserTurn(line) {
			return fmt.Errorf("user turn rejected: %q", line)
		}
		snap := sess.Snapshot()
		sess.Append(eng.Respond(ctx, snap.State.CurrentPersona, snap.State.CurrentFloor, snap.Turns))
	}

	snap := sess.Snapshot()
	if !snap.State.FirstStageComplete {
		return fmt.Errorf("expected the elevator on the ground floor, got floor %d", snap.State.CurrentFloor)
	}

	// Story beat: hand the elevator's voice to Marvin and let the
	// scheduler take over.
	sess.TriggerHandoff()
	sess.JoinMarvin()

	select {
	case <-won:
	case <-time.After(30 * time.Second):
		return fmt.Errorf("simulation timed out before the elevator reached the top")
	}

	final := sess.Snapshot()
	fmt.Printf("\nFinal: floor=%d movesLeft=%d won=%v turns=%d\n",
		final.State.CurrentFloor, final.State.MovesLeft, final.State.HasWon, len(final.Turns))
	return nil
}
