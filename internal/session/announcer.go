package session

import (
	"fmt"

	"elevator-game/internal/models"
)

// Announcer synthesizes the guide's system-authored turns in reaction
// to state transitions. It fires only on change events, never on bare
// recomputation, so each logical transition announces exactly once;
// the log's adjacent dedup backstops any redundant re-fire.
type Announcer struct{}

// NewAnnouncer returns an Announcer.
func NewAnnouncer() *Announcer {
	return &Announcer{}
}

// React compares the previous and current derived states, plus the
// turn that caused the change, and returns the guide turns to append.
func (a *Announcer) React(prev, curr models.GameState, cause models.Turn) []models.Turn {
	var out []models.Turn

	if curr.CurrentFloor != prev.CurrentFloor {
		out = append(out, models.Turn{
			Persona: models.PersonaGuide,
			Text:    fmt.Sprintf("The elevator shudders to a halt at floor %d.", curr.CurrentFloor),
			Action:  models.ActionNone,
		})
	}

	if cause.Action == models.ActionJoin {
		out = append(out, models.Turn{
			Persona: models.PersonaGuide,
			Text:    "Marvin has joined the conversation.",
			Action:  models.ActionNone,
		})
	}

	return out
}
