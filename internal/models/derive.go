package models

// Derive folds the turn log into a GameState. It is a pure left fold
// from InitialState: no clock, no randomness, no external reads, so the
// same log always derives the same state.
func Derive(turns []Turn) GameState {
	s := InitialState()

	userTurns := 0
	for _, t := range turns {
		if t.Persona == PersonaUser {
			userTurns++
		}

		// The hand-off is content-based, not an action token: the
		// guide speaking the sentinel switches the elevator's voice
		// to Marvin for the rest of the fold.
		if t.Persona == PersonaGuide && t.Text == HandoffText {
			s.CurrentPersona = PersonaMarvin
		}

		switch t.Action {
		case ActionJoin:
			s.Mode = ModeAutonomous
			s.MarvinJoined = true
			s.LastSpeaker = PersonaMarvin
			continue
		case ActionUp:
			next := s.CurrentFloor + 1
			if next > TopFloor {
				next = TopFloor
			}
			// Reaching the top only wins if Marvin was already
			// aboard before this turn. Not sticky: each up
			// recomputes it, so replays reproduce it from the log.
			s.HasWon = s.MarvinJoined && next == TopFloor
			s.CurrentFloor = next
		case ActionDown:
			next := s.CurrentFloor - 1
			if next < 1 {
				next = 1
			}
			s.CurrentFloor = next
			if next == 1 {
				s.FirstStageComplete = true
			}
		}

		s.LastSpeaker = t.Persona
	}

	// Moves are an aggregate over the whole log, not tracked per turn.
	s.MovesLeft = TotalMoves - userTurns
	return s
}
