package models

// MessageLog is the append-only sequence of turns for one session.
// Appending a turn that is structurally equal to the current last entry
// is a no-op, which breaks feedback loops where a reaction re-adds the
// turn that triggered it. Entries are never mutated or removed.
//
// MessageLog is not safe for concurrent use; the owning session
// serializes access.
type MessageLog struct {
	turns []Turn
}

// NewMessageLog returns an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

// Append adds turn to the log and reports whether it was actually
// added. It returns false when turn equals the current last entry.
func (l *MessageLog) Append(turn Turn) bool {
	if n := len(l.turns); n > 0 && l.turns[n-1] == turn {
		return false
	}
	l.turns = append(l.turns, turn)
	return true
}

// Len returns the number of turns in the log.
func (l *MessageLog) Len() int {
	return len(l.turns)
}

// Last returns the most recent turn. ok is false for an empty log.
func (l *MessageLog) Last() (turn Turn, ok bool) {
	if len(l.turns) == 0 {
		return Turn{}, false
	}
	return l.turns[len(l.turns)-1], true
}

// Turns returns a copy of the log contents in order.
func (l *MessageLog) Turns() []Turn {
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}
