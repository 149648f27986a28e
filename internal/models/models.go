package models

// Persona identifies one of the fixed dialogue agents.
type Persona string

const (
	PersonaUser     Persona = "user"
	PersonaElevator Persona = "elevator"
	PersonaGuide    Persona = "guide"
	PersonaMarvin   Persona = "marvin"
)

// Action is a structured side effect attached to a turn, distinct from
// its free text. It is produced by the player or parsed out of
// generated text.
type Action string

const (
	ActionNone Action = "none"
	ActionUp   Action = "up"
	ActionDown Action = "down"
	ActionJoin Action = "join"
)

// ValidAction reports whether a is one of the known action tokens.
func ValidAction(a Action) bool {
	switch a {
	case ActionNone, ActionUp, ActionDown, ActionJoin:
		return true
	}
	return false
}

// Turn is one entry in the conversation log.
type Turn struct {
	Persona Persona `yaml:"persona" json:"persona"`
	Text    string  `yaml:"text" json:"text"`
	Action  Action  `yaml:"action" json:"action"`
}

// Mode says who drives the next turn: the player, or the scheduler.
type Mode string

const (
	ModeInteractive Mode = "user-interactive"
	ModeAutonomous  Mode = "autonomous"
)

const (
	// TopFloor is the highest floor the elevator reaches.
	TopFloor = 5
	// InitialFloor is where a fresh session starts.
	InitialFloor = 3
	// TotalMoves is the player's turn budget for the whole game.
	TotalMoves = 42
)

// HandoffText is the exact guide line that hands the elevator's voice
// over to Marvin. The reducer recognizes it by string equality, so the
// trigger and the recognizer must share this constant.
const HandoffText = "The elevator has nothing more to say to you. Marvin, the Paranoid Android, will speak with it now."

// GameState is a snapshot derived from the conversation log. It is
// never stored: two logs with equal content derive equal states.
type GameState struct {
	CurrentFloor       int
	MovesLeft          int
	CurrentPersona     Persona
	FirstStageComplete bool
	HasWon             bool
	Mode               Mode
	LastSpeaker        Persona // empty until someone has spoken
	MarvinJoined       bool
}

// InitialState is the fold seed for an empty log.
func InitialState() GameState {
	return GameState{
		CurrentFloor:   InitialFloor,
		MovesLeft:      TotalMoves,
		CurrentPersona: PersonaElevator,
		Mode:           ModeInteractive,
	}
}
