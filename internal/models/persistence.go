package models

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// TranscriptDir is where exported transcripts land. Overridable from
// config before the first export.
var TranscriptDir = ".transcripts"

// Transcript is the exported record of one session: the full turn log
// plus the state derived from it at export time. It is a keepsake, not
// a save file; nothing reads it back to resume a game.
type Transcript struct {
	ExportedAt time.Time `yaml:"exported_at"`
	Turns      []Turn    `yaml:"turns"`
	Final      Summary   `yaml:"final"`
}

// Summary is the human-facing slice of GameState written alongside a
// transcript.
type Summary struct {
	Floor              int     `yaml:"floor"`
	MovesLeft          int     `yaml:"moves_left"`
	Mode               Mode    `yaml:"mode"`
	CurrentPersona     Persona `yaml:"current_persona"`
	FirstStageComplete bool    `yaml:"first_stage_complete"`
	MarvinJoined       bool    `yaml:"marvin_joined"`
	HasWon             bool    `yaml:"has_won"`
}

// ExportTranscript writes the log to a timestamped YAML file and
// returns the path written.
func ExportTranscript(log *MessageLog) (string, error) {
	if err := os.MkdirAll(TranscriptDir, 0755); err != nil {
		return "", err
	}

	turns := log.Turns()
	state := Derive(turns)
	t := Transcript{
		ExportedAt: time.Now(),
		Turns:      turns,
		Final: Summary{
			Floor:              state.CurrentFloor,
			MovesLeft:          state.MovesLeft,
			Mode:               state.Mode,
			CurrentPersona:     state.CurrentPersona,
			FirstStageComplete: state.FirstStageComplete,
			MarvinJoined:       state.MarvinJoined,
			HasWon:             state.HasWon,
		},
	}

	data, err := yaml.Marshal(t)
	if err != nil {
		return "", err
	}

	path := filepath.Join(TranscriptDir, fmt.Sprintf("ride-%s.yaml", t.ExportedAt.Format("20060102-150405")))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
