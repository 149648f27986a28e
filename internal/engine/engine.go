package engine

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"elevator-game/internal/models"
)

//go:embed prompts/personas.yaml
var personasYAML []byte

// Roles for the entries of a generator request.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatEntry is one role-tagged entry of a generator request. Name is
// set only for assistant entries, to tell the personas apart.
type ChatEntry struct {
	Role    string
	Name    string
	Content string
}

// Generator produces the raw text of the next persona turn from an
// ordered request. Implementations own the transport; the engine owns
// request building, parsing, and failure fallback.
type Generator interface {
	Complete(ctx context.Context, entries []ChatEntry) (string, error)
}

type personaFile struct {
	Fallback string `yaml:"fallback"`
	Personas map[models.Persona]struct {
		Instruction string `yaml:"instruction"`
	} `yaml:"personas"`
}

// Engine is the persona responder: it asks the generator for the next
// turn of a persona and guarantees a well-formed turn back, whatever
// goes wrong underneath.
type Engine struct {
	gen          Generator
	logger       *zap.Logger
	fallbackText string
	instructions map[models.Persona]*template.Template
}

// NewEngine builds an engine backed by the Gemini generator.
func NewEngine(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Engine, error) {
	gen, err := newGeminiGenerator(ctx, apiKey, model)
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}
	return NewEngineWithGenerator(gen, logger)
}

// NewEngineWithGenerator builds an engine over any generator. Used by
// the offline simulator and by tests.
func NewEngineWithGenerator(gen Generator, logger *zap.Logger) (*Engine, error) {
	var pf personaFile
	if err := yaml.Unmarshal(personasYAML, &pf); err != nil {
		return nil, fmt.Errorf("parsing personas.yaml: %w", err)
	}

	instructions := make(map[models.Persona]*template.Template, len(pf.Personas))
	for persona, def := range pf.Personas {
		tmpl, err := template.New(string(persona)).Parse(def.Instruction)
		if err != nil {
			return nil, fmt.Errorf("parsing instruction for %s: %w", persona, err)
		}
		instructions[persona] = tmpl
	}

	return &Engine{
		gen:          gen,
		logger:       logger,
		fallbackText: pf.Fallback,
		instructions: instructions,
	}, nil
}

// Close releases the underlying generator, if it holds resources.
func (e *Engine) Close() {
	if c, ok := e.gen.(interface{ Close() }); ok {
		c.Close()
	}
}

// Respond returns the persona's next turn given the prior conversation.
// It never fails: floor validation errors, transport errors, and parse
// errors all collapse into a fallback turn with action none, so callers
// may treat it as total.
func (e *Engine) Respond(ctx context.Context, persona models.Persona, floor int, prior []models.Turn) models.Turn {
	fallback := models.Turn{Persona: persona, Text: e.fallbackText, Action: models.ActionNone}

	entries, err := e.buildRequest(persona, floor, prior)
	if err != nil {
		e.logger.Warn("falling back to apology turn",
			zap.String("persona", string(persona)),
			zap.Int("floor", floor),
			zap.Error(err))
		return fallback
	}

	content, err := e.gen.Complete(ctx, entries)
	if err != nil {
		e.logger.Warn("generator call failed",
			zap.String("persona", string(persona)),
			zap.Error(err))
		return fallback
	}

	message, action := e.parseContent(persona, content)
	return models.Turn{Persona: persona, Text: message, Action: action}
}

// buildRequest assembles the ordered generator request: one system
// instruction keyed by persona and floor, then one entry per prior
// turn with its content serialized as {"message","action"} so the
// generator can echo both fields back.
func (e *Engine) buildRequest(persona models.Persona, floor int, prior []models.Turn) ([]ChatEntry, error) {
	if floor < 1 || floor > models.TopFloor {
		return nil, fmt.Errorf("floor %d outside [1, %d]", floor, models.TopFloor)
	}

	tmpl, ok := e.instructions[persona]
	if !ok {
		return nil, fmt.Errorf("no instruction for persona %q", persona)
	}

	var buf bytes.Buffer
	data := struct {
		Floor int
		Top   int
	}{Floor: floor, Top: models.TopFloor}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering instruction for %s: %w", persona, err)
	}

	entries := []ChatEntry{{Role: RoleSystem, Content: buf.String()}}
	for _, turn := range prior {
		payload, err := json.Marshal(struct {
			Message string        `json:"message"`
			Action  models.Action `json:"action"`
		}{Message: turn.Text, Action: turn.Action})
		if err != nil {
			return nil, err
		}

		entry := ChatEntry{Role: RoleAssistant, Name: string(turn.Persona), Content: string(payload)}
		if turn.Persona == models.PersonaUser {
			entry = ChatEntry{Role: RoleUser, Content: string(payload)}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// parseContent extracts {message, action} from generated content. The
// content may be a JSON object, a JSON string, or plain prose; malformed
// JSON degrades to the raw text with action none rather than failing.
func (e *Engine) parseContent(persona models.Persona, content string) (string, models.Action) {
	trimmed := stripFences(content)

	var obj struct {
		Message string        `json:"message"`
		Action  models.Action `json:"action"`
	}
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj.Message != "" {
		if !models.ValidAction(obj.Action) {
			if obj.Action != "" {
				e.logger.Warn("unknown action token from generator",
					zap.String("persona", string(persona)),
					zap.String("action", string(obj.Action)))
			}
			obj.Action = models.ActionNone
		}
		return obj.Message, obj.Action
	}

	var bare string
	if err := json.Unmarshal([]byte(trimmed), &bare); err == nil && bare != "" {
		return bare, models.ActionNone
	}

	e.logger.Warn("generator content is not structured, using raw text",
		zap.String("persona", string(persona)))
	return trimmed, models.ActionNone
}

// stripFences removes a surrounding markdown code fence, which models
// add despite instructions to the contrary.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
