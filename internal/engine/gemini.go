package engine

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// geminiGenerator adapts the Gemini API to the Generator interface.
type geminiGenerator struct {
	client    *genai.Client
	modelName string
}

func newGeminiGenerator(ctx context.Context, apiKey, modelName string) (*geminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &geminiGenerator{client: client, modelName: modelName}, nil
}

func (g *geminiGenerator) Close() {
	g.client.Close()
}

// Complete maps the role-tagged request onto a Gemini chat: the system
// entry becomes the system instruction, prior entries become history,
// and the last entry is sent as the message. Gemini only knows "user"
// and "model" roles, so assistant names are folded into the text.
func (g *geminiGenerator) Complete(ctx context.Context, entries []ChatEntry) (string, error) {
	model := g.client.GenerativeModel(g.modelName)

	var contents []*genai.Content
	for _, entry := range entries {
		switch entry.Role {
		case RoleSystem:
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(entry.Content)},
			}
		case RoleUser:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(entry.Content)},
			})
		case RoleAssistant:
			text := entry.Content
			if entry.Name != "" {
				text = entry.Name + ": " + text
			}
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []genai.Part{genai.Text(text)},
			})
		default:
			return "", fmt.Errorf("unknown chat role %q", entry.Role)
		}
	}

	var resp *genai.GenerateContentResponse
	var err error
	if len(contents) == 0 {
		resp, err = model.GenerateContent(ctx, genai.Text("The doors close. Say something."))
	} else {
		cs := model.StartChat()
		cs.History = contents[:len(contents)-1]
		last := contents[len(contents)-1]
		resp, err = cs.SendMessage(ctx, last.Parts...)
	}
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content returned from Gemini")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response type from Gemini")
	}
	return string(text), nil
}
