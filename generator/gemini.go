package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const geminiModel = "gemini-2.0-flash"

type geminiGenerator struct {
	client *genai.Client
}

// NewGemini builds a Gemini-backed Generator. Credentials come from the
// environment (GEMINI_API_KEY / application default credentials).
func NewGemini(ctx context.Context) (Generator, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiGenerator{client: client}, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, req Request) ([]Question, error) {
	prompt := systemPrompt + "\n\n" + buildUserPrompt(req)

	result, err := g.client.Models.GenerateContent(ctx, geminiModel, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	raw := result.Text()
	if raw == "" {
		return nil, errors.New("empty model response")
	}

	// Models occasionally wrap the payload in markdown fences despite the prompt.
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.Trim(clean, "`")

	var questions []Question
	if err := json.Unmarshal([]byte(clean), &questions); err != nil {
		logrus.WithError(err).Debugf("unparseable generator output:\n%s", clean)
		return nil, fmt.Errorf("decode generator output: %w", err)
	}
	if len(questions) == 0 {
		return nil, errors.New("generator returned no questions")
	}

	logrus.WithFields(logrus.Fields{
		"topic": req.Topic,
		"count": len(questions),
	}).Info("questions generated")
	return questions, nil
}
