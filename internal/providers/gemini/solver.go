package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"tutorcast/internal/domain"
)

const solverPromptTemplate = `You are a helpful tutor. Provide detailed, accurate, and easy-to-understand answers.
Explain concepts thoroughly but avoid showing your internal reasoning process.
If you're not completely sure about something, say so.

Student question: %s`

// SolverConfig controls the one-shot solve request.
type SolverConfig struct {
	APIKey string
	Model  string
}

// Solver implements ports.Solver with a single generateContent call.
type Solver struct {
	cfg SolverConfig
}

func NewSolver(cfg SolverConfig) *Solver {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash-exp"
	}
	return &Solver{cfg: cfg}
}

func (s *Solver) Solve(ctx context.Context, images []domain.InlineData, question string) (string, error) {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return "", errors.New("GEMINI_API_KEY is not configured")
	}
	if len(images) == 0 {
		return "", errors.New("at least one image is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create solver client: %w", err)
	}

	parts := []*genai.Part{genai.NewPartFromText(solverPrompt(question))}
	for _, img := range images {
		raw, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			return "", fmt.Errorf("invalid image payload: %w", err)
		}
		parts = append(parts, genai.NewPartFromBytes(raw, img.MIMEType))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := client.Models.GenerateContent(ctx, s.cfg.Model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("solve request failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("solver returned an empty response")
	}
	return text, nil
}

func solverPrompt(question string) string {
	return fmt.Sprintf(solverPromptTemplate, strings.TrimSpace(question))
}
