package gemini

import (
	"context"
	"strings"
	"testing"

	"tutorcast/internal/domain"
)

func TestNewSolverDefaults(t *testing.T) {
	t.Parallel()

	s := NewSolver(SolverConfig{APIKey: "k"})
	if s.cfg.Model != "gemini-2.0-flash-exp" {
		t.Fatalf("unexpected model: %q", s.cfg.Model)
	}
}

func TestSolveRequiresAPIKeyAndImages(t *testing.T) {
	t.Parallel()

	s := NewSolver(SolverConfig{})
	if _, err := s.Solve(context.Background(), []domain.InlineData{{MIMEType: "image/png", Data: "Zm9v"}}, "q"); err == nil {
		t.Fatalf("expected missing key error")
	}

	s = NewSolver(SolverConfig{APIKey: "k"})
	if _, err := s.Solve(context.Background(), nil, "q"); err == nil {
		t.Fatalf("expected missing image error")
	}
}

func TestSolverPromptWrapsQuestion(t *testing.T) {
	t.Parallel()

	prompt := solverPrompt("  what is x?  ")
	if !strings.Contains(prompt, "Student question: what is x?") {
		t.Fatalf("unexpected prompt: %q", prompt)
	}
	if !strings.Contains(prompt, "helpful tutor") {
		t.Fatalf("prompt missing tutor framing: %q", prompt)
	}
}
