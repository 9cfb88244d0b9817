package llm

import (
	"context"
	"sync"
)

// MockGenerator is a canned generator for tests. It records every prompt it
// receives and returns a fixed answer or error.
type MockGenerator struct {
	Answer string
	Err    error

	mu      sync.Mutex
	prompts []string
}

// Complete records the prompt and returns the canned answer.
func (g *MockGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.Err != nil {
		return "", g.Err
	}
	return g.Answer, nil
}

// Prompts returns the prompts seen so far.
func (g *MockGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.prompts))
	copy(out, g.prompts)
	return out
}

// Close is a no-op for MockGenerator.
func (g *MockGenerator) Close() error {
	return nil
}
