// Package llm provides text generation via an OpenAI-compatible provider.
package llm

import "context"

// Generator produces text from a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Close() error
}
