// Package llm adapts text-generation providers to a single prompt-in,
// text-out call.
package llm

import "context"

// Generator produces a completion for prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Generate(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }
