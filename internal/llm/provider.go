// Package llm provides the text-generation client used for commentary.
package llm

import "context"

// Generator produces text for a prompt under a system framing. The model
// name selects the persona's configured model; an empty model uses the
// client's default.
type Generator interface {
	Generate(ctx context.Context, model, system, prompt string) (string, error)
}

// StatusChecker reports generation backend availability. Separate from
// Generator so orchestration code can depend on generation alone.
type StatusChecker interface {
	Status(ctx context.Context) (*Status, error)
}

// Status describes the generation backend.
type Status struct {
	Available bool     `json:"available"`
	Models    []string `json:"models,omitempty"`
}
