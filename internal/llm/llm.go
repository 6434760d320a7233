// Package llm defines the contracts between the streaming session layer and
// the language-model runtime, plus the runtimes shipped with the daemon.
//
//   - llm.go: Generator, PromptFormatter and Sink contracts.
//   - params.go: generation parameters and deployment defaults.
//   - template.go: text/template based chat prompt formatter.
//   - breaker.go: circuit breaker around any Generator.
//   - llama.go: go-llama.cpp backend, built with `-tags=llama`.
//   - llama_stub.go: no-CGO stub compiled without the tag.
//
// The session layer treats all of these as black boxes: a formatter turns
// chat messages into model input, a generator turns model input into a lazy
// sequence of text fragments.
package llm

import (
	"context"

	"chatstream/pkg/types"
)

// Message is one chat turn.
type Message = types.Message

// Sink receives generated text as it is produced. Returning an error asks the
// generator to stop; the generator should then return that error (or one
// wrapping it).
type Sink func(fragment string) error

// Generator runs autoregressive generation for a formatted prompt.
// Generate blocks until generation ends naturally (nil), fails, or ctx is
// done. Fragments passed to sink exclude the prompt. Implementations must be
// safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string, params Params, sink Sink) error
}

// PromptFormatter renders chat messages into the exact text fed to the model,
// including the trailing assistant turn opener.
type PromptFormatter interface {
	FormatPrompt(messages []Message) (string, error)
}

// Availability is implemented by generators that can refuse work up front,
// e.g. a tripped circuit breaker.
type Availability interface {
	Available() bool
	State() string
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, params Params, sink Sink) error

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, params Params, sink Sink) error {
	return f(ctx, prompt, params, sink)
}

// Built reports whether this binary carries the llama backend.
func Built() bool { return llamaBuilt }
