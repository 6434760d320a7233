//go:build !llama

package llm

// No-CGO stand-in compiled when the 'llama' build tag is NOT set, keeping
// default builds and CI CGO-free. The real backend lives in llama.go.

import "context"

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = false

// Llama refuses to run without the 'llama' build tag. There is no mocked
// generation in production binaries.
type Llama struct{}

// LoadLlama always fails with a dependency-unavailable error in this build.
func LoadLlama(path string, opts LlamaOptions) (*Llama, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

// Generate implements Generator.
func (l *Llama) Generate(ctx context.Context, prompt string, params Params, sink Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

// Close is a no-op.
func (l *Llama) Close() error { return nil }
