//go:build llama

package llm

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = true

// Llama is a Generator backed by an in-process go-llama.cpp model.
// The binding keeps one token callback per model, so Generate calls are
// serialized.
type Llama struct {
	mu      sync.Mutex
	model   *llama.LLama
	threads int
}

// LoadLlama loads the model at path. It is called once at start-up; the
// returned handle is shared by every session.
func LoadLlama(path string, opts LlamaOptions) (*Llama, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(zn(opts.ContextSize, 2048)),
	}
	if opts.GPULayers > 0 {
		mo = append(mo, llama.SetGPULayers(opts.GPULayers))
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return nil, err
	}
	return &Llama{model: m, threads: opts.Threads}, nil
}

// Generate implements Generator.
func (l *Llama) Generate(ctx context.Context, prompt string, params Params, sink Sink) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model == nil {
		return errors.New("llama model not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var sinkErr error
	l.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if err := sink(tok); err != nil {
			sinkErr = err
			return false
		}
		return true
	})

	_, err := l.model.Predict(prompt, predictOptions(params.Normalize(), l.threads)...)
	switch {
	case sinkErr != nil:
		return sinkErr
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return err
	}
}

// Close frees the native model.
func (l *Llama) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model != nil {
		l.model.Free()
		l.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions maps Params onto go-llama.cpp options. EOS handling is left
// to the model metadata; llama.cpp has no pad token during generation.
func predictOptions(p Params, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(int(p.MaxNewTokens)),
		llama.SetThreads(max(1, threads)),
	}
	if p.Greedy() {
		po = append(po, llama.SetTemperature(0), llama.SetTopK(1))
	} else {
		po = append(po,
			llama.SetTemperature(zf(p.Temperature, llama.DefaultOptions.Temperature)),
			llama.SetTopP(zf(p.TopP, llama.DefaultOptions.TopP)),
			llama.SetTopK(zn(p.TopK, llama.DefaultOptions.TopK)),
		)
	}
	if p.Seed != 0 {
		po = append(po, llama.SetSeed(p.Seed))
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}
