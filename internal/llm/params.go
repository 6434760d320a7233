package llm

import "chatstream/pkg/types"

// Deployment defaults for generation.
const (
	DefaultMaxNewTokens uint32  = 512
	DefaultTemperature  float32 = 0.7
	DefaultTopP         float32 = 0.9
	DefaultDoSample             = true
)

// Params configures one generation run. It is copied into the worker at
// spawn time and never mutated afterwards.
type Params struct {
	MaxNewTokens uint32
	DoSample     bool
	Temperature  float32
	TopP         float32
	TopK         int
	// Seed for the sampler; 0 lets the runtime choose.
	Seed int
	// Token ids; negative means "use the model's own".
	EOSTokenID int32
	PadTokenID int32
	Stop       []string
}

// DefaultParams returns the deployment defaults with model-provided EOS/pad ids.
func DefaultParams() Params {
	return Params{
		MaxNewTokens: DefaultMaxNewTokens,
		DoSample:     DefaultDoSample,
		Temperature:  DefaultTemperature,
		TopP:         DefaultTopP,
		EOSTokenID:   -1,
		PadTokenID:   -1,
	}
}

// Normalize fills derived fields: an unset pad id falls back to the EOS id,
// and a zero token budget becomes the default. The stop list is copied so the
// result shares nothing with p.
func (p Params) Normalize() Params {
	if p.PadTokenID < 0 {
		p.PadTokenID = p.EOSTokenID
	}
	if p.MaxNewTokens == 0 {
		p.MaxNewTokens = DefaultMaxNewTokens
	}
	p.Stop = append([]string(nil), p.Stop...)
	return p
}

// Greedy reports whether sampling is disabled; runtimes then pick the most
// likely token at each step and ignore temperature/top-p.
func (p Params) Greedy() bool { return !p.DoSample }

// Public returns the client-visible view of p.
func (p Params) Public() types.GenerationParams {
	return types.GenerationParams{
		MaxNewTokens: p.MaxNewTokens,
		DoSample:     p.DoSample,
		Temperature:  p.Temperature,
		TopP:         p.TopP,
	}
}
