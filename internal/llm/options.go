package llm

// LlamaOptions configures how the llama backend loads a model.
type LlamaOptions struct {
	ContextSize int
	Threads     int
	GPULayers   int
}
