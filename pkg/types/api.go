package types

// ChatRequest is the body accepted by POST /chat_stream.
type ChatRequest struct {
	// User message to answer. Required and non-empty.
	// example: Write a haiku about the ocean.
	Message string `json:"message" example:"Write a haiku about the ocean."`
}

// ErrorResponse is the payload carried by an `event: error` frame.
type ErrorResponse struct {
	// Error message.
	// example: No message provided
	Error string `json:"error" example:"No message provided"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Path of the loaded model file.
	// example: /home/user/models/qwen2.5-1.5b-instruct-q4_k_m.gguf
	Model string `json:"model" example:"/home/user/models/qwen2.5-1.5b-instruct-q4_k_m.gguf"`
	// Generator state: ready, degraded (circuit half-open) or unavailable (circuit open).
	// example: ready
	Generator string `json:"generator" example:"ready"`
	// Sessions currently streaming.
	// example: 1
	ActiveSessions int64 `json:"active_sessions" example:"1"`
	// Sessions that ended with an end event.
	// example: 42
	CompletedTotal uint64 `json:"completed_total" example:"42"`
	// Sessions that ended with an error event or a lost client.
	// example: 3
	FailedTotal uint64 `json:"failed_total" example:"3"`
	// Requests rejected before streaming began.
	// example: 5
	RejectedTotal uint64 `json:"rejected_total" example:"5"`
	// Generation parameters applied to every session.
	Params GenerationParams `json:"params"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// GenerationParams mirrors the deployment-wide sampling configuration.
type GenerationParams struct {
	// example: 512
	MaxNewTokens uint32 `json:"max_new_tokens" example:"512"`
	// example: true
	DoSample bool `json:"do_sample" example:"true"`
	// example: 0.7
	Temperature float32 `json:"temperature" example:"0.7"`
	// example: 0.9
	TopP float32 `json:"top_p" example:"0.9"`
}
