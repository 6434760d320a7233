package httpapi

// maxBodyBytes caps the /chat_stream request body. Default 1 MiB.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// Per-client rate limit for /chat_stream. rps <= 0 disables it.
var (
	rateLimitRPS   float64
	rateLimitBurst = 1
)

// SetRateLimit configures the per-client token bucket applied to /chat_stream.
func SetRateLimit(rps float64, burst int) {
	if rps < 0 {
		rps = 0
	}
	if burst <= 0 {
		burst = 1
	}
	rateLimitRPS = rps
	rateLimitBurst = burst
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
