package httpapi

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatstream/internal/session"
	"chatstream/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	// Chat streams one reply into w. A non-nil error means no stream was
	// opened and the caller owns the response.
	Chat(ctx context.Context, body io.Reader, w http.ResponseWriter) (session.Outcome, error)
	Status() types.StatusResponse
	Ready() bool
}

// NewMux builds the HTTP handler. Background goroutines (rate limiter
// bookkeeping) stop when the base context set via SetBaseContext is done.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: orDefault(corsAllowedOrigins, []string{"*"}),
			AllowedMethods: orDefault(corsAllowedMethods, []string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			AllowedHeaders: orDefault(corsAllowedHeaders, []string{"Content-Type", "X-Log-Level"}),
			MaxAge:         300,
		}))
	}

	mountStatic(r)

	r.Group(func(r chi.Router) {
		if rateLimitRPS > 0 {
			cl := newClientLimiter(rateLimitRPS, rateLimitBurst)
			go cl.sweep(serverBaseCtx)
			r.Use(cl.middleware)
		}
		r.Post("/chat_stream", chatStreamHandler(svc))
	})

	// Compression only for JSON endpoints; event streams must not be buffered.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5, "application/json"))
		r.Get("/status", statusHandler(svc))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", readyzHandler(svc))

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// statusHandler reports the loaded model, generator health and session counters.
//
// @Summary      Server status
// @Description  Model path, generator state, session counters and default generation parameters.
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func statusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
		}
	}
}

// readyzHandler answers 200 while new sessions would be accepted.
//
// @Summary   Readiness
// @Tags      status
// @Produce   plain
// @Success   200  {string}  string  "ready"
// @Failure   503  {string}  string  "unavailable"
// @Router    /readyz [get]
func readyzHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))
	}
}

// chatStreamHandler streams one assistant reply as server-sent events. Each
// fragment is a data event; the stream closes with an end or error event.
//
// @Summary      Stream a chat reply
// @Description  Responds with text/event-stream. Rejected requests carry a single error event.
// @Tags         chat
// @Accept       json
// @Produce      text/event-stream
// @Param        request      body    types.ChatRequest  true   "User message"
// @Param        log          query   string             false  "Per-request log level (off, error, info, debug)"
// @Param        X-Log-Level  header  string             false  "Per-request log level when the query is absent"
// @Success      200  {string}  string  "data events followed by event: end"
// @Failure      400  {object}  types.ErrorResponse  "sent as event: error"
// @Failure      415  {object}  types.ErrorResponse  "sent as event: error"
// @Failure      429  {object}  types.ErrorResponse  "sent as event: error"
// @Failure      503  {object}  types.ErrorResponse  "sent as event: error"
// @Router       /chat_stream [post]
func chatStreamHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "" && !isJSON(ct) {
			writeSSEError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		lvl := requestLogLevel(r)
		l := requestLogger(lvl, middleware.GetReqID(r.Context()))

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		ctx = l.WithContext(ctx)

		out := http.ResponseWriter(w)
		if lvl >= LevelDebug {
			out = &teeResponseWriter{ResponseWriter: w, tee: &loggingLineWriter{log: &l}}
		}

		start := time.Now()
		l.Info().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("chat start")
		res, err := svc.Chat(ctx, r.Body, out)
		if err != nil {
			status := statusOf(err)
			writeSSEError(w, status, err.Error())
			l.Info().Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("chat end")
			return
		}
		l.Info().
			Int("status", http.StatusOK).
			Str("session_id", res.SessionID).
			Str("state", string(res.State)).
			Int("fragments", res.Fragments).
			Dur("dur", time.Since(start)).
			Msg("chat end")
	}
}

func isJSON(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return strings.EqualFold(mt, "application/json")
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
