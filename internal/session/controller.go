// Package session runs streaming generation sessions: it validates a chat
// request, spawns a generation worker bound to a fresh token stream, and
// drains that stream into a text/event-stream response.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chatstream/internal/llm"
	"chatstream/internal/sse"
	"chatstream/internal/stream"
	"chatstream/internal/tracing"
	"chatstream/pkg/types"
)

const defaultJoinGrace = time.Second

// Config wires a Controller. Generator is required.
type Config struct {
	Generator llm.Generator
	Formatter llm.PromptFormatter
	Params    llm.Params
	// StreamBuffer bounds queued fragments per session (0 = stream default).
	StreamBuffer int
	// JoinGrace bounds the advisory wait for the worker after end of stream.
	JoinGrace time.Duration
	// Timeout caps a whole session; 0 disables.
	Timeout time.Duration
	// ModelName is reported by Status.
	ModelName string
	Logger    zerolog.Logger
}

// Controller serves chat sessions. It is safe for concurrent use; each call
// to Chat owns an isolated session, stream and worker.
type Controller struct {
	gen       llm.Generator
	validator *Validator
	params    llm.Params
	cfg       Config
	log       zerolog.Logger
	started   time.Time

	active    atomic.Int64
	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

// NewController builds a Controller from cfg.
func NewController(cfg Config) *Controller {
	if cfg.JoinGrace <= 0 {
		cfg.JoinGrace = defaultJoinGrace
	}
	return &Controller{
		gen:       cfg.Generator,
		validator: NewValidator(cfg.Formatter),
		params:    cfg.Params.Normalize(),
		cfg:       cfg,
		log:       cfg.Logger,
		started:   time.Now(),
	}
}

// Chat runs one session for the request body and writes the event stream to w.
//
// A non-nil error means the session failed before streaming began and
// nothing has been written to w; the caller owns the error response (the
// error may carry a status via StatusCode() int). Once streaming has begun
// every failure is reported in-band and Chat returns a nil error; the
// Outcome tells how the session ended.
func (c *Controller) Chat(ctx context.Context, body io.Reader, w http.ResponseWriter) (Outcome, error) {
	sess := newSession(c.params)
	log := c.logger(ctx).With().Str("session_id", sess.ID).Logger()
	ctx, span := tracing.StartSpan(ctx, "chat.session", attribute.String("session.id", sess.ID))
	defer span.End()

	c.advance(sess, StateValidating, log)
	prompt, flusher, err := c.prepare(sess, body, w, log)
	if err != nil {
		c.advance(sess, StateFailed, log)
		c.rejected.Add(1)
		sessionsTotal.WithLabelValues("rejected").Inc()
		tracing.RecordError(span, err)
		log.Info().Err(err).Msg("session rejected")
		return c.outcome(sess, err), err
	}
	sess.Prompt = prompt

	h := w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	c.advance(sess, StateGenerating, log)

	c.active.Add(1)
	sessionsActive.Inc()
	defer func() {
		c.active.Add(-1)
		sessionsActive.Dec()
	}()

	var (
		genCtx context.Context
		cancel context.CancelFunc
	)
	if c.cfg.Timeout > 0 {
		genCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
	} else {
		genCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	st := stream.New(c.cfg.StreamBuffer)
	worker := Spawn(genCtx, c.gen, sess.Prompt, sess.Params, st, log)
	log.Debug().Int("prompt_len", len(sess.Prompt)).Msg("generation started")

	runErr := c.drain(genCtx, sess, st, worker, w, flusher, cancel, log)
	out := c.outcome(sess, runErr)
	c.record(out, span, log)
	return out, nil
}

// prepare covers the validating state: body -> message -> prompt, plus the
// checks that must pass before any byte is written.
func (c *Controller) prepare(sess *Session, body io.Reader, w http.ResponseWriter, log zerolog.Logger) (string, http.Flusher, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return "", nil, ErrInvalidRequest("request body too large")
		}
		return "", nil, ErrInvalidRequest("failed to read request body")
	}
	msg, err := c.validator.Validate(raw)
	if err != nil {
		return "", nil, err
	}
	if a, ok := c.gen.(llm.Availability); ok && !a.Available() {
		return "", nil, unavailableError{msg: "model temporarily unavailable"}
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		return "", nil, errors.New("streaming unsupported")
	}
	prompt, fallback := c.validator.Prompt(msg, log)
	if fallback {
		log.Debug().Str("prompt", prompt).Msg("using manual prompt format")
	}
	return prompt, flusher, nil
}

// drain consumes st until a terminal item, writing one wire event per item.
// It returns the error that failed the session, or nil when it completed.
func (c *Controller) drain(ctx context.Context, sess *Session, st *stream.Stream, worker *Worker, w io.Writer, fl http.Flusher, cancel context.CancelFunc, log zerolog.Logger) error {
	var buf []byte
	write := func(ev sse.Event) error {
		buf = sse.Append(buf[:0], ev)
		if _, err := w.Write(buf); err != nil {
			return TransportFailure{Err: err}
		}
		fl.Flush()
		return nil
	}
	// abort stops the worker and makes a best-effort error event write; the
	// client may already be gone, so its failure is ignored.
	abort := func(cause error, msg string) error {
		st.Abandon()
		cancel()
		c.advance(sess, StateFailed, log)
		_ = write(sse.Error(msg))
		return cause
	}

	for {
		it, err := st.Next(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return abort(fmt.Errorf("session timed out: %w", err), "session timed out")
			}
			return abort(TransportFailure{Err: err}, "session canceled")
		}
		if sess.State == StateGenerating {
			c.advance(sess, StateDraining, log)
		}

		switch it.Kind {
		case stream.KindFragment:
			if err := write(sse.Data(it.Text)); err != nil {
				return abort(err, "stream write failed")
			}
			sess.Fragments++
			fragmentsTotal.Inc()
		case stream.KindEnd:
			if err := write(sse.End()); err != nil {
				c.advance(sess, StateFailed, log)
				return err
			}
			c.advance(sess, StateCompleted, log)
			if !worker.Join(c.cfg.JoinGrace) {
				log.Warn().Dur("grace", c.cfg.JoinGrace).Msg("generation worker still running after end of stream")
			}
			return nil
		case stream.KindError:
			c.advance(sess, StateFailed, log)
			if err := write(sse.Error(it.Err.Error())); err != nil {
				log.Debug().Err(err).Msg("error event not delivered")
			}
			return it.Err
		}
	}
}

func (c *Controller) advance(sess *Session, next State, log zerolog.Logger) {
	from := sess.State
	if !sess.transition(next) {
		log.Error().Str("from", string(from)).Str("to", string(next)).Msg("illegal session transition")
		return
	}
	log.Debug().Str("from", string(from)).Str("to", string(next)).Msg("session transition")
}

func (c *Controller) outcome(sess *Session, err error) Outcome {
	return Outcome{
		SessionID: sess.ID,
		State:     sess.State,
		Fragments: sess.Fragments,
		Duration:  time.Since(sess.Started),
		Err:       err,
	}
}

func (c *Controller) record(out Outcome, span trace.Span, log zerolog.Logger) {
	span.SetAttributes(attribute.Int("session.fragments", out.Fragments), attribute.String("session.state", string(out.State)))
	label := string(out.State)
	sessionsTotal.WithLabelValues(label).Inc()
	sessionDuration.WithLabelValues(label).Observe(out.Duration.Seconds())
	if out.State == StateCompleted {
		c.completed.Add(1)
		tracing.SetOK(span)
		log.Info().Int("fragments", out.Fragments).Dur("dur", out.Duration).Msg("session completed")
		return
	}
	c.failed.Add(1)
	if out.Err != nil {
		tracing.RecordError(span, out.Err)
	}
	if IsTransportFailure(out.Err) {
		transportFailures.Inc()
		log.Debug().Err(out.Err).Int("fragments", out.Fragments).Msg("client gone")
		return
	}
	log.Warn().Err(out.Err).Int("fragments", out.Fragments).Dur("dur", out.Duration).Msg("session failed")
}

// logger prefers a request-scoped logger carried by ctx.
func (c *Controller) logger(ctx context.Context) *zerolog.Logger {
	// Ctx hands back a shared fallback when the context carries no logger.
	if l := zerolog.Ctx(ctx); l != zerolog.Ctx(context.Background()) {
		return l
	}
	return &c.log
}

// Ready reports whether new sessions would be accepted.
func (c *Controller) Ready() bool {
	if a, ok := c.gen.(llm.Availability); ok {
		return a.Available()
	}
	return true
}

// Status reports counters and configuration.
func (c *Controller) Status() types.StatusResponse {
	state := "ready"
	if a, ok := c.gen.(llm.Availability); ok {
		state = a.State()
	}
	now := time.Now()
	return types.StatusResponse{
		Model:          c.cfg.ModelName,
		Generator:      state,
		ActiveSessions: c.active.Load(),
		CompletedTotal: c.completed.Load(),
		FailedTotal:    c.failed.Load(),
		RejectedTotal:  c.rejected.Load(),
		Params:         c.params.Public(),
		UptimeSeconds:  int64(now.Sub(c.started).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}
