package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"chatstream/internal/config"
	"chatstream/internal/httpapi"
	"chatstream/internal/llm"
	"chatstream/internal/registry"
	"chatstream/internal/session"
	"chatstream/internal/tracing"
)

const shutdownGrace = 10 * time.Second

// newLogger builds the root logger for the given level and format.
func newLogger(level, format string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// serve loads the model and blocks until the server stops. The model must load
// before the listener opens; any start-up failure is returned.
func serve(ctx context.Context, cfg config.Config, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log, err := newLogger(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		return err
	}

	shutdownTracing, err := tracing.Setup(cfg.TraceExporter, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	model, err := registry.Resolve(cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("resolve model: %w", err)
	}
	log.Info().Str("path", model.Path).Int64("bytes", model.Size).Msg("loading model")
	start := time.Now()
	backend, err := llm.LoadLlama(model.Path, llm.LlamaOptions{
		ContextSize: cfg.CtxSize,
		Threads:     cfg.Threads,
		GPULayers:   cfg.GPULayers,
	})
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer backend.Close()
	log.Info().Dur("took", time.Since(start)).Msg("model loaded")

	var formatter llm.PromptFormatter
	if src := cfg.ChatTemplateSource(); src != "" {
		tf := llm.NewTemplateFormatter(src)
		if tf.Err() != nil {
			log.Warn().Err(tf.Err()).Msg("chat template invalid; prompts use the manual format")
		}
		formatter = tf
	}

	gen := llm.NewBreaker(backend, llm.BreakerConfig{
		MaxFailures: cfg.BreakerMaxFailures,
		Timeout:     cfg.BreakerOpen(),
	}, log)

	ctrl := session.NewController(session.Config{
		Generator:    gen,
		Formatter:    formatter,
		Params:       cfg.Params(),
		StreamBuffer: cfg.StreamBuffer,
		JoinGrace:    cfg.JoinGrace(),
		Timeout:      cfg.SessionTimeout(),
		ModelName:    model.Path,
		Logger:       log,
	})

	baseCtx, cancelBase := context.WithCancel(ctx)
	defer cancelBase()
	httpapi.SetLogger(log)
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(ctrl),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model", model.Name).Msg("chatstream listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}
	log.Info().Msg("shutting down")
	// Open streams are canceled first so Shutdown does not wait on them.
	cancelBase()
	shCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
