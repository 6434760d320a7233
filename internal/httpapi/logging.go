package httpapi

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logger() zerolog.Logger {
	if zlog != nil {
		return *zlog
	}
	return zerolog.Nop()
}

// loggingLineWriter logs complete SSE lines as they are written. With a nil
// log it falls back to the standard logger.
type loggingLineWriter struct {
	log *zerolog.Logger
	buf []byte
}

func (lw *loggingLineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		if line := string(lw.buf[:idx]); line != "" {
			if lw.log != nil {
				lw.log.Debug().Str("line", line).Msg("stream>")
			} else {
				log.Printf("stream> %s", line)
			}
		}
		lw.buf = lw.buf[idx+1:]
	}
	return len(p), nil
}

// teeResponseWriter copies every body write to tee and keeps Flush working.
type teeResponseWriter struct {
	http.ResponseWriter
	tee io.Writer
}

func (t *teeResponseWriter) Write(p []byte) (int, error) {
	n, err := t.ResponseWriter.Write(p)
	if n > 0 {
		_, _ = t.tee.Write(p[:n])
	}
	return n, err
}

func (t *teeResponseWriter) Flush() {
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (t *teeResponseWriter) Unwrap() http.ResponseWriter { return t.ResponseWriter }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = func() LogLevel {
	if v, ok := os.LookupEnv("CHATSTREAM_LOG_LEVEL"); ok {
		return parseLevel(v)
	}
	return LevelInfo
}()

func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// requestLogger derives the per-request logger. For LevelOff it discards
// output at PanicLevel instead of Disabled, since zerolog never stores a
// Disabled logger in a context and downstream code would fall back to its own.
func requestLogger(lvl LogLevel, reqID string) zerolog.Logger {
	l := logger().With().Str("request_id", reqID).Logger()
	if lvl == LevelOff {
		return l.Output(io.Discard).Level(zerolog.PanicLevel)
	}
	return l.Level(lvl.zerologLevel())
}

// zerologLevel converts a request log level into the zerolog threshold.
func (l LogLevel) zerologLevel() zerolog.Level {
	switch l {
	case LevelOff:
		return zerolog.Disabled
	case LevelError:
		return zerolog.ErrorLevel
	case LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
