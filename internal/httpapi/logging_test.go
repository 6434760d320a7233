package httpapi

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("shorthand query override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x?log=off", nil)
	r.Header.Set("X-Log-Level", "debug")
	if got := requestLogLevel(r); got != LevelOff {
		t.Fatalf("query should win over header: %v", got)
	}
}

func TestLogLevel_ZerologMapping(t *testing.T) {
	if LevelOff.zerologLevel() != zerolog.Disabled || LevelDebug.zerologLevel() != zerolog.DebugLevel ||
		LevelError.zerologLevel() != zerolog.ErrorLevel || LevelInfo.zerologLevel() != zerolog.InfoLevel {
		t.Fatalf("unexpected zerolog mapping")
	}
}

func TestLoggingLineWriter_SplitsLines(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Writer()
	defer log.SetOutput(orig)
	log.SetOutput(&buf)

	lw := &loggingLineWriter{}
	_, _ = lw.Write([]byte("data: a line\npartial"))
	_, _ = lw.Write([]byte("-cont\n\nevent: end\n"))

	out := buf.String()
	for _, want := range []string{"stream> data: a line", "stream> partial-cont", "stream> event: end"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Count(out, "stream>") != 3 {
		t.Fatalf("blank lines must not be logged: %q", out)
	}
}

func TestLoggingLineWriter_Zerolog(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).Level(zerolog.DebugLevel)
	lw := &loggingLineWriter{log: &l}
	_, _ = lw.Write([]byte("data: x\n"))
	if !strings.Contains(buf.String(), `"line":"data: x"`) {
		t.Fatalf("zerolog line missing: %q", buf.String())
	}
}

func TestRequestLogger_OffStaysInContext(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer SetLogger(zerolog.New(io.Discard))

	l := requestLogger(LevelOff, "r1")
	ctx := l.WithContext(context.Background())
	if zerolog.Ctx(ctx) == zerolog.Ctx(context.Background()) {
		t.Fatalf("silenced request logger was not stored in the context")
	}
	zerolog.Ctx(ctx).Error().Msg("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("LevelOff logger wrote output: %q", buf.String())
	}

	l = requestLogger(LevelError, "r2")
	l.Info().Msg("filtered")
	l.Error().Msg("kept")
	if out := buf.String(); strings.Contains(out, "filtered") || !strings.Contains(out, `"request_id":"r2"`) {
		t.Fatalf("unexpected output at error level: %q", out)
	}
}

func TestChatStreamsWithDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer SetLogger(zerolog.New(io.Discard))

	h := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodPost, "/chat_stream?log=debug", bytes.NewBufferString(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with debug logging, got %d", rec.Code)
	}
	if !rec.Flushed {
		t.Fatalf("flush was not forwarded through the tee writer")
	}
	out := buf.String()
	if !strings.Contains(out, "chat start") || !strings.Contains(out, `"line":"data: hi"`) {
		t.Fatalf("expected start and frame logs, got %q", out)
	}
	if !strings.Contains(out, `"request_id"`) {
		t.Fatalf("request id not attached: %q", out)
	}
}
