package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chatstream/internal/httpapi"
	"chatstream/internal/llm"
	"chatstream/internal/session"
	"chatstream/internal/sse"
)

// newServer starts the real HTTP stack around gen.
func newServer(t *testing.T, gen llm.Generator, mutate ...func(*session.Config)) (*httptest.Server, *session.Controller) {
	t.Helper()
	cfg := session.Config{
		Generator: gen,
		Formatter: llm.NewTemplateFormatter(llm.DefaultChatTemplate),
		Params:    llm.DefaultParams(),
		JoinGrace: time.Second,
		ModelName: "fake.gguf",
		Logger:    zerolog.Nop(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	ctrl := session.NewController(cfg)
	httpapi.SetLogger(zerolog.Nop())
	srv := httptest.NewServer(httpapi.NewMux(ctrl))
	t.Cleanup(srv.Close)
	return srv, ctrl
}

func postChat(t *testing.T, ctx context.Context, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/chat_stream", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	return resp
}

func readEvents(t *testing.T, r io.Reader) []sse.Event {
	t.Helper()
	evs, err := sse.ReadAll(r)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	return evs
}

// fragments returns a generator emitting parts in order and then err.
func fragments(err error, parts ...string) llm.GeneratorFunc {
	return func(ctx context.Context, prompt string, p llm.Params, sink llm.Sink) error {
		for _, s := range parts {
			if e := sink(s); e != nil {
				return e
			}
		}
		return err
	}
}
