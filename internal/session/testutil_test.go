package session

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"chatstream/internal/llm"
	"chatstream/internal/sse"
)

// scriptGen replays fixed fragments, then ends according to its flags.
type scriptGen struct {
	fragments []string
	err       error
	panicMsg  string
	waitCtx   bool // block until ctx is done after the fragments
	endless   bool // keep emitting until the sink refuses

	mu       sync.Mutex
	prompts  []string
	params   []llm.Params
	stopOnce sync.Once
	stopped  chan struct{} // closed when the generator saw cancellation or a closed sink
}

func newScriptGen(fragments ...string) *scriptGen {
	return &scriptGen{fragments: fragments, stopped: make(chan struct{})}
}

func (g *scriptGen) markStopped() { g.stopOnce.Do(func() { close(g.stopped) }) }

func (g *scriptGen) Generate(ctx context.Context, prompt string, p llm.Params, sink llm.Sink) error {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.params = append(g.params, p)
	g.mu.Unlock()
	for _, f := range g.fragments {
		if err := sink(f); err != nil {
			g.markStopped()
			return err
		}
	}
	if g.panicMsg != "" {
		panic(g.panicMsg)
	}
	if g.endless {
		for {
			if err := sink("x"); err != nil {
				g.markStopped()
				return err
			}
		}
	}
	if g.waitCtx {
		<-ctx.Done()
		g.markStopped()
		return ctx.Err()
	}
	return g.err
}

func (g *scriptGen) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

// seededGen samples words from a fixed vocabulary using the params seed.
type seededGen struct{}

var vocabulary = []string{"the ", "sea ", "is ", "wide ", "and ", "deep ", "blue "}

func (seededGen) Generate(ctx context.Context, prompt string, p llm.Params, sink llm.Sink) error {
	seed := int64(p.Seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < int(p.MaxNewTokens); i++ {
		var tok string
		if p.DoSample {
			tok = vocabulary[rng.Intn(len(vocabulary))]
		} else {
			tok = vocabulary[(int(seed)+i)%len(vocabulary)]
		}
		if err := sink(tok); err != nil {
			return err
		}
	}
	return nil
}

// gatedGen refuses work while open is false.
type gatedGen struct {
	*scriptGen
	open bool
}

func (g *gatedGen) Available() bool { return g.open }
func (g *gatedGen) State() string {
	if g.open {
		return "ready"
	}
	return "unavailable"
}

type staticFormatter struct {
	out string
	err error
}

func (f staticFormatter) FormatPrompt(messages []llm.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.out + messages[0].Content, nil
}

// failingWriter accepts okWrites body writes, then fails every write.
type failingWriter struct {
	header   http.Header
	code     int
	okWrites int
	writes   int
	body     strings.Builder
}

func (f *failingWriter) Header() http.Header {
	if f.header == nil {
		f.header = http.Header{}
	}
	return f.header
}
func (f *failingWriter) WriteHeader(code int) { f.code = code }
func (f *failingWriter) Flush()               {}
func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	if f.writes > f.okWrites {
		return 0, errors.New("write: broken pipe")
	}
	f.body.Write(p)
	return len(p), nil
}

// noFlushWriter hides http.Flusher.
type noFlushWriter struct{ rec *httptest.ResponseRecorder }

func (n noFlushWriter) Header() http.Header         { return n.rec.Header() }
func (n noFlushWriter) Write(p []byte) (int, error) { return n.rec.Write(p) }
func (n noFlushWriter) WriteHeader(code int)        { n.rec.WriteHeader(code) }

// notifyWriter closes first on the first body write.
type notifyWriter struct {
	*httptest.ResponseRecorder
	once  sync.Once
	first chan struct{}
}

func newNotifyWriter() *notifyWriter {
	return &notifyWriter{ResponseRecorder: httptest.NewRecorder(), first: make(chan struct{})}
}

func (n *notifyWriter) Write(p []byte) (int, error) {
	n.once.Do(func() { close(n.first) })
	return n.ResponseRecorder.Write(p)
}

func newTestController(gen llm.Generator, mutate ...func(*Config)) *Controller {
	cfg := Config{
		Generator:    gen,
		Formatter:    llm.NewTemplateFormatter(llm.DefaultChatTemplate),
		Params:       llm.DefaultParams(),
		StreamBuffer: 4,
		JoinGrace:    time.Second,
		ModelName:    "test.gguf",
		Logger:       zerolog.Nop(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewController(cfg)
}

func events(t *testing.T, body string) []sse.Event {
	t.Helper()
	evs, err := sse.ReadAll(strings.NewReader(body))
	require.NoError(t, err)
	return evs
}

func terminalCount(evs []sse.Event) int {
	n := 0
	for _, ev := range evs {
		if ev.Terminal() {
			n++
		}
	}
	return n
}

func dataText(evs []sse.Event) string {
	var b strings.Builder
	for _, ev := range evs {
		if ev.Kind == sse.KindData {
			b.WriteString(ev.Text)
		}
	}
	return b.String()
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}
