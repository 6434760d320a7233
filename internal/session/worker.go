package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chatstream/internal/llm"
	"chatstream/internal/stream"
)

// Worker runs one generation on its own goroutine and feeds a stream.
type Worker struct {
	done chan struct{}
}

// Spawn starts gen.Generate for prompt and returns immediately. Each
// non-empty fragment is pushed to st in order. When Generate returns the
// worker signals exactly one terminal item: End on success, Fail otherwise
// (a recovered panic counts as failure).
func Spawn(ctx context.Context, gen llm.Generator, prompt string, params llm.Params, st *stream.Stream, log zerolog.Logger) *Worker {
	w := &Worker{done: make(chan struct{})}
	go w.run(ctx, gen, prompt, params, st, log)
	return w
}

func (w *Worker) run(ctx context.Context, gen llm.Generator, prompt string, params llm.Params, st *stream.Stream, log zerolog.Logger) {
	defer close(w.done)
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			if !st.Fail(GenerationFailure{Err: err}) {
				log.Debug().Err(err).Msg("generation ended after consumer left")
			}
			return
		}
		st.End()
	}()

	sink := func(fragment string) error {
		if fragment == "" {
			return nil
		}
		if perr := st.Push(ctx, fragment); perr != nil {
			return fmt.Errorf("%w: %v", llm.ErrSinkClosed, perr)
		}
		return nil
	}
	err = gen.Generate(ctx, prompt, params, sink)
}

// Done is closed when the generation goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Join waits up to timeout for the worker to exit and reports whether it did.
func (w *Worker) Join(timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-w.done:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-w.done:
		return true
	case <-t.C:
		return false
	}
}
