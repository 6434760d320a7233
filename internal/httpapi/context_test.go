package httpapi

import (
	"context"
	"testing"
	"time"
)

type ctxKey struct{}

func TestSetBaseContext_NilResetsToBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	SetBaseContext(ctx)
	// nolint:staticcheck // SA1012: nil is the documented reset
	SetBaseContext(nil)
	if serverBaseCtx != context.Background() {
		t.Fatalf("expected Background after nil reset")
	}
}

func TestJoinContexts_CancelsWhenEitherDone(t *testing.T) {
	for _, first := range []string{"a", "b"} {
		a, ac := context.WithCancel(context.Background())
		b, bc := context.WithCancel(context.Background())
		j, cancelJ := joinContexts(a, b)
		if first == "a" {
			ac()
		} else {
			bc()
		}
		select {
		case <-j.Done():
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("joined context did not cancel when %s was canceled", first)
		}
		cancelJ()
		ac()
		bc()
	}
}

func TestJoinContexts_KeepsRequestValues(t *testing.T) {
	b := context.WithValue(context.Background(), ctxKey{}, "v")
	j, cancel := joinContexts(context.Background(), b)
	defer cancel()
	if j.Value(ctxKey{}) != "v" {
		t.Fatalf("request values lost")
	}
	cancel()
	if j.Err() == nil {
		t.Fatalf("cancel func did not cancel joined context")
	}
}
