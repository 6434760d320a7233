package sse

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_WireFormat(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
		want string
	}{
		{"data", Data("hello"), "data: hello\n\n"},
		{"empty data", Data(""), "data: \n\n"},
		{"multiline", Data("a\nb"), "data: a\ndata: b\n\n"},
		{"crlf", Data("a\r\nb"), "data: a\ndata: b\n\n"},
		{"bare cr", Data("a\rb"), "data: a\ndata: b\n\n"},
		{"trailing cr", Data("foo\r"), "data: foo\ndata: \n\n"},
		{"end", End(), "event: end\ndata: {}\n\n"},
		{"error", Error("No message provided"), "event: error\ndata: {\"error\": \"No message provided\"}\n\n"},
		{"error escaping", Error("bad \"quote\"\nnext"), "event: error\ndata: {\"error\": \"bad \\\"quote\\\"\\nnext\"}\n\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, string(Encode(c.ev)))
		})
	}
}

func TestAppend_Accumulates(t *testing.T) {
	var b []byte
	b = Append(b, Data("x"))
	b = Append(b, End())
	assert.Equal(t, "data: x\n\nevent: end\ndata: {}\n\n", string(b))
}

func TestTerminal(t *testing.T) {
	assert.False(t, Data("x").Terminal())
	assert.True(t, End().Terminal())
	assert.True(t, Error("x").Terminal())
}

func TestReader_RoundTripsEncodedEvents(t *testing.T) {
	in := []Event{Data("Hel"), Data("lo\nworld"), Data(""), Error(`oops "x"`)}
	var buf bytes.Buffer
	for _, ev := range in {
		buf.Write(Encode(ev))
	}
	got, err := ReadAll(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestReader_EndAndEOF(t *testing.T) {
	rd := NewReader(strings.NewReader("data: a\n\nevent: end\ndata: {}\n\n"))
	ev, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, Data("a"), ev)
	ev, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, End(), ev)
	_, err = rd.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReader_TruncatedEvent(t *testing.T) {
	_, err := ReadAll(strings.NewReader("data: a\n\ndata: partial"))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReader_BadErrorPayload(t *testing.T) {
	_, err := ReadAll(strings.NewReader("event: error\ndata: not-json\n\n"))
	assert.Error(t, err)
}

func TestEncode_NeverEmitsCarriageReturn(t *testing.T) {
	for _, frag := range []string{"a\rb", "foo\r", "\r", "a\r\nb", "x\r\r\ny"} {
		wire := Encode(Data(frag))
		assert.NotContains(t, string(wire), "\r", "fragment %q", frag)
	}
}

// Fragments come back with their line endings normalized to LF.
func TestReader_RoundTripsCarriageReturns(t *testing.T) {
	cases := map[string]string{
		"a\rb":     "a\nb",
		"foo\r":    "foo\n",
		"a\r\nb":   "a\nb",
		"\r\r":     "\n\n",
		"x\r\r\ny": "x\n\ny",
	}
	for frag, want := range cases {
		got, err := ReadAll(bytes.NewReader(Encode(Data(frag))))
		require.NoError(t, err, "fragment %q", frag)
		require.Len(t, got, 1, "fragment %q", frag)
		assert.Equal(t, want, got[0].Text, "fragment %q", frag)
	}
}

func TestReader_AcceptsAllLineTerminators(t *testing.T) {
	in := "data: a\r\r" + "data: b\r\n\r\n" + "event: end\ndata: {}\n\n"
	got, err := ReadAll(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Event{Data("a"), Data("b"), End()}, got)
}

func TestScanLines_SplitCRLFAcrossReads(t *testing.T) {
	adv, tok, err := scanLines([]byte("data: a\r"), false)
	require.NoError(t, err)
	assert.Zero(t, adv, "must wait for a possible LF")
	assert.Nil(t, tok)

	adv, tok, err = scanLines([]byte("data: a\r\n"), false)
	require.NoError(t, err)
	assert.Equal(t, 9, adv)
	assert.Equal(t, "data: a", string(tok))
}
