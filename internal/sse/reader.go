package sse

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// Reader decodes a text/event-stream produced by Append. It understands the
// subset of SSE this server emits: "event:" and "data:" fields, with blank
// lines separating events.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	sc.Split(scanLines)
	return &Reader{sc: sc}
}

// scanLines splits on CRLF, LF or a bare CR, the three SSE line terminators.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	i := bytes.IndexAny(data, "\r\n")
	switch {
	case i < 0:
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	case data[i] == '\n':
		return i + 1, data[:i], nil
	case i+1 < len(data):
		if data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}
		return i + 1, data[:i], nil
	case atEOF:
		return i + 1, data[:i], nil
	default:
		// CR at the end of the buffer; an LF may follow
		return 0, nil, nil
	}
}

// Next returns the next complete event, or io.EOF once the stream is exhausted.
// A trailing event without its blank-line terminator is reported as
// io.ErrUnexpectedEOF.
func (r *Reader) Next() (Event, error) {
	var (
		name    string
		data    []string
		pending bool
	)
	for r.sc.Scan() {
		line := r.sc.Text()
		if line == "" {
			if !pending {
				continue
			}
			return build(name, data)
		}
		pending = true
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		}
	}
	if err := r.sc.Err(); err != nil {
		return Event{}, err
	}
	if pending {
		return Event{}, io.ErrUnexpectedEOF
	}
	return Event{}, io.EOF
}

// ReadAll drains r and returns every complete event.
func ReadAll(r io.Reader) ([]Event, error) {
	var out []Event
	rd := NewReader(r)
	for {
		ev, err := rd.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
}

func build(name string, data []string) (Event, error) {
	joined := strings.Join(data, "\n")
	switch name {
	case "end":
		return End(), nil
	case "error":
		msg, err := DecodeError(joined)
		if err != nil {
			return Event{}, err
		}
		return Error(msg), nil
	default:
		return Data(joined), nil
	}
}
