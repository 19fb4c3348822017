package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dusk-indust/vlab/internal/project"
)

// SSEWriter writes Server-Sent Events to an http.ResponseWriter.
// Headers are sent with the first message.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewSSEWriter creates a new SSEWriter wrapping the given ResponseWriter.
// The ResponseWriter must implement http.Flusher for streaming to work;
// if it does not, writes will still succeed but may be buffered.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	f, _ := w.(http.Flusher)
	return &SSEWriter{
		w:       w,
		flusher: f,
	}
}

// Started reports whether any message has been written.
func (sw *SSEWriter) Started() bool {
	return sw.started
}

func (sw *SSEWriter) init() {
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	sw.w.WriteHeader(http.StatusOK)
	sw.started = true
}

// WriteMessage serializes msg as JSON and writes it in SSE format:
//
//	data: {json}\n\n
//
// After writing, the underlying connection is flushed so the client receives
// the message immediately.
func (sw *SSEWriter) WriteMessage(msg project.StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("sse: marshal message: %w", err)
	}
	if !sw.started {
		sw.init()
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("sse: write message: %w", err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// StreamFrame is one message read from an SSE stream. Err is set when the
// frame's payload could not be decoded.
type StreamFrame struct {
	project.StreamMessage
	Err error
}

// ReadStream reads SSE messages from body and delivers them on the returned
// channel. The channel is closed when the body is exhausted, an unrecoverable
// read error occurs, or ctx is cancelled. The body is closed when reading
// finishes.
//
// Lines prefixed with "data:" carry the payload; several data lines in one
// event are joined with newlines. Comment lines and other fields are ignored
// and an empty line ends the event.
func ReadStream(ctx context.Context, body io.ReadCloser) <-chan StreamFrame {
	ch := make(chan StreamFrame)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		var dataBuf strings.Builder

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if !scanner.Scan() {
				if dataBuf.Len() > 0 {
					emitFrame(ctx, ch, dataBuf.String())
				}
				return
			}

			line := scanner.Text()
			switch {
			case line == "":
				if dataBuf.Len() > 0 {
					emitFrame(ctx, ch, dataBuf.String())
					dataBuf.Reset()
				}
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "data:"):
				payload := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
				if dataBuf.Len() > 0 {
					dataBuf.WriteByte('\n')
				}
				dataBuf.WriteString(payload)
			}
		}
	}()
	return ch
}

func emitFrame(ctx context.Context, ch chan<- StreamFrame, raw string) {
	var f StreamFrame
	if err := json.Unmarshal([]byte(raw), &f.StreamMessage); err != nil {
		f = StreamFrame{Err: fmt.Errorf("sse: unmarshal message: %w", err)}
	}
	select {
	case ch <- f:
	case <-ctx.Done():
	}
}
