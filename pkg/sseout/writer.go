// Package sseout writes the fan-out engine's unified chatmodel.Event stream
// to an HTTP response as server-sent events for the browser to consume.
// Adapted from the teacher's pkg/providerutils/streaming.SSEWriter: that
// type serialized a generic {event, data, id, retry} record field-by-field
// into a buffer before a single underlying Write. This package keeps the
// same buffer-then-write shape but narrows the payload to one JSON-encoded
// chatmodel.Event per "data:" line, which is all the exposed stream-chat
// entry point (spec §6) needs to hand back.
package sseout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/digitallysavvy/chatfanout/pkg/chatmodel"
)

// Writer serializes chatmodel.Event values as SSE data lines onto an
// http.ResponseWriter, flushing after every event so the browser sees
// tokens as they arrive rather than buffered until the handler returns.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter sets the SSE response headers on w and returns a Writer bound
// to it. Callers still own calling WriteHeader indirectly via the first
// write; Go's net/http defaults to 200 on first Write.
func NewWriter(w http.ResponseWriter) *Writer {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// WriteEvent encodes ev as JSON and writes it as a single SSE data line.
func (s *Writer) WriteEvent(ev chatmodel.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("data: ")
	buf.Write(payload)
	buf.WriteString("\n\n")

	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// WriteDone writes the terminal "data: [DONE]" sentinel the same wire
// format uses on the upstream side, letting the browser use one decoder
// shape for both legs.
func (s *Writer) WriteDone() error {
	if _, err := s.w.Write([]byte("data: [DONE]\n\n")); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
