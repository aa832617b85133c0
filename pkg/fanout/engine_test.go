package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/digitallysavvy/chatfanout/pkg/chatmodel"
	"github.com/digitallysavvy/chatfanout/pkg/registry"
)

func sseHandler(lines []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func newRegistryWithModels(t *testing.T, models []map[string]interface{}) *registry.Registry {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{"models": models})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	t.Cleanup(srv.Close)

	reg := registry.New(srv.URL, "")
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return reg
}

func collect(ctx context.Context, t *testing.T, ch <-chan chatmodel.Event) []chatmodel.Event {
	t.Helper()
	var events []chatmodel.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
}

// E1 — single self-hosted, clean stream.
func TestStream_SingleModelCleanStream(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(sseHandler([]string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: [DONE]`,
	}))
	defer upstream.Close()

	reg := newRegistryWithModels(t, []map[string]interface{}{{"id": "qwen3-4b", "type": "self-hosted"}})
	engine := New(reg, nil)

	events := collect(context.Background(), t, engine.Stream(context.Background(), Request{
		Selection:      chatmodel.NewSelection("qwen3-4b"),
		Messages:       []chatmodel.ChatMessage{{Role: chatmodel.RoleUser, Content: "hi"}},
		SelfHostedURLs: map[string]string{"qwen3-4b": upstream.URL},
	}))

	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}
	if events[0].Type != chatmodel.EventStart {
		t.Errorf("expected first event to be start, got %+v", events[0])
	}
	if events[1].Type != chatmodel.EventToken || events[1].Content != "Hel" {
		t.Errorf("unexpected token event: %+v", events[1])
	}
	if events[2].Type != chatmodel.EventToken || events[2].Content != "lo" {
		t.Errorf("unexpected token event: %+v", events[2])
	}
	if events[3].Type != chatmodel.EventDone {
		t.Errorf("expected last event to be done, got %+v", events[3])
	}
}

// E4 — malformed JSON line is skipped without terminating the stream.
func TestStream_MalformedLineSkipped(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(sseHandler([]string{
		`data: {not-json`,
		`data: {"choices":[{"delta":{"content":"x"}}]}`,
		`data: [DONE]`,
	}))
	defer upstream.Close()

	reg := newRegistryWithModels(t, []map[string]interface{}{{"id": "m", "type": "self-hosted"}})
	engine := New(reg, nil)

	events := collect(context.Background(), t, engine.Stream(context.Background(), Request{
		Selection:      chatmodel.NewSelection("m"),
		SelfHostedURLs: map[string]string{"m": upstream.URL},
	}))

	if len(events) != 3 {
		t.Fatalf("expected start/token/done, got %d: %+v", len(events), events)
	}
	if events[1].Content != "x" {
		t.Errorf("expected only the valid token to surface, got %+v", events[1])
	}
}

// E2 — two models, one fails with a non-2xx status mid-setup, the other
// streams cleanly. Both model lifecycles are independent.
func TestStream_OneModelFailsOtherSucceeds(t *testing.T) {
	t.Parallel()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("upstream overloaded"))
	}))
	defer failing.Close()

	ok := httptest.NewServer(sseHandler([]string{
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
	}))
	defer ok.Close()

	reg := newRegistryWithModels(t, []map[string]interface{}{
		{"id": "A", "type": "self-hosted"},
		{"id": "B", "type": "self-hosted"},
	})
	engine := New(reg, nil)

	events := collect(context.Background(), t, engine.Stream(context.Background(), Request{
		Selection: chatmodel.NewSelection("A", "B"),
		SelfHostedURLs: map[string]string{
			"A": failing.URL,
			"B": ok.URL,
		},
	}))

	var aErrors, bStarts, bTokens, bDones int
	for _, ev := range events {
		switch {
		case ev.ModelID == "A" && ev.Type == chatmodel.EventError:
			aErrors++
		case ev.ModelID == "B" && ev.Type == chatmodel.EventStart:
			bStarts++
		case ev.ModelID == "B" && ev.Type == chatmodel.EventToken && ev.Content == "ok":
			bTokens++
		case ev.ModelID == "B" && ev.Type == chatmodel.EventDone:
			bDones++
		}
	}
	if aErrors != 1 {
		t.Errorf("expected exactly 1 error for A, got %d", aErrors)
	}
	if bStarts != 1 || bTokens != 1 || bDones != 1 {
		t.Errorf("expected full clean lifecycle for B, got starts=%d tokens=%d dones=%d", bStarts, bTokens, bDones)
	}

	// No start should ever have been emitted for A: a resolution/transport
	// failure before the body is read never emits start (spec §4.4 step 1/3).
	for _, ev := range events {
		if ev.ModelID == "A" && ev.Type == chatmodel.EventStart {
			t.Fatal("A should never have emitted start")
		}
	}
}

// E6 — gateway gating: no token configured, multi-model selection.
func TestStream_GatewayGatingInMultiModel(t *testing.T) {
	t.Parallel()

	ok := httptest.NewServer(sseHandler([]string{
		`data: {"choices":[{"delta":{"content":"hi"}}]}`,
		`data: [DONE]`,
	}))
	defer ok.Close()

	reg := newRegistryWithModels(t, []map[string]interface{}{
		{"id": "gateway-model", "type": "github"},
		{"id": "self-hosted-model", "type": "self-hosted"},
	})
	engine := New(reg, nil)

	events := collect(context.Background(), t, engine.Stream(context.Background(), Request{
		Selection:      chatmodel.NewSelection("gateway-model", "self-hosted-model"),
		SelfHostedURLs: map[string]string{"self-hosted-model": ok.URL},
		// GatewayToken intentionally left empty.
	}))

	var gatewayErrors int
	var selfHostedDones int
	for _, ev := range events {
		if ev.ModelID == "gateway-model" {
			if ev.Type != chatmodel.EventError {
				t.Errorf("expected only an error event for gateway-model, got %+v", ev)
			}
			if ev.Code != "auth-required" {
				t.Errorf("expected auth-required code, got %q", ev.Code)
			}
			gatewayErrors++
		}
		if ev.ModelID == "self-hosted-model" && ev.Type == chatmodel.EventDone {
			selfHostedDones++
		}
	}
	if gatewayErrors != 1 {
		t.Errorf("expected exactly 1 error for gateway-model, got %d", gatewayErrors)
	}
	if selfHostedDones != 1 {
		t.Errorf("expected self-hosted-model to complete normally, got %d dones", selfHostedDones)
	}
}

// E3 — cancellation mid-stream yields no further events.
func TestStream_CancellationStopsEvents(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-block // hang until the test cancels the client context
	}))
	defer upstream.Close()
	defer close(block)

	reg := newRegistryWithModels(t, []map[string]interface{}{{"id": "m", "type": "self-hosted"}})
	engine := New(reg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch := engine.Stream(ctx, Request{
		Selection:      chatmodel.NewSelection("m"),
		SelfHostedURLs: map[string]string{"m": upstream.URL},
	})

	first := <-ch // start
	if first.Type != chatmodel.EventStart {
		t.Fatalf("expected start first, got %+v", first)
	}
	second := <-ch // the one buffered token
	if second.Type != chatmodel.EventToken {
		t.Fatalf("expected token second, got %+v", second)
	}

	cancel()

	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("expected no further events after cancellation, got %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close after cancellation")
	}
}

// Testable property 1: per-model FIFO shape (start, tokens in order, one
// terminal event).
func TestStream_PerModelFIFOShape(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(sseHandler([]string{
		`data: {"choices":[{"delta":{"content":"a"}}]}`,
		`data: {"choices":[{"delta":{"content":"b"}}]}`,
		`data: {"choices":[{"delta":{"content":"c"}}]}`,
		`data: [DONE]`,
	}))
	defer upstream.Close()

	reg := newRegistryWithModels(t, []map[string]interface{}{{"id": "m", "type": "self-hosted"}})
	engine := New(reg, nil)

	events := collect(context.Background(), t, engine.Stream(context.Background(), Request{
		Selection:      chatmodel.NewSelection("m"),
		SelfHostedURLs: map[string]string{"m": upstream.URL},
	}))

	if events[0].Type != chatmodel.EventStart {
		t.Fatalf("expected start first: %+v", events)
	}
	last := events[len(events)-1]
	if last.Type != chatmodel.EventDone && last.Type != chatmodel.EventError {
		t.Fatalf("expected terminal done/error last: %+v", last)
	}
	wantContents := []string{"a", "b", "c"}
	var gotContents []string
	for _, ev := range events[1 : len(events)-1] {
		if ev.Type != chatmodel.EventToken {
			t.Fatalf("expected only tokens between start and terminal: %+v", ev)
		}
		gotContents = append(gotContents, ev.Content)
	}
	if len(gotContents) != len(wantContents) {
		t.Fatalf("expected %v, got %v", wantContents, gotContents)
	}
	for i := range wantContents {
		if gotContents[i] != wantContents[i] {
			t.Fatalf("expected token order %v, got %v", wantContents, gotContents)
		}
	}
}

func TestStream_RequestIDLoggedOnFailure(t *testing.T) {
	t.Parallel()

	reg := newRegistryWithModels(t, []map[string]interface{}{{"id": "m", "type": "self-hosted"}})
	engine := New(reg, nil)

	var buf strings.Builder
	engine.SetLogger(log.New(&buf, "", 0))

	events := collect(context.Background(), t, engine.Stream(context.Background(), Request{
		Selection:      chatmodel.NewSelection("m"),
		SelfHostedURLs: map[string]string{}, // missing: triggers endpoint-not-configured
		RequestID:      "req-123",
	}))

	if len(events) != 1 || events[0].Type != chatmodel.EventError {
		t.Fatalf("expected a single error event, got %+v", events)
	}
	if !strings.Contains(buf.String(), "req-123") {
		t.Errorf("expected log line to contain the request id, got %q", buf.String())
	}
}

func TestStream_EmptySelectionEmitsSingleError(t *testing.T) {
	t.Parallel()

	reg := newRegistryWithModels(t, []map[string]interface{}{{"id": "m", "type": "self-hosted"}})
	engine := New(reg, nil)

	events := collect(context.Background(), t, engine.Stream(context.Background(), Request{
		Selection: chatmodel.NewSelection(),
	}))

	if len(events) != 1 || events[0].Type != chatmodel.EventError {
		t.Fatalf("expected a single error event, got %+v", events)
	}
}
