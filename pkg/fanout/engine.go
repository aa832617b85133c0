// Package fanout implements the chat fan-out engine of spec §4.4: given a
// selection of model identifiers, it opens one concurrent upstream request
// per model, parses each model's server-sent-event stream, and multiplexes
// every worker's events into a single consumer-facing channel without
// head-of-line blocking. The per-worker goroutine-plus-channel shape is
// adapted from the teacher's pkg/ai.StreamText/processStream, narrowed from
// a single-model streaming helper into an N-worker fan-in, and its span
// instrumentation is grounded on the same file's use of pkg/telemetry.
package fanout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/digitallysavvy/chatfanout/pkg/chatmodel"
	"github.com/digitallysavvy/chatfanout/pkg/chaterrors"
	httpinternal "github.com/digitallysavvy/chatfanout/pkg/internal/http"
	"github.com/digitallysavvy/chatfanout/pkg/registry"
	"github.com/digitallysavvy/chatfanout/pkg/resolver"
	"github.com/digitallysavvy/chatfanout/pkg/sse"
	"github.com/digitallysavvy/chatfanout/pkg/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// mergeBufferSize bounds how far a fast worker can run ahead of a slow
	// consumer before its send blocks (spec §4.4 "Backpressure").
	mergeBufferSize = 16

	// maxErrorBodySnippet caps how much of a non-2xx response body is kept
	// for the error event's message.
	maxErrorBodySnippet = 2048
)

// Engine runs the fan-out algorithm against a Registry.
type Engine struct {
	registry   *registry.Registry
	httpClient *http.Client
	telemetry  *telemetry.Settings

	logMu  sync.RWMutex
	logger *log.Logger
}

// New constructs an Engine. telemetrySettings may be nil, in which case
// spans are created against a no-op tracer.
func New(reg *registry.Registry, telemetrySettings *telemetry.Settings) *Engine {
	return &Engine{
		registry:   reg,
		httpClient: &http.Client{},
		telemetry:  telemetrySettings,
	}
}

// SetLogger installs a logger for per-worker failure messages, tagged with
// the request ID of the call that triggered them. A nil logger, the
// default, silences them.
func (e *Engine) SetLogger(l *log.Logger) {
	e.logMu.Lock()
	defer e.logMu.Unlock()
	e.logger = l
}

func (e *Engine) logf(format string, args ...interface{}) {
	e.logMu.RLock()
	l := e.logger
	e.logMu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Stream runs one worker per selected model and returns the unified,
// lazily-consumed event channel. The channel is closed once every worker
// has terminated; it is also safe to stop reading early and let ctx
// cancellation reclaim the workers.
func (e *Engine) Stream(ctx context.Context, req Request) <-chan chatmodel.Event {
	var rootSpan trace.Span
	if req.RequestID != "" {
		tracer := telemetry.GetTracer(e.telemetry)
		ctx, rootSpan = tracer.Start(ctx, "fanout.request", trace.WithAttributes(
			attribute.String("chatfanout.request.id", req.RequestID),
		))
	}
	endSpan := func() {
		if rootSpan != nil {
			rootSpan.End()
		}
	}

	ids := req.Selection.IDs()
	out := make(chan chatmodel.Event, mergeBufferSize)

	if len(ids) == 0 {
		go func() {
			defer close(out)
			defer endSpan()
			emit(ctx, out, chatmodel.ErrorEvent("", "no models selected", "no-models-selected"))
		}()
		return out
	}

	// Singleton shortcut (spec §4.4): semantically identical to the general
	// path, just without the WaitGroup bookkeeping a single worker doesn't
	// need.
	if len(ids) == 1 {
		go func() {
			defer close(out)
			defer endSpan()
			e.runWorker(ctx, ids[0], req, true, out)
		}()
		return out
	}

	var wg sync.WaitGroup
	wg.Add(len(ids))
	for _, id := range ids {
		go func(id string) {
			defer wg.Done()
			e.runWorker(ctx, id, req, false, out)
		}(id)
	}
	go func() {
		wg.Wait()
		close(out)
		endSpan()
	}()
	return out
}

// emit sends ev on out, but yields to ctx cancellation instead of blocking
// forever against a consumer that has stopped pulling. Returns false if the
// event was dropped due to cancellation.
func emit(ctx context.Context, out chan<- chatmodel.Event, ev chatmodel.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// runWorker implements the per-model worker of spec §4.4, steps 1-9.
func (e *Engine) runWorker(ctx context.Context, id string, req Request, singleton bool, out chan<- chatmodel.Event) {
	attrs := []attribute.KeyValue{attribute.String("chatfanout.model.id", id)}
	if req.RequestID != "" {
		attrs = append(attrs, attribute.String("chatfanout.request.id", req.RequestID))
	}

	tracer := telemetry.GetTracer(e.telemetry)
	ctx, span := tracer.Start(ctx, "fanout.worker", trace.WithAttributes(attrs...))
	defer span.End()

	endpoint, err := resolver.Resolve(e.registry, id, resolver.Options{
		SelfHostedURLs: req.SelfHostedURLs,
		GatewayURL:     req.GatewayURL,
		GatewayToken:   req.GatewayToken,
		Singleton:      singleton,
	})
	if err != nil {
		telemetry.RecordErrorOnSpan(span, err)
		e.logf("request %s model %s: resolve failed: %v", req.RequestID, id, err)
		content, code := classifyResolveError(err)
		emit(ctx, out, chatmodel.ErrorEvent(id, content, code))
		return
	}

	body := buildRequestBody(id, req.Messages, req.Params)
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		telemetry.RecordErrorOnSpan(span, err)
		emit(ctx, out, chatmodel.ErrorEvent(id, err.Error(), ""))
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL(), bytes.NewReader(bodyBytes))
	if err != nil {
		telemetry.RecordErrorOnSpan(span, err)
		emit(ctx, out, chatmodel.ErrorEvent(id, err.Error(), ""))
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", uuid.NewString())
	if endpoint.AuthHeader != "" {
		httpReq.Header.Set("Authorization", endpoint.AuthHeader)
	}
	for k, v := range endpoint.ExtraHeader {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return // cancellation observed at a suspension point: silent exit
		}
		telemetry.RecordErrorOnSpan(span, err)
		transportErr := chaterrors.NewUpstreamTransportError(id, err)
		e.logf("request %s model %s: %v", req.RequestID, id, transportErr)
		emit(ctx, out, chatmodel.ErrorEvent(id, transportErr.Error(), "upstream-transport-error"))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := httpinternal.ReadBodySnippet(resp.Body, maxErrorBodySnippet)
		httpErr := chaterrors.NewUpstreamHTTPError(id, resp.StatusCode, snippet)
		telemetry.RecordErrorOnSpan(span, httpErr)
		e.logf("request %s model %s: %v", req.RequestID, id, httpErr)
		emit(ctx, out, chatmodel.ErrorEvent(id, httpErr.Error(), "upstream-http-error"))
		return
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		telemetry.RecordErrorOnSpan(span, chaterrors.ErrNoBody)
		emit(ctx, out, chatmodel.ErrorEvent(id, "No response body", "no-body"))
		return
	}

	if !emit(ctx, out, chatmodel.StartEvent(id)) {
		return
	}

	e.drainStream(ctx, id, resp.Body, out)
}

// drainStream runs the line-accumulating loop of spec §4.4 step 6 over an
// already-opened upstream body, emitting token/done/error as appropriate.
func (e *Engine) drainStream(ctx context.Context, id string, body io.Reader, out chan<- chatmodel.Event) {
	dec := sse.NewDecoder(body)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				emit(ctx, out, chatmodel.DoneEvent(id))
				return
			}
			if ctx.Err() != nil {
				return
			}
			transportErr := chaterrors.NewUpstreamTransportError(id, err)
			emit(ctx, out, chatmodel.ErrorEvent(id, transportErr.Error(), "upstream-transport-error"))
			return
		}

		switch line.Kind {
		case sse.KindDone:
			emit(ctx, out, chatmodel.DoneEvent(id))
			return
		case sse.KindData:
			content, ok := extractContent(line.Data)
			if !ok {
				continue
			}
			if !emit(ctx, out, chatmodel.TokenEvent(id, content)) {
				return
			}
		}
	}
}

// classifyResolveError maps a resolver failure to the human-readable
// content and machine-readable code of spec §7's error taxonomy.
func classifyResolveError(err error) (content, code string) {
	switch {
	case errors.Is(err, chaterrors.ErrModelNotFound):
		return "model not found", "model-not-found"
	case errors.Is(err, chaterrors.ErrEndpointNotConfigured):
		return "endpoint not configured for model", "endpoint-not-configured"
	case errors.Is(err, chaterrors.ErrAuthRequired):
		return "gateway token required", "auth-required"
	default:
		return fmt.Sprintf("resolve failed: %v", err), ""
	}
}
