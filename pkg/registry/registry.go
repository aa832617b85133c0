// Package registry implements the model registry of spec §4.1: the single
// source of truth for known models, their metadata, and their current
// availability. It follows the teacher's pkg/registry global-registry shape
// (an RWMutex-guarded map behind a small accessor surface) but replaces the
// provider-constructor registry with the discovery-document loader, the
// fetch-generation counter, and the availability-changed signal spec §4.1
// and §4.2 require.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/digitallysavvy/chatfanout/pkg/chatmodel"
	"github.com/digitallysavvy/chatfanout/pkg/chaterrors"
	"github.com/digitallysavvy/chatfanout/pkg/internal/retry"
)

const (
	fetchAttemptTimeout = 8 * time.Second

	// The retry* constants below feed Load's retry.Config per spec §4.1 and
	// testable property 5 (§8): 7 delays across 8 total attempts, 800ms
	// initial, 1.4x growth, 3000ms cap, no jitter.
	retryMaxRetries   = 7
	retryInitialDelay = 800 * time.Millisecond
	retryMaxDelay     = 3000 * time.Millisecond
	retryMultiplier   = 1.4
)

// discoveryModel mirrors one entry of the discovery document's "models"
// array (spec §6). Unknown fields are tolerated by encoding/json's default
// "ignore what you don't recognize" behavior.
type discoveryModel struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Priority      *int   `json:"priority"`
	ContextLength *int   `json:"context_length"`
	Default       bool   `json:"default"`
}

type discoveryDocument struct {
	Models []discoveryModel `json:"models"`
}

// AvailabilityChange is delivered to an optional observer whenever
// UpdateAvailability changes a record's tri-state value. It is a pull
// signal in the sense that the registry never acts on it itself (spec
// §4.2 "this is a pull observation") — the fan-out host decides whether
// to deselect M from any active selection set.
type AvailabilityChange struct {
	ModelID      string
	Availability chatmodel.Availability
}

// Registry is the long-lived, process-wide store of known models.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*chatmodel.Model
	order  []string

	generation atomic.Int64
	loaded     atomic.Bool

	discoveryURL       string
	staticFallbackPath string
	httpClient         *http.Client

	changedMu sync.RWMutex
	onChanged func(AvailabilityChange)

	logMu  sync.RWMutex
	logger *log.Logger
}

// New constructs an empty Registry. Call Load before serving traffic.
func New(discoveryURL, staticFallbackPath string) *Registry {
	return &Registry{
		models:             make(map[string]*chatmodel.Model),
		discoveryURL:       discoveryURL,
		staticFallbackPath: staticFallbackPath,
		httpClient:         &http.Client{},
	}
}

// OnAvailabilityChanged registers the single observer notified by
// UpdateAvailability. Registering a new observer replaces the previous one;
// the core has exactly one fan-out host per process.
func (r *Registry) OnAvailabilityChanged(fn func(AvailabilityChange)) {
	r.changedMu.Lock()
	defer r.changedMu.Unlock()
	r.onChanged = fn
}

func (r *Registry) notifyChanged(change AvailabilityChange) {
	r.changedMu.RLock()
	fn := r.onChanged
	r.changedMu.RUnlock()
	if fn != nil {
		fn(change)
	}
}

// SetLogger installs a logger for state-transition messages (load retries
// exhausted, availability flips). A nil logger, the default, silences them.
func (r *Registry) SetLogger(l *log.Logger) {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	r.logger = l
}

func (r *Registry) logf(format string, args ...interface{}) {
	r.logMu.RLock()
	l := r.logger
	r.logMu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Loaded reports whether at least one Load call has ever succeeded. Used by
// the HTTP layer's liveness check (spec §3's "Lifecycle").
func (r *Registry) Loaded() bool {
	return r.loaded.Load()
}

// Load fetches the discovery document, retrying with bounded exponential
// backoff, and falls back to a static file on exhaustion. A successful load
// fully replaces the prior registry contents; a failed load leaves any
// previously loaded registry untouched (spec §4.1 "Failure model").
func (r *Registry) Load(ctx context.Context) error {
	gen := r.generation.Add(1)

	cfg := retry.Config{
		MaxRetries:   retryMaxRetries,
		InitialDelay: retryInitialDelay,
		MaxDelay:     retryMaxDelay,
		Multiplier:   retryMultiplier,
		Jitter:       false,
	}

	var doc *discoveryDocument
	retryErr := retry.Do(ctx, cfg, func(attemptCtx context.Context) error {
		d, err := r.fetchDiscovery(attemptCtx)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})

	if retryErr == nil && doc != nil {
		r.apply(gen, doc)
		return nil
	}

	r.logf("discovery load retries exhausted, falling back to static file: %v", retryErr)

	fallbackDoc, fbErr := r.readStaticFallback()
	if fbErr != nil || fallbackDoc == nil || len(fallbackDoc.Models) == 0 {
		r.logf("static fallback unavailable: %v", fbErr)
		return chaterrors.ErrRegistryUnavailable
	}
	r.apply(gen, fallbackDoc)
	return nil
}

// fetchDiscovery performs one attempt: GET discoveryURL with an 8s timeout,
// treating a non-2xx status, an empty body, or an empty models array as
// retriable per spec §6.
func (r *Registry) fetchDiscovery(ctx context.Context) (*discoveryDocument, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, fetchAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, r.discoveryURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("discovery fetch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("discovery fetch: empty body")
	}

	var doc discoveryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if len(doc.Models) == 0 {
		return nil, fmt.Errorf("discovery fetch: empty models list")
	}
	return &doc, nil
}

// readStaticFallback reads the discovery document from local disk. Used
// only after every remote fetch attempt has been exhausted.
func (r *Registry) readStaticFallback() (*discoveryDocument, error) {
	body, err := os.ReadFile(r.staticFallbackPath)
	if err != nil {
		return nil, err
	}
	var doc discoveryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// apply replaces the registry contents with doc, unless a newer Load has
// already advanced the generation counter past gen (spec §4.1 concurrency
// contract: "discards responses whose generation is not current").
func (r *Registry) apply(gen int64, doc *discoveryDocument) {
	models := make(map[string]*chatmodel.Model, len(doc.Models))
	order := make([]string, 0, len(doc.Models))
	for _, dm := range doc.Models {
		if dm.ID == "" {
			continue
		}
		class := chatmodel.NormalizeClass(dm.Type)
		initial := chatmodel.AvailabilityUnknown
		if class == chatmodel.ClassGateway {
			initial = chatmodel.AvailabilityOnline
		}
		models[dm.ID] = chatmodel.NewModel(dm.ID, dm.Name, class, dm.Priority, dm.ContextLength, dm.Default, initial)
		order = append(order, dm.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation.Load() != gen {
		return
	}
	r.models = models
	r.order = order
	r.loaded.Store(true)
}

// ListFilter narrows List's result by class and/or availability. A nil
// pointer field means "no constraint on this dimension."
type ListFilter struct {
	Class        *chatmodel.TransportClass
	Availability *chatmodel.Availability
}

// List returns snapshots of every record matching filter, in discovery
// order.
func (r *Registry) List(filter ListFilter) []chatmodel.ModelView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]chatmodel.ModelView, 0, len(r.order))
	for _, id := range r.order {
		m, ok := r.models[id]
		if !ok {
			continue
		}
		if filter.Class != nil && m.Class != *filter.Class {
			continue
		}
		view := m.Snapshot()
		if filter.Availability != nil && view.Availability != *filter.Availability {
			continue
		}
		out = append(out, view)
	}
	return out
}

// Resolve returns the live record for id, or ok=false if unknown.
func (r *Registry) Resolve(id string) (*chatmodel.Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	return m, ok
}

// UpdateAvailability sets id's availability and, if it actually changed,
// notifies the registered observer. Idempotent: setting the same value
// twice notifies only once.
func (r *Registry) UpdateAvailability(id string, availability chatmodel.Availability) error {
	r.mu.RLock()
	m, ok := r.models[id]
	r.mu.RUnlock()
	if !ok {
		return chaterrors.ErrModelNotFound
	}

	prev := m.Availability()
	m.SetAvailability(availability)
	if m.Availability() != prev {
		r.logf("model %s availability %s -> %s", id, prev, m.Availability())
		r.notifyChanged(AvailabilityChange{ModelID: id, Availability: m.Availability()})
	}
	return nil
}

// ResolveDefault picks a preferred model per spec §4.1's order: explicit
// default, else first gateway record, else first record overall.
func (r *Registry) ResolveDefault() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var firstGateway string
	var firstAny string
	for _, id := range r.order {
		m, ok := r.models[id]
		if !ok {
			continue
		}
		if firstAny == "" {
			firstAny = id
		}
		if m.Default {
			return id, true
		}
		if firstGateway == "" && m.Class == chatmodel.ClassGateway {
			firstGateway = id
		}
	}
	if firstGateway != "" {
		return firstGateway, true
	}
	if firstAny != "" {
		return firstAny, true
	}
	return "", false
}

// SelfHostedIDs returns the identifiers of every self-hosted record, for
// the health prober's per-cycle fan-out.
func (r *Registry) SelfHostedIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if m, ok := r.models[id]; ok && m.Class == chatmodel.ClassSelfHosted {
			out = append(out, id)
		}
	}
	return out
}
