// Package health implements the health prober of spec §4.2: a ticker-based
// loop that refreshes the availability of every self-hosted model on a
// fixed cycle. The ticker/select shape is adapted from the teacher's
// pkg/internal/polling.PollForCompletion, narrowed from a generic
// poll-until-complete helper to a fire-and-forget recurring cycle with a
// single in-flight guard instead of a terminal status.
package health

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/digitallysavvy/chatfanout/pkg/chatmodel"
	"github.com/digitallysavvy/chatfanout/pkg/registry"
)

const (
	graceDelay    = 2 * time.Second
	probeInterval = 30 * time.Second
	probeTimeout  = 3 * time.Second
)

type statusResponse struct {
	Status string `json:"status"`
}

// Prober periodically refreshes registry availability for self-hosted
// models. Gateway models are never probed (spec §4.2).
type Prober struct {
	reg            *registry.Registry
	selfHostedURLs map[string]string
	client         *http.Client

	mu       sync.Mutex
	inFlight bool

	logMu  sync.RWMutex
	logger *log.Logger
}

// SetLogger installs a logger for operational messages (prober stop).
// A nil logger, the default, silences them.
func (p *Prober) SetLogger(l *log.Logger) {
	p.logMu.Lock()
	defer p.logMu.Unlock()
	p.logger = l
}

func (p *Prober) logf(format string, args ...interface{}) {
	p.logMu.RLock()
	l := p.logger
	p.logMu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// New constructs a Prober. selfHostedURLs is the same id→base-URL map the
// resolver uses; each self-hosted server is expected to answer its own
// status endpoint.
func New(reg *registry.Registry, selfHostedURLs map[string]string) *Prober {
	return &Prober{
		reg:            reg,
		selfHostedURLs: selfHostedURLs,
		client:         &http.Client{Timeout: probeTimeout},
	}
}

// Run blocks until ctx is done. It waits out the initial grace delay, runs
// one probe cycle, then runs one cycle per tick of a 30s ticker. On
// cancellation the ticker is stopped and any probe already in flight is
// abandoned rather than awaited.
func (p *Prober) Run(ctx context.Context) {
	graceTimer := time.NewTimer(graceDelay)
	defer graceTimer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-graceTimer.C:
	}

	p.runCycle(ctx)

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logf("health: prober stopping, context done")
			return
		case <-ticker.C:
			p.runCycle(ctx)
		}
	}
}

// runCycle probes every self-hosted model concurrently. If a previous
// cycle is still running, this call is a no-op — a single in-flight cycle
// must never overlap itself, though probes of distinct models within one
// cycle run in parallel.
func (p *Prober) runCycle(ctx context.Context) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	ids := p.reg.SelfHostedIDs()
	var wg sync.WaitGroup
	wg.Add(len(ids))
	for _, id := range ids {
		go func(id string) {
			defer wg.Done()
			p.probeOne(ctx, id)
		}(id)
	}
	wg.Wait()
}

// probeOne issues the per-model status GET and records the outcome.
// Any failure mode — missing URL, transport error, non-2xx, malformed
// body — sets the model offline; only an explicit "online" status flips it
// online.
func (p *Prober) probeOne(ctx context.Context, id string) {
	base, ok := p.selfHostedURLs[id]
	if !ok {
		p.reg.UpdateAvailability(id, chatmodel.AvailabilityOffline)
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	url := base + "/api/models/" + id + "/status"
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		p.reg.UpdateAvailability(id, chatmodel.AvailabilityOffline)
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.reg.UpdateAvailability(id, chatmodel.AvailabilityOffline)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.reg.UpdateAvailability(id, chatmodel.AvailabilityOffline)
		return
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		p.reg.UpdateAvailability(id, chatmodel.AvailabilityOffline)
		return
	}

	if status.Status == "online" {
		p.reg.UpdateAvailability(id, chatmodel.AvailabilityOnline)
		return
	}
	p.reg.UpdateAvailability(id, chatmodel.AvailabilityOffline)
}
