// Package httpapi implements the exposed API of spec §6 as plain
// net/http handlers, so both cmd/chi-server and cmd/gin-server can mount
// the same request logic behind their own router and middleware stack —
// mirroring how the teacher keeps the framework-specific wiring in
// examples/*-server/main.go thin and pushes the actual work into pkg/.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/digitallysavvy/chatfanout/pkg/chatmodel"
	"github.com/digitallysavvy/chatfanout/pkg/config"
	"github.com/digitallysavvy/chatfanout/pkg/fanout"
	"github.com/digitallysavvy/chatfanout/pkg/registry"
	"github.com/digitallysavvy/chatfanout/pkg/sseout"
	"github.com/google/uuid"
)

// Server holds the dependencies every handler needs.
type Server struct {
	Registry *registry.Registry
	Engine   *fanout.Engine
	Config   config.Config
}

// New constructs a Server and wires a logging observer onto the registry's
// availability-changed signal, purely for operator visibility. Offline
// deselection does not use the signal: HandleStreamChat reads each model's
// current availability from the registry (spec §4.2 "pull observation").
func New(reg *registry.Registry, engine *fanout.Engine, cfg config.Config) *Server {
	s := &Server{Registry: reg, Engine: engine, Config: cfg}
	reg.OnAvailabilityChanged(func(c registry.AvailabilityChange) {
		log.Printf("model %s availability -> %s", c.ModelID, c.Availability)
	})
	return s
}

// HandleHealthz reports process liveness: 200 once the registry has
// completed its first load, 503 before that (spec §3's "Lifecycle" note
// that the registry is the only long-lived mutable entity).
func (s *Server) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.Registry.Loaded() {
		http.Error(w, "registry not yet loaded", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HandleModels serves the selection-helper shape of spec §6.
func (s *Server) HandleModels(w http.ResponseWriter, r *http.Request) {
	views := s.Registry.List(registry.ListFilter{})
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(chatmodel.ComputeSelectable(views)); err != nil {
		log.Printf("encode models response: %v", err)
	}
}

// HandleReload triggers an explicit operator re-fetch of the discovery
// document (spec §3 "Lifecycle": mutated by "an explicit re-fetch
// triggered by an operator").
func (s *Server) HandleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Registry.Load(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamChatRequest mirrors the body shape of spec §6's stream-chat entry
// point.
type streamChatRequest struct {
	Models       []string                `json:"models"`
	Messages     []chatmodel.ChatMessage `json:"messages"`
	MaxTokens    *int                    `json:"max_tokens"`
	Temperature  *float64                `json:"temperature"`
	TopP         *float64                `json:"top_p"`
	GatewayToken string                  `json:"gateway_token"`
}

// HandleStreamChat is the core entry point: it builds a selection from the
// request body, deselects anything the registry currently considers
// offline, and streams the fan-out engine's unified event sequence back as
// SSE. The request's own context supplies the cancellation handle — when
// the client disconnects, r.Context() is done and every worker unwinds.
func (s *Server) HandleStreamChat(w http.ResponseWriter, r *http.Request) {
	var req streamChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sel := chatmodel.DeselectOffline(chatmodel.NewSelection(req.Models...), func(id string) (chatmodel.ModelView, bool) {
		m, ok := s.Registry.Resolve(id)
		if !ok {
			return chatmodel.ModelView{}, false
		}
		return m.Snapshot(), true
	})

	gatewayToken := req.GatewayToken
	if gatewayToken == "" {
		gatewayToken = s.Config.GatewayToken
	}

	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)

	events := s.Engine.Stream(r.Context(), fanout.Request{
		Selection: sel,
		Messages:  req.Messages,
		Params: chatmodel.GenerationParams{
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
			TopP:        req.TopP,
		},
		GatewayToken:   gatewayToken,
		SelfHostedURLs: s.Config.SelfHostedURLs,
		GatewayURL:     s.Config.GatewayURL,
		RequestID:      requestID,
	})

	sw := sseout.NewWriter(w)
	for ev := range events {
		if err := sw.WriteEvent(ev); err != nil {
			return
		}
	}
	sw.WriteDone()
}
