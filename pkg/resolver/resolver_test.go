package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/digitallysavvy/chatfanout/pkg/chaterrors"
	"github.com/digitallysavvy/chatfanout/pkg/registry"
)

func newTestRegistry(t *testing.T, models string) *registry.Registry {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(models))
	}))
	t.Cleanup(srv.Close)

	reg := registry.New(srv.URL, "")
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestResolve_SelfHosted(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, mustMarshal(t, map[string]interface{}{
		"models": []map[string]interface{}{{"id": "qwen3-4b", "type": "self-hosted"}},
	}))

	desc, err := Resolve(reg, "qwen3-4b", Options{
		SelfHostedURLs: map[string]string{"qwen3-4b": "http://localhost:8001"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.URL() != "http://localhost:8001/v1/chat/completions" {
		t.Errorf("unexpected URL: %s", desc.URL())
	}
	if desc.AuthHeader != "" {
		t.Errorf("expected no auth header for self-hosted, got %q", desc.AuthHeader)
	}
}

func TestResolve_SelfHostedMissingURL(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, mustMarshal(t, map[string]interface{}{
		"models": []map[string]interface{}{{"id": "qwen3-4b", "type": "self-hosted"}},
	}))

	_, err := Resolve(reg, "qwen3-4b", Options{SelfHostedURLs: map[string]string{}})
	if !errors.Is(err, chaterrors.ErrEndpointNotConfigured) {
		t.Fatalf("expected ErrEndpointNotConfigured, got %v", err)
	}
}

func TestResolve_NotFound(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, mustMarshal(t, map[string]interface{}{
		"models": []map[string]interface{}{{"id": "qwen3-4b", "type": "self-hosted"}},
	}))

	_, err := Resolve(reg, "does-not-exist", Options{})
	if !errors.Is(err, chaterrors.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestResolve_GatewayWithToken(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, mustMarshal(t, map[string]interface{}{
		"models": []map[string]interface{}{{"id": "gpt-4o", "type": "github"}},
	}))

	desc, err := Resolve(reg, "gpt-4o", Options{
		GatewayURL:   "https://gateway.example/v1/chat/completions",
		GatewayToken: "tok_abc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.AuthHeader != "Bearer tok_abc" {
		t.Errorf("unexpected auth header: %q", desc.AuthHeader)
	}
	if desc.ExtraHeader["X-GitHub-Api-Version"] != "2022-11-28" {
		t.Errorf("missing api version header: %+v", desc.ExtraHeader)
	}
	if desc.URL() != "https://gateway.example/v1/chat/completions" {
		t.Errorf("unexpected URL: %s", desc.URL())
	}
}

func TestResolve_GatewayNoTokenMultiModelFails(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, mustMarshal(t, map[string]interface{}{
		"models": []map[string]interface{}{{"id": "gpt-4o", "type": "github"}},
	}))

	_, err := Resolve(reg, "gpt-4o", Options{Singleton: false})
	if !errors.Is(err, chaterrors.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestResolve_GatewayNoTokenSingletonAllowed(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, mustMarshal(t, map[string]interface{}{
		"models": []map[string]interface{}{{"id": "gpt-4o", "type": "github"}},
	}))

	desc, err := Resolve(reg, "gpt-4o", Options{Singleton: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.AuthHeader != "" {
		t.Errorf("expected no auth header when token absent, got %q", desc.AuthHeader)
	}
}
