// Package resolver implements the endpoint resolver of spec §4.3: a pure
// function from (identifier, registry snapshot, caller configuration) to an
// EndpointDescriptor. It performs no I/O, caches nothing, and mutates
// nothing — grounded on the teacher's pkg/providers/gateway.Provider, which
// builds its Bearer header and API-version header the same way but as part
// of a stateful provider constructor rather than a standalone function.
package resolver

import (
	"github.com/digitallysavvy/chatfanout/pkg/chatmodel"
	"github.com/digitallysavvy/chatfanout/pkg/chaterrors"
	"github.com/digitallysavvy/chatfanout/pkg/registry"
)

// gatewayAPIVersion is the required header value for gateway-class
// requests (spec §4.3 step 3).
const gatewayAPIVersion = "2022-11-28"

const selfHostedPathSuffix = "/v1/chat/completions"

// Options carries the caller-provided configuration inputs the resolution
// algorithm needs beyond the registry itself.
type Options struct {
	// SelfHostedURLs maps a model identifier to its configured base URL.
	SelfHostedURLs map[string]string

	// GatewayURL is the single endpoint used for every gateway model.
	GatewayURL string

	// GatewayToken is the bearer credential, or empty if unconfigured.
	GatewayToken string

	// Singleton marks a caller that selected exactly one model, which
	// exempts a tokenless gateway request from auth-required (spec §4.4).
	Singleton bool
}

// Resolve runs the algorithm of spec §4.3 against reg's current state.
func Resolve(reg *registry.Registry, id string, opts Options) (chatmodel.EndpointDescriptor, error) {
	m, ok := reg.Resolve(id)
	if !ok {
		return chatmodel.EndpointDescriptor{}, chaterrors.ErrModelNotFound
	}

	switch m.Class {
	case chatmodel.ClassSelfHosted:
		base, ok := opts.SelfHostedURLs[id]
		if !ok {
			return chatmodel.EndpointDescriptor{}, chaterrors.ErrEndpointNotConfigured
		}
		return chatmodel.EndpointDescriptor{
			BaseURL:    base,
			PathSuffix: selfHostedPathSuffix,
			Class:      chatmodel.ClassSelfHosted,
		}, nil

	case chatmodel.ClassGateway:
		if opts.GatewayToken == "" && !opts.Singleton {
			return chatmodel.EndpointDescriptor{}, chaterrors.ErrAuthRequired
		}
		desc := chatmodel.EndpointDescriptor{
			BaseURL:     opts.GatewayURL,
			PathSuffix:  "",
			Class:       chatmodel.ClassGateway,
			ExtraHeader: map[string]string{"X-GitHub-Api-Version": gatewayAPIVersion},
		}
		if opts.GatewayToken != "" {
			desc.AuthHeader = "Bearer " + opts.GatewayToken
		}
		return desc, nil

	default:
		return chatmodel.EndpointDescriptor{}, chaterrors.ErrModelNotFound
	}
}
