package fanout

import "github.com/digitallysavvy/chatfanout/pkg/chatmodel"

// Request is the input to a single call to Engine.Stream: the selection set
// plus everything a worker needs to resolve and issue its own upstream
// request (spec §4.4).
type Request struct {
	Selection chatmodel.Selection
	Messages  []chatmodel.ChatMessage
	Params    chatmodel.GenerationParams

	// GatewayToken is supplied per request rather than read from process
	// config, since some chat surfaces collect it interactively (spec §4.3
	// step 4, §4.4 step 2 auth header).
	GatewayToken string

	// SelfHostedURLs and GatewayURL feed the resolver the same way
	// cmd/*-server's config.Config does.
	SelfHostedURLs map[string]string
	GatewayURL     string

	// RequestID correlates every worker span and log line for this call.
	// Left empty, the engine runs without a root span or request-scoped log
	// prefix; the HTTP layer always supplies one (spec §6 supplemented
	// feature: request correlation ID).
	RequestID string
}

// chatRequestBody is the JSON body every worker POSTs upstream (spec §4.4
// step 2). Field order and names follow the OpenAI-compatible wire format
// both transport classes accept.
type chatRequestBody struct {
	Model       string                  `json:"model"`
	Messages    []chatmodel.ChatMessage `json:"messages"`
	Temperature float64                 `json:"temperature"`
	MaxTokens   int                     `json:"max_tokens"`
	TopP        float64                 `json:"top_p"`
	Stream      bool                    `json:"stream"`
}

func buildRequestBody(modelID string, messages []chatmodel.ChatMessage, params chatmodel.GenerationParams) chatRequestBody {
	p := params.WithDefaults()
	return chatRequestBody{
		Model:       modelID,
		Messages:    messages,
		Temperature: *p.Temperature,
		MaxTokens:   *p.MaxTokens,
		TopP:        *p.TopP,
		Stream:      true,
	}
}
