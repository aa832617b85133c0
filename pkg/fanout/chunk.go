package fanout

import "encoding/json"

// deltaChunk mirrors the subset of an OpenAI-compatible streamed chat
// completion chunk the engine cares about (spec §6): a possibly-empty
// content delta at choices[0].delta.content. Everything else (role
// announcements, usage, finish_reason) is left unparsed and ignored.
type deltaChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// extractContent parses raw as a deltaChunk and returns its content delta.
// ok is false when raw fails to decode, has no choices, or carries an empty
// delta — all three cases are silently skipped by the caller per spec §4.4
// step 6, never treated as a stream-terminating failure.
func extractContent(raw string) (content string, ok bool) {
	var chunk deltaChunk
	if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 {
		return "", false
	}
	content = chunk.Choices[0].Delta.Content
	if content == "" {
		return "", false
	}
	return content, true
}
