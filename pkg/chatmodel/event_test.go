package chatmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventConstructors(t *testing.T) {
	start := StartEvent("m")
	assert.Equal(t, EventStart, start.Type)
	assert.Equal(t, "m", start.ModelID)

	token := TokenEvent("m", "hi")
	assert.Equal(t, EventToken, token.Type)
	assert.Equal(t, "hi", token.Content)

	done := DoneEvent("m")
	assert.Equal(t, EventDone, done.Type)

	errEv := ErrorEvent("m", "boom", "some-code")
	assert.Equal(t, EventError, errEv.Type)
	assert.Equal(t, "some-code", errEv.Code)
	assert.Equal(t, "boom", errEv.Content)
}

func TestEndpointDescriptor_URL(t *testing.T) {
	d := EndpointDescriptor{BaseURL: "http://host:1234", PathSuffix: "/v1/chat/completions"}
	assert.Equal(t, "http://host:1234/v1/chat/completions", d.URL())

	d2 := EndpointDescriptor{BaseURL: "https://gateway.example"}
	assert.Equal(t, "https://gateway.example", d2.URL())
}
