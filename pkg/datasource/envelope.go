// Package datasource exposes tweet search as a LAPPS Grid datasource:
// JSON envelopes in, JSON envelopes out, dispatched on the discriminator.
package datasource

import (
	"bytes"
	"encoding/json"
)

// Discriminator URIs of the LAPPS Grid vocabulary.
const (
	DiscriminatorGet   = "http://vocab.lappsgrid.org/ns/action/get"
	DiscriminatorError = "http://vocab.lappsgrid.org/ns/error"
	DiscriminatorLAPPS = "http://vocab.lappsgrid.org/ns/media/jsonld#lapps"
)

// ContainerContext is the JSON-LD context of a LIF container.
const ContainerContext = "http://vocab.lappsgrid.org/context-1.0.0.jsonld"

// Data is the request and response envelope.
type Data struct {
	Discriminator string                     `json:"discriminator"`
	Payload       json.RawMessage            `json:"payload,omitempty"`
	Parameters    map[string]json.RawMessage `json:"parameters,omitempty"`
}

// ParseData decodes an envelope.
func ParseData(input string) (*Data, error) {
	var d Data
	if err := json.Unmarshal([]byte(input), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Text is a LIF text value.
type Text struct {
	Value string `json:"@value"`
}

// Container is the LIF payload of a successful response.
type Container struct {
	Context  string         `json:"@context"`
	Metadata map[string]any `json:"metadata"`
	Text     Text           `json:"text"`
	Views    []any          `json:"views"`
}

// NewContainer wraps text in an empty LIF container.
func NewContainer(text string) Container {
	return Container{
		Context:  ContainerContext,
		Metadata: map[string]any{},
		Text:     Text{Value: text},
		Views:    []any{},
	}
}

func envelope(discriminator string, payload any) string {
	raw, err := marshal(payload, "")
	if err != nil {
		// Strings and containers always marshal
		raw = []byte(`""`)
	}
	out, _ := marshal(Data{Discriminator: discriminator, Payload: raw}, "  ")
	return string(out)
}

// marshal encodes v without HTML escaping, since payloads carry free text.
func marshal(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ErrorEnvelope renders an error response carrying message.
func ErrorEnvelope(message string) string {
	return envelope(DiscriminatorError, message)
}

// ContainerEnvelope renders a success response with text in a LIF container.
func ContainerEnvelope(text string) string {
	return envelope(DiscriminatorLAPPS, NewContainer(text))
}
