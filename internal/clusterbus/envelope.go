// Package clusterbus implements the cluster bus: a
// NATS-backed verb dispatcher carrying Avro-encoded envelopes between
// the master node and its clients (db.*, pty.*, cfg.* and cluster.*
// verbs), with snapshot-then-delta subscription semantics over the
// cache store.
package clusterbus

import (
	"encoding/json"
	"fmt"

	"github.com/linkedin/goavro/v2"

	"github.com/solostec/smf-gateway/internal/gwerr"
)

// envelopeSchema wraps every verb invocation: the verb name, the
// origin tag (suppresses echo to the sender, guarantee 3)
// and a JSON-encoded payload. Verb arguments vary in shape per verb
//,
// so rather than hand-author one Avro record per verb, the envelope
// itself is the Avro-encoded unit and the variable part travels as an
// embedded JSON string — goavro validates and compacts the fixed
// envelope fields on the wire, which is the part worth checksumming
// and whose shape never changes.
const envelopeSchema = `{
	"type": "record",
	"name": "Envelope",
	"fields": [
		{"name": "verb", "type": "string"},
		{"name": "origin", "type": "string"},
		{"name": "payload", "type": "string"}
	]
}`

var envelopeCodec = func() *goavro.Codec {
	codec, err := goavro.NewCodec(envelopeSchema)
	if err != nil {
		panic(fmt.Sprintf("clusterbus: invalid envelope schema: %v", err))
	}
	return codec
}()

// Envelope is one verb invocation or notification.
type Envelope struct {
	Verb    string
	Origin  string
	Payload map[string]any
}

// Encode renders e as Avro-framed bytes suitable for NATS publish.
func Encode(e Envelope) ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("clusterbus: marshal payload: %w", err)
	}
	native := map[string]any{
		"verb":    e.Verb,
		"origin":  e.Origin,
		"payload": string(payload),
	}
	out, err := envelopeCodec.BinaryFromNative(nil, native)
	if err != nil {
		return nil, fmt.Errorf("clusterbus: avro encode: %w", err)
	}
	return out, nil
}

// Decode parses Avro-framed bytes back into an Envelope.
func Decode(buf []byte) (Envelope, error) {
	native, _, err := envelopeCodec.NativeFromBinary(buf)
	if err != nil {
		return Envelope{}, fmt.Errorf("clusterbus: avro decode: %w: %w", err, gwerr.ErrFrame)
	}
	fields, ok := native.(map[string]any)
	if !ok {
		return Envelope{}, fmt.Errorf("clusterbus: malformed envelope: %w", gwerr.ErrFrame)
	}
	var payload map[string]any
	if raw, _ := fields["payload"].(string); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return Envelope{}, fmt.Errorf("clusterbus: unmarshal payload: %w", err)
		}
	}
	return Envelope{
		Verb:    fields["verb"].(string),
		Origin:  fields["origin"].(string),
		Payload: payload,
	}, nil
}
