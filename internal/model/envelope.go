package model

import (
	"encoding/json"
	"errors"
)

// EnvelopeVersion is the current usage envelope schema version.
const EnvelopeVersion = 1

// Envelope is the payload published to Kafka for each usage event.
type Envelope struct {
	Version int        `json:"v"`
	Event   UsageEvent `json:"event"`
}

// EncodeEnvelope wraps ev in a versioned envelope.
func EncodeEnvelope(ev UsageEvent) ([]byte, error) {
	return json.Marshal(Envelope{Version: EnvelopeVersion, Event: ev})
}

// DecodeEnvelope parses a usage envelope and rejects incomplete events.
func DecodeEnvelope(b []byte) (UsageEvent, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return UsageEvent{}, err
	}
	if env.Version != EnvelopeVersion {
		return UsageEvent{}, errors.New("unsupported envelope version")
	}
	ev := env.Event
	if ev.ID == "" || ev.APIKey == "" || ev.CreatedAt.IsZero() {
		return UsageEvent{}, errors.New("envelope missing id, api_key or created_at")
	}
	return ev, nil
}
