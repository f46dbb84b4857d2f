package messaging

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const envelopeVersion = 1

// envelope is the wire form for brokers without native headers.
type envelope struct {
	Version int               `json:"v"`
	Headers map[string]string `json:"h,omitempty"`
	Body    []byte            `json:"b"`
}

func seal(msg OutgoingMessage) ([]byte, error) {
	env := envelope{Version: envelopeVersion, Body: msg.Body}
	for _, h := range msg.Headers {
		if h.Key == "" {
			continue
		}
		if env.Headers == nil {
			env.Headers = make(map[string]string, len(msg.Headers))
		}
		if _, dup := env.Headers[h.Key]; !dup {
			env.Headers[h.Key] = string(h.Value)
		}
	}

	frame, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("messaging: seal envelope: %w", err)
	}
	return frame, nil
}

// unseal returns the payload and headers of frame. Frames published without
// an envelope come back unchanged with no headers.
func unseal(frame []byte) ([]byte, []Header) {
	if !bytes.HasPrefix(bytes.TrimSpace(frame), []byte(`{"v":`)) {
		return frame, nil
	}

	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Version != envelopeVersion {
		return frame, nil
	}

	headers := make([]Header, 0, len(env.Headers))
	for k, v := range env.Headers {
		headers = append(headers, Header{Key: k, Value: []byte(v)})
	}
	return env.Body, headers
}
