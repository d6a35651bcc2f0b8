package content

import (
	"encoding/json"
	"errors"
	"fmt"
)

// StatusOK is the envelope status of a successful response.
const StatusOK = 200

var (
	ErrEnvelopeStatus = errors.New("content: envelope status is not 200")
	ErrEnvelopeData   = errors.New("content: envelope data is not an array")
)

// Envelope is the {status, data} wrapper returned by the JSON endpoints.
type Envelope struct {
	Status  Number          `json:"status"`
	Message Text            `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// DecodeEnvelope unwraps body and decodes its data array into []T.
func DecodeEnvelope[T any](body []byte) ([]T, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("content: decode envelope: %w", err)
	}
	if env.Status != StatusOK {
		if env.Message != "" {
			return nil, fmt.Errorf("%w: got %d (%s)", ErrEnvelopeStatus, env.Status, env.Message)
		}
		return nil, fmt.Errorf("%w: got %d", ErrEnvelopeStatus, env.Status)
	}
	if len(env.Data) == 0 || env.Data[0] != '[' {
		return nil, ErrEnvelopeData
	}
	var items []T
	if err := json.Unmarshal(env.Data, &items); err != nil {
		return nil, fmt.Errorf("content: decode data: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
