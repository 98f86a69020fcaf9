package attendance

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PayloadFormat selects which QR payload shapes are accepted.
type PayloadFormat int

const (
	// PayloadEither dispatches on the first non-space byte: '{' means a JSON
	// envelope, anything else a plain identifier. The two shapes never overlap.
	PayloadEither PayloadFormat = iota
	// PayloadJSON only accepts {"id": "..."} envelopes.
	PayloadJSON
	// PayloadPlain only accepts a bare identifier.
	PayloadPlain
)

func (f PayloadFormat) String() string {
	switch f {
	case PayloadJSON:
		return "json"
	case PayloadPlain:
		return "plain"
	default:
		return "either"
	}
}

// ParsePayloadFormat parses the PAYLOAD_FORMAT setting.
func ParsePayloadFormat(s string) (PayloadFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "either":
		return PayloadEither, nil
	case "json":
		return PayloadJSON, nil
	case "plain":
		return PayloadPlain, nil
	default:
		return PayloadEither, fmt.Errorf("unknown payload format %q", s)
	}
}

type envelope struct {
	ID *string `json:"id"`
}

// ParsePayload extracts the student ID from decoded QR text.
func ParsePayload(raw string, format PayloadFormat) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	isObject := strings.HasPrefix(text, "{")
	switch format {
	case PayloadJSON:
		return parseEnvelope(text)
	case PayloadPlain:
		if isObject {
			return "", fmt.Errorf("%w: JSON envelope not accepted", ErrInvalidPayload)
		}
		return text, nil
	default:
		if isObject {
			return parseEnvelope(text)
		}
		return text, nil
	}
}

func parseEnvelope(text string) (string, error) {
	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.ID == nil {
		return "", fmt.Errorf("%w: missing id field", ErrInvalidPayload)
	}
	id := strings.TrimSpace(*env.ID)
	if id == "" {
		return "", fmt.Errorf("%w: empty id field", ErrInvalidPayload)
	}
	return id, nil
}

// EncodePayload renders the canonical QR payload for a student.
func EncodePayload(studentID string) string {
	data, _ := json.Marshal(envelope{ID: &studentID})
	return string(data)
}
