package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"posewatch/internal/dto"
)

// ErrInvalidMessage is returned for inference messages that cannot become a result.
var ErrInvalidMessage = errors.New("invalid inference message")

// DecodeJSON parses a JSON inference message.
func DecodeJSON(payload []byte, received time.Time) (Result, error) {
	var msg dto.InferenceMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return FromMessage(msg, received)
}

// DecodeCBOR parses a CBOR inference message.
func DecodeCBOR(payload []byte, received time.Time) (Result, error) {
	var msg dto.InferenceMessage
	if err := cbor.Unmarshal(payload, &msg); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return FromMessage(msg, received)
}

// FromMessage converts a pushed message to a Result. An "error" message
// becomes a result carrying a per-frame inference failure.
func FromMessage(msg dto.InferenceMessage, received time.Time) (Result, error) {
	captured := received
	if msg.Timestamp > 0 {
		captured = time.UnixMilli(msg.Timestamp)
	}

	switch msg.Type {
	case dto.InferenceTypeError:
		reason := msg.Error
		if reason == "" {
			reason = "unknown error"
		}
		return Result{
			Width:    msg.Width,
			Height:   msg.Height,
			Captured: captured,
			Err:      fmt.Errorf("external detector: %s", reason),
		}, nil
	case dto.InferenceTypePose, "":
	default:
		return Result{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, msg.Type)
	}

	if msg.Width <= 0 || msg.Height <= 0 {
		return Result{}, fmt.Errorf("%w: frame size %dx%d", ErrInvalidMessage, msg.Width, msg.Height)
	}

	return Result{
		Poses:    msg.Poses,
		Width:    msg.Width,
		Height:   msg.Height,
		Captured: captured,
	}, nil
}
