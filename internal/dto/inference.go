package dto

import "posewatch/internal/model"

// Inference message types sent by external detectors.
const (
	InferenceTypePose  = "pose"
	InferenceTypeError = "error"
)

// InferenceMessage is one inference result pushed by an external detector,
// JSON-encoded over WebSocket or CBOR-encoded over ZeroMQ.
type InferenceMessage struct {
	Type      string       `json:"type" cbor:"type"`
	Width     int          `json:"width" cbor:"width"`
	Height    int          `json:"height" cbor:"height"`
	Timestamp int64        `json:"timestamp,omitempty" cbor:"timestamp,omitempty"` // unix milliseconds
	Poses     []model.Pose `json:"poses" cbor:"poses"`
	Error     string       `json:"error,omitempty" cbor:"error,omitempty"`
}
