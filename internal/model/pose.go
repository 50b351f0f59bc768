package model

// Landmark is one tracked body keypoint. X and Y are normalized to [0,1]
// relative to the frame width and height.
type Landmark struct {
	X          float64 `json:"x" cbor:"x"`
	Y          float64 `json:"y" cbor:"y"`
	Z          float64 `json:"z,omitempty" cbor:"z,omitempty"`
	Visibility float64 `json:"visibility,omitempty" cbor:"visibility,omitempty"`
}

// Pose is the landmark set of one detected person.
type Pose struct {
	Landmarks []Landmark `json:"landmarks" cbor:"landmarks"`
	Score     float64    `json:"score,omitempty" cbor:"score,omitempty"`
}
