// Package geometry turns normalized landmark sets into pixel-space boxes.
package geometry

import (
	"errors"
	"image"
	"math"

	"posewatch/internal/model"
)

// ErrNoLandmarks is returned when a bounding box is requested for an empty landmark set.
var ErrNoLandmarks = errors.New("no landmarks")

// Box is an axis-aligned rectangle in pixel space.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// BoundingBox returns the smallest box covering every landmark after scaling
// the normalized coordinates by the frame width and height.
func BoundingBox(points []model.Landmark, width, height int) (Box, error) {
	if len(points) == 0 {
		return Box{}, ErrNoLandmarks
	}

	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	w, h := float64(width), float64(height)
	return Box{
		X: minX * w,
		Y: minY * h,
		W: maxX*w - minX*w,
		H: maxY*h - minY*h,
	}, nil
}

// Contains reports whether the pixel point (x, y) lies inside the box, edges included.
func (b Box) Contains(x, y float64) bool {
	return x >= b.X && x <= b.X+b.W && y >= b.Y && y <= b.Y+b.H
}

// Rect rounds the box to an integer rectangle for drawing.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(b.X)),
		int(math.Round(b.Y)),
		int(math.Round(b.X+b.W)),
		int(math.Round(b.Y+b.H)),
	)
}
