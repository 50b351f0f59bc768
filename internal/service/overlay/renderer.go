// Package overlay renders the boxes of each frame and ships them to viewers.
package overlay

import (
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"posewatch/internal/dto"
	"posewatch/internal/geometry"
	"posewatch/internal/source"
)

// Box stroke style.
var BoxColor = color.RGBA{R: 0x00, G: 0xFF, B: 0xB3, A: 0xFF}

const BoxThickness = 3

// Broadcaster delivers frame messages to connected viewers, dropping them
// when viewers fall behind.
type Broadcaster interface {
	OfferJSON(v any) error
	GetClientCount() int
}

// Renderer collects the boxes of one result and publishes them on Commit.
// It is used from the pipeline goroutine only.
type Renderer struct {
	hub    Broadcaster
	mirror bool
	width  int
	height int
	boxes  []geometry.Box
}

// NewRenderer creates a Renderer. With mirror set the frame is flipped
// horizontally before drawing, matching selfie-mode landmarks.
func NewRenderer(hub Broadcaster, mirror bool) *Renderer {
	return &Renderer{hub: hub, mirror: mirror}
}

func (r *Renderer) Clear(width, height int) {
	r.width = width
	r.height = height
	r.boxes = r.boxes[:0]
}

func (r *Renderer) StrokeRect(box geometry.Box) {
	r.boxes = append(r.boxes, box)
}

// Boxes returns a copy of the boxes drawn since the last Clear.
func (r *Renderer) Boxes() []geometry.Box {
	return append([]geometry.Box{}, r.boxes...)
}

// Commit broadcasts the frame overlay. When the result carries the captured
// frame and someone is watching, the annotated JPEG is attached.
func (r *Renderer) Commit(res source.Result) error {
	msg := dto.FrameMessage{
		Type:   dto.MessageFrame,
		Width:  r.width,
		Height: r.height,
		Boxes:  r.Boxes(),
	}

	if res.Frame != nil && r.hub.GetClientCount() > 0 {
		encoded, err := r.annotate(res.Frame)
		if err != nil {
			return err
		}
		msg.Image = encoded
	}

	return r.hub.OfferJSON(msg)
}

// annotate draws the boxes onto a copy of frame and returns it as base64 JPEG.
func (r *Renderer) annotate(frame image.Image) (string, error) {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return "", fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()

	if r.mirror {
		gocv.Flip(mat, &mat, 1)
	}

	for _, box := range r.boxes {
		if err := gocv.Rectangle(&mat, box.Rect(), BoxColor, BoxThickness); err != nil {
			return "", fmt.Errorf("failed to draw rectangle: %w", err)
		}
	}

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return "", fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	return base64.StdEncoding.EncodeToString(buf.GetBytes()), nil
}
