package sound

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/transforms"
	"github.com/go-audio/wav"
)

// ErrInvalidAsset is returned when the alert sound is not a PCM WAV file.
var ErrInvalidAsset = errors.New("invalid sound asset")

// PCM is decoded audio as interleaved signed 16-bit little-endian samples.
type PCM struct {
	SampleRate int
	Channels   int
	Data       []byte
}

// Frames returns the number of sample frames.
func (p *PCM) Frames() int {
	if p.Channels == 0 {
		return 0
	}
	return len(p.Data) / (2 * p.Channels)
}

// Duration returns the playback length.
func (p *PCM) Duration() time.Duration {
	if p.SampleRate == 0 {
		return 0
	}
	return time.Duration(p.Frames()) * time.Second / time.Duration(p.SampleRate)
}

// Decode fully decodes a WAV file to 16-bit PCM.
func Decode(data []byte) (*PCM, error) {
	buf, bitDepth, err := decodeBuffer(data)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 2*len(buf.Data))
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(toInt16(v, bitDepth)))
	}
	return newPCM(buf.Format, out), nil
}

// DecodeNormalized decodes a WAV file, scales its peak to full range and
// then applies volume in [0,1].
func DecodeNormalized(data []byte, volume float64) (*PCM, error) {
	buf, bitDepth, err := decodeBuffer(data)
	if err != nil {
		return nil, err
	}

	// Centre unsigned samples before measuring the peak.
	for i, v := range buf.Data {
		buf.Data[i] = int(toInt16(v, bitDepth))
	}
	buf.SourceBitDepth = 16

	floats := buf.AsFloatBuffer()
	transforms.NormalizeMax(floats)

	out := make([]byte, 2*len(floats.Data))
	for i, v := range floats.Data {
		sample := int16(math.Round(v * volume * math.MaxInt16))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(sample))
	}
	return newPCM(buf.Format, out), nil
}

func decodeBuffer(data []byte) (*audio.IntBuffer, int, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: not a wav file", ErrInvalidAsset)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("%w: missing format", ErrInvalidAsset)
	}
	return buf, int(decoder.BitDepth), nil
}

func newPCM(format *audio.Format, data []byte) *PCM {
	return &PCM{
		SampleRate: format.SampleRate,
		Channels:   format.NumChannels,
		Data:       data,
	}
}

func toInt16(v, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		// 8-bit WAV samples are unsigned.
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}
