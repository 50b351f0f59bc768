package sound

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"posewatch/internal/logger"
)

func writeWAV(t *testing.T, samples []int, rate, channels int) string {
	t.Helper()
	return writeWAVDepth(t, samples, rate, channels, 16)
}

func writeWAVDepth(t *testing.T, samples []int, rate, channels, bitDepth int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sound.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, rate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

type fakeSpeaker struct {
	mu     sync.Mutex
	played []*PCM
	err    error
}

func (s *fakeSpeaker) Play(_ context.Context, pcm *PCM) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, pcm)
	return s.err
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestDecode(t *testing.T) {
	path := writeWAV(t, []int{0, 1000, -1000, 32767}, 8000, 1)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	pcm, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pcm.SampleRate != 8000 || pcm.Channels != 1 {
		t.Fatalf("format = %d Hz %d ch, want 8000 Hz 1 ch", pcm.SampleRate, pcm.Channels)
	}
	if pcm.Frames() != 4 {
		t.Fatalf("frames = %d, want 4", pcm.Frames())
	}
	// -1000 little endian
	if pcm.Data[4] != 0x18 || pcm.Data[5] != 0xfc {
		t.Fatalf("sample 2 bytes = %x %x", pcm.Data[4], pcm.Data[5])
	}
	if pcm.Duration() != 500*time.Microsecond {
		t.Fatalf("duration = %v", pcm.Duration())
	}
}

func TestDecodeNormalized(t *testing.T) {
	data, err := os.ReadFile(writeWAV(t, []int{0, 1000, -2000}, 8000, 1))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	pcm, err := DecodeNormalized(data, 0.5)
	if err != nil {
		t.Fatalf("DecodeNormalized: %v", err)
	}
	samples := make([]int16, pcm.Frames())
	for i := range samples {
		samples[i] = int16(uint16(pcm.Data[2*i]) | uint16(pcm.Data[2*i+1])<<8)
	}
	// peak (-2000) maps to half of full scale
	want := []int16{0, 8192, -16384}
	for i := range want {
		if d := int(samples[i]) - int(want[i]); d < -1 || d > 1 {
			t.Fatalf("samples = %v, want %v", samples, want)
		}
	}
}

func TestDecodeNormalized_8BitIsCentred(t *testing.T) {
	// 8-bit samples are unsigned, 128 is silence.
	data, err := os.ReadFile(writeWAVDepth(t, []int{128, 192, 64}, 8000, 1, 8))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	pcm, err := DecodeNormalized(data, 0.5)
	if err != nil {
		t.Fatalf("DecodeNormalized: %v", err)
	}
	samples := make([]int16, pcm.Frames())
	for i := range samples {
		samples[i] = int16(uint16(pcm.Data[2*i]) | uint16(pcm.Data[2*i+1])<<8)
	}
	want := []int16{0, 16384, -16384}
	for i := range want {
		if d := int(samples[i]) - int(want[i]); d < -1 || d > 1 {
			t.Fatalf("samples = %v, want %v", samples, want)
		}
	}
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("definitely not a wav file"))
	if !errors.Is(err, ErrInvalidAsset) {
		t.Fatalf("err = %v, want ErrInvalidAsset", err)
	}
}

func TestFetch_HTTPIsFreshEveryTime(t *testing.T) {
	payload, err := os.ReadFile(writeWAV(t, []int{1, 2, 3}, 8000, 1))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Cache-Control") != "no-cache" {
			t.Errorf("Cache-Control = %q", r.Header.Get("Cache-Control"))
		}
		w.Write(payload)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL+"/sound.wav", srv.Client())
	for i := 0; i < 3; i++ {
		data, err := f.Fetch(context.Background())
		if err != nil {
			t.Fatalf("Fetch %d: %v", i, err)
		}
		if len(data) != len(payload) {
			t.Fatalf("Fetch %d returned %d bytes, want %d", i, len(data), len(payload))
		}
	}
	if hits.Load() != 3 {
		t.Fatalf("server hits = %d, want 3", hits.Load())
	}
}

func TestFetch_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := NewFetcher(srv.URL, srv.Client()).Fetch(context.Background()); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFetch_MissingFile(t *testing.T) {
	f := NewFetcher(filepath.Join(t.TempDir(), "missing.wav"), nil)
	if _, err := f.Fetch(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestPlayer_Play(t *testing.T) {
	speaker := &fakeSpeaker{}
	p := NewPlayer(NewFetcher(writeWAV(t, []int{5, 6}, 16000, 2), nil), speaker, time.Second, testLogger(t))

	if err := p.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(speaker.played) != 1 {
		t.Fatalf("played %d times, want 1", len(speaker.played))
	}
	if got := speaker.played[0]; got.Channels != 2 || got.SampleRate != 16000 || got.Frames() != 1 {
		t.Fatalf("played %+v", got)
	}
}

func TestPlayer_Errors(t *testing.T) {
	garbage := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(garbage, []byte("garbage"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	speakerErr := errors.New("device busy")

	tests := []struct {
		name    string
		path    string
		speaker *fakeSpeaker
		want    error
	}{
		{"missing asset", filepath.Join(t.TempDir(), "nope.wav"), &fakeSpeaker{}, os.ErrNotExist},
		{"invalid asset", garbage, &fakeSpeaker{}, ErrInvalidAsset},
		{"speaker failure", writeWAV(t, []int{1}, 8000, 1), &fakeSpeaker{err: speakerErr}, speakerErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlayer(NewFetcher(tt.path, nil), tt.speaker, 0, testLogger(t))
			if err := p.Play(context.Background()); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLogSpeaker(t *testing.T) {
	s := LogSpeaker{Logger: testLogger(t)}
	if err := s.Play(context.Background(), &PCM{SampleRate: 8000, Channels: 1, Data: make([]byte, 16)}); err != nil {
		t.Fatalf("Play: %v", err)
	}
}
