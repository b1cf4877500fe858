// Package audio renders the mix: it decodes sound files into in-memory
// buffers, runs them through per-layer voices into a master bus and emits
// real-time PCM frames.
package audio

import (
	"errors"
	"time"

	"github.com/gopxl/beep"
)

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

var (
	// ErrDecode is returned when bytes cannot be decoded as audio.
	ErrDecode = errors.New("audio decode failed")

	// ErrSourceStopped is returned when stopping a voice twice.
	ErrSourceStopped = errors.New("voice already stopped")

	// ErrNotInitialized is returned when starting a voice before Init.
	ErrNotInitialized = errors.New("audio graph not initialized")

	// ErrClosed is returned after the graph has been torn down.
	ErrClosed = errors.New("audio graph closed")
)

var format = beep.Format{
	SampleRate:  beep.SampleRate(SampleRate),
	NumChannels: Channels,
	Precision:   BitDepth / 8,
}

// Buffer is decoded audio ready to be played any number of times.
type Buffer interface {
	Duration() time.Duration
}

// Voice is one playing instance of a buffer with its own gain. A voice is
// single-use: once stopped it cannot be restarted.
type Voice interface {
	SetGain(gain float64)
	Stop() error
}
