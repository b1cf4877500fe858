package audio

import (
	"fmt"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/soundscape/internal/logging"
)

// Graph is the shared output graph: voices feed a mixer, the mixer feeds a
// master gain stage, and ReadFrame pulls rendered PCM from the master.
//
// The mixer is not safe for concurrent use, so every structural change and
// every render happens under mu.
type Graph struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	master      *effects.Gain
	masterGain  float64
	initialized bool
	closed      bool
	scratch     [][2]float64
	logger      zerolog.Logger
}

// NewGraph creates an uninitialized graph. Nothing is rendered until Init.
func NewGraph(logger zerolog.Logger) *Graph {
	return &Graph{
		masterGain: 1,
		scratch:    make([][2]float64, FrameSize),
		logger:     logging.Component(logger, "graph"),
	}
}

// Init builds the master bus. It is idempotent.
func (g *Graph) Init() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}
	if g.initialized {
		return nil
	}
	g.mixer = &beep.Mixer{}
	g.master = &effects.Gain{Streamer: g.mixer, Gain: g.masterGain - 1}
	g.initialized = true
	g.logger.Info().Float64("master_gain", g.masterGain).Msg("audio graph initialized")
	return nil
}

// Initialized reports whether Init has run and Close has not.
func (g *Graph) Initialized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initialized
}

// SetMasterGain sets the master gain fraction. Before Init the value is
// remembered and applied when the bus is built.
func (g *Graph) SetMasterGain(gain float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.masterGain = gain
	if g.master != nil {
		g.master.Gain = gain - 1
	}
}

// MasterGain returns the current master gain fraction.
func (g *Graph) MasterGain() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.masterGain
}

// Decode decodes an encoded file into a Buffer playable on this graph.
func (g *Graph) Decode(data []byte) (Buffer, error) {
	return Decode(data)
}

// Start connects a fresh voice for buf to the master bus and starts it.
func (g *Graph) Start(buf Buffer, gain float64, loop bool) (Voice, error) {
	pcm, ok := buf.(*PCMBuffer)
	if !ok {
		return nil, fmt.Errorf("start voice: unsupported buffer %T", buf)
	}

	var src beep.Streamer = pcm.buf.Streamer(0, pcm.buf.Len())
	if loop {
		src = beep.Loop(-1, pcm.buf.Streamer(0, pcm.buf.Len()))
	}
	v := &voice{graph: g, gain: &effects.Gain{Streamer: src, Gain: gain - 1}}
	v.ctrl = &beep.Ctrl{Streamer: v.gain}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.initialized {
		return nil, ErrNotInitialized
	}
	g.mixer.Add(v.ctrl)
	return v, nil
}

// Voices returns the number of streamers still attached to the mixer.
func (g *Graph) Voices() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mixer == nil {
		return 0
	}
	return g.mixer.Len()
}

// ReadFrame renders the next FrameSize stereo samples into frame, which
// must hold FrameSamples values. An uninitialized graph renders silence.
func (g *Graph) ReadFrame(frame []int16) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.initialized {
		clear(frame)
		return
	}
	n, _ := g.master.Stream(g.scratch)
	for i := 0; i < FrameSize; i++ {
		if i >= n {
			frame[i*2], frame[i*2+1] = 0, 0
			continue
		}
		frame[i*2] = toInt16(g.scratch[i][0])
		frame[i*2+1] = toInt16(g.scratch[i][1])
	}
}

// Close disconnects every voice and tears the bus down for good.
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	if g.mixer != nil {
		g.mixer.Clear()
	}
	g.initialized = false
	g.closed = true
	g.logger.Info().Msg("audio graph closed")
	return nil
}

type voice struct {
	graph   *Graph
	ctrl    *beep.Ctrl
	gain    *effects.Gain
	stopped bool
}

func (v *voice) SetGain(gain float64) {
	v.graph.mu.Lock()
	v.gain.Gain = gain - 1
	v.graph.mu.Unlock()
}

// Stop detaches the voice; the mixer drops it on the next render.
func (v *voice) Stop() error {
	v.graph.mu.Lock()
	defer v.graph.mu.Unlock()
	if v.stopped {
		return ErrSourceStopped
	}
	v.stopped = true
	v.ctrl.Streamer = nil
	return nil
}
