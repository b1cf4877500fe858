package audio

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/soundscape/internal/logging"
)

// FrameSource renders PCM frames of FrameSamples interleaved samples.
type FrameSource interface {
	ReadFrame(frame []int16)
}

// Pipeline pulls frames from a source and outputs them at real-time rate.
type Pipeline struct {
	src     FrameSource
	frameCh chan []int16
	logger  zerolog.Logger

	mu       sync.RWMutex
	rendered uint64
	started  time.Time
}

// NewPipeline creates a pipeline rendering from src.
func NewPipeline(src FrameSource, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		src:     src,
		frameCh: make(chan []int16, 100),
		logger:  logging.Component(logger, "pipeline"),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// Status returns how many frames have been emitted and for how long the
// pipeline has been running.
func (p *Pipeline) Status() (frames uint64, uptime time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.started.IsZero() {
		return p.rendered, 0
	}
	return p.rendered, time.Since(p.started)
}

// Run starts the pipeline. Blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()
	p.logger.Info().Dur("frame", FrameDuration).Msg("render pipeline started")

	for {
		frame := make([]int16, FrameSamples)
		p.src.ReadFrame(frame)
		if !p.sendFrame(ctx, ticker, frame) {
			p.logger.Info().Msg("render pipeline stopped")
			return
		}
		p.mu.Lock()
		p.rendered++
		p.mu.Unlock()
	}
}

// sendFrame waits for the ticker then sends a frame. Returns false on cancel.
func (p *Pipeline) sendFrame(ctx context.Context, ticker *time.Ticker, frame []int16) bool {
	select {
	case <-ctx.Done():
		return false
	case <-ticker.C:
	}

	select {
	case p.frameCh <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}
