package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/rs/zerolog"
)

// --- Constants ---

func TestConstants(t *testing.T) {
	// 48kHz * 20ms = 960 samples per channel
	if got := SampleRate * int(FrameDuration/time.Millisecond) / 1000; got != FrameSize {
		t.Errorf("FrameSize mismatch: want %d, got %d", got, FrameSize)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
	if FrameBytes != FrameSamples*2 {
		t.Errorf("FrameBytes = %d, want %d", FrameBytes, FrameSamples*2)
	}
}

// --- PCM conversion ---

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := SamplesToBytes(samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(samples)*2)
	}

	// 256 = 0x0100 -> bytes [0x00, 0x01]
	idx := 5 * 2
	if buf[idx] != 0x00 || buf[idx+1] != 0x01 {
		t.Errorf("Sample 256 encoded as [%02x, %02x], want [00, 01]", buf[idx], buf[idx+1])
	}
}

func TestSamplesBytesRoundTrip(t *testing.T) {
	original := []int16{0, 1, -1, 32767, -32768, 12345, -6789}
	buf := SamplesToBytes(original)

	recovered := make([]int16, len(buf)/2)
	for i := range recovered {
		recovered[i] = int16(uint16(buf[i*2]) | uint16(buf[i*2+1])<<8)
	}

	for i, v := range original {
		if recovered[i] != v {
			t.Errorf("Round-trip sample[%d]: got %d, want %d", i, recovered[i], v)
		}
	}
}

func TestToInt16Clipping(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{1, 32767},
		{1.7, 32767},
		{-1, -32768},
		{-3, -32768},
		{0.5, 16383},
	}
	for _, tt := range tests {
		if got := toInt16(tt.in); got != tt.want {
			t.Errorf("toInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// --- Decoding ---

// encodeWAV writes dur of a constant-level stereo signal as 16-bit WAV.
func encodeWAV(t *testing.T, rate int, dur time.Duration, level float64) []byte {
	t.Helper()
	sr := beep.SampleRate(rate)
	src := beep.Take(sr.N(dur), beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{level, level}
		}
		return len(samples), true
	}))

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	if err := wav.Encode(f, src, beep.Format{SampleRate: sr, NumChannels: 2, Precision: 2}); err != nil {
		f.Close()
		t.Fatalf("encode wav: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	return data
}

func TestDecodeWAV(t *testing.T) {
	buf, err := Decode(encodeWAV(t, SampleRate, 250*time.Millisecond, 0.5))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if buf.Len() != 12000 {
		t.Errorf("Len = %d, want 12000", buf.Len())
	}
	if buf.Duration() != 250*time.Millisecond {
		t.Errorf("Duration = %v, want 250ms", buf.Duration())
	}
}

func TestDecodeResamples(t *testing.T) {
	buf, err := Decode(encodeWAV(t, 24000, 100*time.Millisecond, 0.5))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := buf.Len(); got < 4700 || got > 4900 {
		t.Errorf("Len = %d, want about 4800 after resampling to 48kHz", got)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":      nil,
		"text":       []byte("this is definitely not an audio file"),
		"bad riff":   []byte("RIFF\x00\x00\x00\x00WAVEjunk"),
		"bad vorbis": []byte("OggS\x00\x02garbage"),
	} {
		if _, err := Decode(data); !errors.Is(err, ErrDecode) {
			t.Errorf("Decode(%s) err = %v, want ErrDecode", name, err)
		}
	}
}

// --- Graph ---

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph(zerolog.Nop())
	if err := g.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return g
}

func render(g *Graph) []int16 {
	frame := make([]int16, FrameSamples)
	g.ReadFrame(frame)
	return frame
}

func near(got int16, want float64) bool {
	d := float64(got) - want*32767
	return d > -40 && d < 40
}

func TestGraphSilentBeforeInit(t *testing.T) {
	g := NewGraph(zerolog.Nop())
	frame := make([]int16, FrameSamples)
	for i := range frame {
		frame[i] = 99
	}
	g.ReadFrame(frame)
	for i, v := range frame {
		if v != 0 {
			t.Fatalf("sample[%d] = %d before Init, want 0", i, v)
		}
	}
	if g.Initialized() {
		t.Error("Initialized() = true before Init")
	}
}

func TestStartBeforeInit(t *testing.T) {
	g := NewGraph(zerolog.Nop())
	buf, _ := Decode(encodeWAV(t, SampleRate, 50*time.Millisecond, 0.5))
	if _, err := g.Start(buf, 1, true); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Start err = %v, want ErrNotInitialized", err)
	}
}

func TestInitIdempotent(t *testing.T) {
	g := newTestGraph(t)
	buf, _ := Decode(encodeWAV(t, SampleRate, 50*time.Millisecond, 0.5))
	if _, err := g.Start(buf, 1, true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := g.Init(); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if g.Voices() != 1 {
		t.Errorf("Voices = %d after second Init, want 1", g.Voices())
	}
}

func TestVoiceGainAndMaster(t *testing.T) {
	g := newTestGraph(t)
	buf, err := g.Decode(encodeWAV(t, SampleRate, 50*time.Millisecond, 0.5))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	v, err := g.Start(buf, 0.5, true)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := render(g)[100]; !near(got, 0.25) {
		t.Errorf("sample at gain 0.5 = %d, want about %v", got, 0.25*32767)
	}

	v.SetGain(0)
	if got := render(g)[100]; got != 0 {
		t.Errorf("sample at gain 0 = %d, want 0", got)
	}

	v.SetGain(1)
	g.SetMasterGain(0.5)
	if got := render(g)[100]; !near(got, 0.25) {
		t.Errorf("sample at master 0.5 = %d, want about %v", got, 0.25*32767)
	}
	if g.MasterGain() != 0.5 {
		t.Errorf("MasterGain = %v, want 0.5", g.MasterGain())
	}
}

func TestMasterGainBeforeInit(t *testing.T) {
	g := NewGraph(zerolog.Nop())
	g.SetMasterGain(0.5)
	g.Init()
	buf, _ := g.Decode(encodeWAV(t, SampleRate, 50*time.Millisecond, 0.5))
	g.Start(buf, 1, true)
	if got := render(g)[10]; !near(got, 0.25) {
		t.Errorf("sample = %d, want about %v", got, 0.25*32767)
	}
}

func TestVoiceStopTwice(t *testing.T) {
	g := newTestGraph(t)
	buf, _ := g.Decode(encodeWAV(t, SampleRate, 50*time.Millisecond, 0.5))
	v, _ := g.Start(buf, 1, true)

	if err := v.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := v.Stop(); !errors.Is(err, ErrSourceStopped) {
		t.Errorf("second Stop err = %v, want ErrSourceStopped", err)
	}
	if got := render(g)[0]; got != 0 {
		t.Errorf("sample after stop = %d, want 0", got)
	}
	if g.Voices() != 0 {
		t.Errorf("Voices = %d after stop, want 0", g.Voices())
	}
}

func TestLoopingVoiceKeepsPlaying(t *testing.T) {
	g := newTestGraph(t)
	buf, _ := g.Decode(encodeWAV(t, SampleRate, 10*time.Millisecond, 0.5))

	g.Start(buf, 1, true)
	for i := 0; i < 5; i++ {
		render(g)
	}
	if got := render(g)[FrameSamples-2]; !near(got, 0.5) {
		t.Errorf("looping voice sample = %d, want about %v", got, 0.5*32767)
	}
}

func TestOneShotVoiceEnds(t *testing.T) {
	g := newTestGraph(t)
	buf, _ := g.Decode(encodeWAV(t, SampleRate, 10*time.Millisecond, 0.5))

	g.Start(buf, 1, false)
	frame := render(g)
	if !near(frame[0], 0.5) {
		t.Errorf("first sample = %d, want about %v", frame[0], 0.5*32767)
	}
	if frame[FrameSamples-2] != 0 {
		t.Errorf("tail sample = %d, want 0 after the buffer ends", frame[FrameSamples-2])
	}
	render(g)
	if g.Voices() != 0 {
		t.Errorf("Voices = %d, want 0 once the buffer ended", g.Voices())
	}
}

func TestCloseTearsDown(t *testing.T) {
	g := newTestGraph(t)
	buf, _ := g.Decode(encodeWAV(t, SampleRate, 50*time.Millisecond, 0.5))
	g.Start(buf, 1, true)

	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := render(g)[0]; got != 0 {
		t.Errorf("sample after Close = %d, want 0", got)
	}
	if err := g.Init(); !errors.Is(err, ErrClosed) {
		t.Errorf("Init after Close err = %v, want ErrClosed", err)
	}
	if err := g.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

// --- Pipeline ---

type countingSource struct{ n atomic.Int64 }

func (s *countingSource) ReadFrame(frame []int16) {
	frame[0] = int16(s.n.Add(1))
}

func TestPipelineEmitsFrames(t *testing.T) {
	src := &countingSource{}
	p := NewPipeline(src, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	for i := 1; i <= 3; i++ {
		select {
		case frame := <-p.Frames():
			if len(frame) != FrameSamples {
				t.Fatalf("frame length = %d, want %d", len(frame), FrameSamples)
			}
			if frame[0] != int16(i) {
				t.Errorf("frame %d marker = %d", i, frame[0])
			}
		case <-time.After(time.Second):
			t.Fatal("no frame within 1s")
		}
	}
	cancel()
	<-done

	frames, uptime := p.Status()
	if frames < 3 {
		t.Errorf("Status frames = %d, want >= 3", frames)
	}
	if uptime <= 0 {
		t.Errorf("Status uptime = %v, want > 0", uptime)
	}
	if _, ok := <-p.Frames(); ok {
		// Drain anything buffered; the channel must end closed.
		for range p.Frames() {
		}
	}
}

func TestPipelineStatusBeforeRun(t *testing.T) {
	p := NewPipeline(&countingSource{}, zerolog.Nop())
	frames, uptime := p.Status()
	if frames != 0 || uptime != 0 {
		t.Errorf("Status = %d, %v before Run, want zero", frames, uptime)
	}
}
