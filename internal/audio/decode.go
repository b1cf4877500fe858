package audio

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// PCMBuffer holds decoded stereo samples at SampleRate.
type PCMBuffer struct {
	buf *beep.Buffer
}

// Duration returns the playing time of the buffer.
func (b *PCMBuffer) Duration() time.Duration {
	return format.SampleRate.D(b.buf.Len())
}

// Len returns the number of stereo samples.
func (b *PCMBuffer) Len() int { return b.buf.Len() }

// Decode turns an encoded file (WAV, Ogg Vorbis or MP3) into a PCMBuffer,
// resampling to SampleRate when needed.
func Decode(data []byte) (*PCMBuffer, error) {
	s, f, err := decodeStream(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer s.Close()

	var src beep.Streamer = s
	if f.SampleRate != format.SampleRate {
		src = beep.Resample(4, f.SampleRate, format.SampleRate, s)
	}

	buf := beep.NewBuffer(format)
	buf.Append(src)
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrDecode)
	}
	return &PCMBuffer{buf: buf}, nil
}

func decodeStream(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return wav.Decode(bytes.NewReader(data))
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
	case len(data) == 0:
		return nil, beep.Format{}, fmt.Errorf("empty input")
	default:
		return mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	}
}
