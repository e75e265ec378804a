// Package capture turns raw PCM streams into time-sliced, multi-channel
// audio and hands the slices to a sink.
package capture

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

var (
	ErrUnsupportedFormat = errors.New("capture: unsupported format")
	ErrShortFrame        = errors.New("capture: trailing partial frame")
)

// Format describes signed little-endian interleaved PCM.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

func (f Format) Validate() error {
	if f.BitDepth != 16 {
		return errors.Wrapf(ErrUnsupportedFormat, "bit depth %d", f.BitDepth)
	}
	if f.Channels <= 0 {
		return errors.Wrapf(ErrUnsupportedFormat, "%d channels", f.Channels)
	}
	if f.SampleRate <= 0 {
		return errors.Wrapf(ErrUnsupportedFormat, "sample rate %d", f.SampleRate)
	}
	return nil
}

// FrameBytes is the size of one sample for every channel.
func (f Format) FrameBytes() int {
	return f.Channels * f.BitDepth / 8
}

// Deinterleave splits whole frames of 16-bit PCM into per-channel buffers
// normalised to [-1, 1). Trailing bytes that do not form a frame are ignored.
func Deinterleave(b []byte, channels int) [][]float32 {
	frameBytes := channels * 2
	frames := len(b) / frameBytes
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		base := i * frameBytes
		for c := 0; c < channels; c++ {
			v := int16(binary.LittleEndian.Uint16(b[base+c*2:]))
			out[c][i] = float32(v) / 32768
		}
	}
	return out
}

// Interleave is the inverse of Deinterleave. Shorter channels are padded
// with silence up to the longest one and samples are clamped to [-1, 1].
func Interleave(channels [][]float32) []byte {
	frames := 0
	for _, ch := range channels {
		if len(ch) > frames {
			frames = len(ch)
		}
	}
	out := make([]byte, frames*len(channels)*2)
	for i := 0; i < frames; i++ {
		for c, ch := range channels {
			var v float32
			if i < len(ch) {
				v = ch[i]
			}
			binary.LittleEndian.PutUint16(out[(i*len(channels)+c)*2:], uint16(toInt16(v)))
		}
	}
	return out
}

func toInt16(v float32) int16 {
	s := math.Round(float64(v) * 32768)
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	if s < math.MinInt16 {
		return math.MinInt16
	}
	return int16(s)
}

// Decoder reads fixed-size blocks of frames from a PCM stream.
type Decoder struct {
	r      io.Reader
	format Format
	buf    []byte
}

func NewDecoder(r io.Reader, format Format, frameSize int) (*Decoder, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if frameSize <= 0 {
		return nil, errors.Errorf("capture: frame size must be positive, got %d", frameSize)
	}
	return &Decoder{
		r:      r,
		format: format,
		buf:    make([]byte, frameSize*format.FrameBytes()),
	}, nil
}

// Next returns the next block of up to frameSize frames. It returns io.EOF
// once the stream is drained, and ErrShortFrame alongside the complete
// frames when the stream ends in the middle of a frame.
func (d *Decoder) Next() ([][]float32, error) {
	n, err := io.ReadFull(d.r, d.buf)
	if n == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}

	frameBytes := d.format.FrameBytes()
	channels := Deinterleave(d.buf[:n-n%frameBytes], d.format.Channels)

	switch {
	case err == nil:
		return channels, nil
	case err == io.ErrUnexpectedEOF && n%frameBytes != 0:
		return channels, ErrShortFrame
	case err == io.ErrUnexpectedEOF:
		return channels, nil
	default:
		return channels, err
	}
}

// Framer accepts arbitrarily split chunks and returns whole frames, carrying
// partial frames over to the next chunk.
type Framer struct {
	format Format
	carry  []byte
}

func NewFramer(format Format) (*Framer, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	return &Framer{format: format}, nil
}

func (f *Framer) Write(p []byte) [][]float32 {
	data := p
	if len(f.carry) > 0 {
		data = append(f.carry, p...)
	}
	frameBytes := f.format.FrameBytes()
	whole := len(data) - len(data)%frameBytes
	f.carry = append([]byte(nil), data[whole:]...)
	return Deinterleave(data[:whole], f.format.Channels)
}

// Pending reports how many bytes of an incomplete frame are buffered.
func (f *Framer) Pending() int {
	return len(f.carry)
}
