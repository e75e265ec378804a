package capture

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/vcnkl/coalesce/models"
)

const wavHeaderSize = 44

// EncodeWAV writes the slice as a 16-bit PCM RIFF/WAVE file.
func EncodeWAV(w io.Writer, slice *models.Slice) error {
	channels := len(slice.Channels)
	if channels == 0 {
		return errors.Wrap(ErrUnsupportedFormat, "slice has no channels")
	}
	if slice.SampleRate <= 0 {
		return errors.Wrapf(ErrUnsupportedFormat, "sample rate %d", slice.SampleRate)
	}

	data := Interleave(slice.Channels)
	blockAlign := channels * 2

	var hdr bytes.Buffer
	hdr.Grow(wavHeaderSize)
	hdr.WriteString("RIFF")
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(36+len(data)))
	hdr.WriteString("WAVE")
	hdr.WriteString("fmt ")
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(16))
	_ = binary.Write(&hdr, binary.LittleEndian, uint16(1))
	_ = binary.Write(&hdr, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(slice.SampleRate))
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(slice.SampleRate*blockAlign))
	_ = binary.Write(&hdr, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&hdr, binary.LittleEndian, uint16(16))
	hdr.WriteString("data")
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(len(data)))

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return errors.Wrap(err, "write wav header")
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "write wav data")
	}
	return nil
}

// DecodeWAV reads a file produced by EncodeWAV.
func DecodeWAV(r io.Reader) (Format, [][]float32, error) {
	hdr := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return Format{}, nil, errors.Wrap(err, "read wav header")
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" || string(hdr[36:40]) != "data" {
		return Format{}, nil, errors.Wrap(ErrUnsupportedFormat, "not a canonical wav file")
	}
	if binary.LittleEndian.Uint16(hdr[20:22]) != 1 {
		return Format{}, nil, errors.Wrap(ErrUnsupportedFormat, "not PCM")
	}

	format := Format{
		Channels:   int(binary.LittleEndian.Uint16(hdr[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(hdr[24:28])),
		BitDepth:   int(binary.LittleEndian.Uint16(hdr[34:36])),
	}
	if err := format.Validate(); err != nil {
		return Format{}, nil, err
	}

	data := make([]byte, binary.LittleEndian.Uint32(hdr[40:44]))
	if _, err := io.ReadFull(r, data); err != nil {
		return Format{}, nil, errors.Wrap(err, "read wav data")
	}
	return format, Deinterleave(data, format.Channels), nil
}
