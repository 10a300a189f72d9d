package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// WAVReader streams the PCM payload of a WAV file.
type WAVReader struct {
	Format Format
	// Frames is the number of PCM frames declared by the data chunk.
	Frames int

	file *os.File
	pcm  io.Reader
}

func OpenWAV(path string) (*WAVReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}

	format, size, pcm, err := decodeHeader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &WAVReader{
		Format: format,
		Frames: size / format.FrameSize(),
		file:   f,
		pcm:    pcm,
	}, nil
}

func (r *WAVReader) Read(p []byte) (int, error) {
	return r.pcm.Read(p)
}

func (r *WAVReader) Close() error {
	return r.file.Close()
}

// ReadWAV loads a whole WAV file into memory.
func ReadWAV(path string) (Format, []byte, error) {
	r, err := OpenWAV(path)
	if err != nil {
		return Format{}, nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return Format{}, nil, fmt.Errorf("read wav data: %w", err)
	}
	return r.Format, data, nil
}

// DecodeWAV splits an in-memory WAV container into its format and payload.
func DecodeWAV(r io.ReadSeeker) (Format, []byte, error) {
	format, _, pcm, err := decodeHeader(r)
	if err != nil {
		return Format{}, nil, err
	}

	data, err := io.ReadAll(pcm)
	if err != nil {
		return Format{}, nil, fmt.Errorf("read wav data: %w", err)
	}
	return format, data, nil
}

func decodeHeader(r io.ReadSeeker) (Format, int, io.Reader, error) {
	dec := wav.NewDecoder(r)
	if err := dec.FwdToPCM(); err != nil {
		return Format{}, 0, nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if dec.PCMChunk == nil {
		return Format{}, 0, nil, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
	}

	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return Format{}, 0, nil, fmt.Errorf("%w: audio format %d is not linear pcm", ErrUnsupportedWAV, dec.WavAudioFormat)
	}

	format := Format{
		SampleRate:  int(dec.SampleRate),
		Channels:    int(dec.NumChans),
		SampleWidth: int(dec.BitDepth) / 8,
	}
	if dec.BitDepth%8 != 0 {
		return Format{}, 0, nil, fmt.Errorf("%w: bit depth %d", ErrUnsupportedWAV, dec.BitDepth)
	}
	if err := format.Validate(); err != nil {
		return Format{}, 0, nil, fmt.Errorf("%w: %v", ErrUnsupportedWAV, err)
	}

	size := dec.PCMSize
	return format, size, io.LimitReader(dec.PCMChunk, int64(size)), nil
}

// WriteWAV encodes pcm as a WAV container. The payload must hold whole
// frames of the given format.
func WriteWAV(w io.WriteSeeker, format Format, pcm []byte) error {
	if err := format.Validate(); err != nil {
		return err
	}
	if len(pcm)%format.FrameSize() != 0 {
		return fmt.Errorf("%w: payload of %d bytes is not a whole number of %d-byte frames", ErrUnsupportedFormat, len(pcm), format.FrameSize())
	}

	enc := wav.NewEncoder(w, format.SampleRate, format.BitDepth(), format.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: format.Channels,
			SampleRate:  format.SampleRate,
		},
		Data:           samplesToInts(format.SampleWidth, pcm),
		SourceBitDepth: format.BitDepth(),
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

func WriteWAVFile(path string, format Format, pcm []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	if err := WriteWAV(f, format, pcm); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func samplesToInts(width int, pcm []byte) []int {
	out := make([]int, 0, len(pcm)/width)
	for i := 0; i+width <= len(pcm); i += width {
		out = append(out, sampleToInt(pcm[i:i+width]))
	}
	return out
}

func sampleToInt(sample []byte) int {
	switch len(sample) {
	case 1:
		return int(sample[0])
	case 2:
		return int(int16(binary.LittleEndian.Uint16(sample)))
	case 3:
		v := int32(sample[0]) | int32(sample[1])<<8 | int32(sample[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return int(v)
	case 4:
		return int(int32(binary.LittleEndian.Uint32(sample)))
	default:
		return 0
	}
}
