package audio

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV reads a RIFF/WAV stream and returns its contents as a mono Clip.
// Multi-channel input is downmixed by averaging channels. Both 16-bit and
// 24-bit PCM sources are supported; the decoder normalises to float64.
func DecodeWAV(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Clip{}, fmt.Errorf("audio: not a valid WAV stream")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return Clip{}, fmt.Errorf("audio: wav stream missing format header")
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float64(int(1) << (bitDepth - 1))
	frames := len(buf.Data) / channels

	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for ch := range channels {
			sum += float64(buf.Data[i*channels+ch])
		}
		out[i] = sum / float64(channels) / scale
	}
	return Clip{Samples: out, Rate: buf.Format.SampleRate}, nil
}

// EncodeWAV writes the clip as a 16-bit mono PCM WAV file. The writer must
// support seeking because the RIFF header is finalised on Close.
func EncodeWAV(w io.WriteSeeker, c Clip) error {
	if err := c.Validate(); err != nil {
		return err
	}

	enc := wav.NewEncoder(w, c.Rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: c.Rate},
		SourceBitDepth: 16,
		Data:           make([]int, len(c.Samples)),
	}
	for i, s := range c.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf.Data[i] = int(s * 32767)
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalise wav: %w", err)
	}
	return nil
}

// EncodeWAVBytes encodes the clip into an in-memory WAV file. Used where the
// destination (an HTTP response, say) cannot seek.
func EncodeWAVBytes(c Clip) ([]byte, error) {
	var sb seekBuffer
	if err := EncodeWAV(&sb, c); err != nil {
		return nil, err
	}
	return sb.buf, nil
}

// seekBuffer is a minimal in-memory io.WriteSeeker for the WAV encoder's
// header finalisation.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("audio: invalid seek whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("audio: negative seek position %d", abs)
	}
	b.pos = int(abs)
	return abs, nil
}
