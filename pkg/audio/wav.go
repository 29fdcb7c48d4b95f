package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// wavHeaderSize is the byte length of the canonical RIFF/fmt/data header
// written by EncodeWAV.
const wavHeaderSize = 44

// ErrNotWAV is returned when decoded input is not a RIFF/WAVE container.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE file")

// EncodeWAV wraps the clip's PCM data in a minimal 16-bit PCM WAV container.
// STT backends that accept file uploads (whisper.cpp server, Deepgram,
// OpenAI) all take this framing.
func EncodeWAV(c Clip) ([]byte, error) {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return nil, fmt.Errorf("audio: encode wav: invalid format %dHz/%dch", c.SampleRate, c.Channels)
	}
	if len(c.PCM)%2 != 0 {
		return nil, fmt.Errorf("audio: encode wav: odd PCM byte count %d", len(c.PCM))
	}

	byteRate := c.SampleRate * c.Channels * 2
	blockAlign := c.Channels * 2

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(c.PCM)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(c.PCM)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(c.Channels))
	binary.Write(buf, binary.LittleEndian, uint32(c.SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(16)) // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(c.PCM)))
	buf.Write(c.PCM)

	return buf.Bytes(), nil
}

// DecodeWAV parses a 16-bit PCM WAV stream into a Clip. Non-PCM encodings
// and bit depths other than 16 are rejected; unknown chunks (LIST, fact, …)
// are skipped.
func DecodeWAV(r io.Reader) (Clip, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Clip{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Clip{}, ErrNotWAV
	}

	var (
		clip   Clip
		gotFmt bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return Clip{}, fmt.Errorf("audio: decode wav: chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			fmtChunk := make([]byte, size)
			if _, err := io.ReadFull(r, fmtChunk); err != nil {
				return Clip{}, fmt.Errorf("audio: decode wav: fmt chunk: %w", err)
			}
			if size < 16 {
				return Clip{}, fmt.Errorf("audio: decode wav: fmt chunk too short (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(fmtChunk[0:2])
			if format != 1 {
				return Clip{}, fmt.Errorf("audio: decode wav: unsupported format code %d (want PCM)", format)
			}
			bits := binary.LittleEndian.Uint16(fmtChunk[14:16])
			if bits != 16 {
				return Clip{}, fmt.Errorf("audio: decode wav: unsupported bit depth %d (want 16)", bits)
			}
			clip.Channels = int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
			gotFmt = true

		case "data":
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return Clip{}, fmt.Errorf("audio: decode wav: data chunk: %w", err)
			}
			clip.PCM = data

		default:
			// Skip unknown chunk, honouring RIFF word alignment.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return Clip{}, fmt.Errorf("audio: decode wav: skip %q chunk: %w", id, err)
			}
		}
	}

	if !gotFmt {
		return Clip{}, fmt.Errorf("audio: decode wav: missing fmt chunk")
	}
	if clip.Channels <= 0 || clip.SampleRate <= 0 {
		return Clip{}, fmt.Errorf("audio: decode wav: invalid format %dHz/%dch", clip.SampleRate, clip.Channels)
	}
	return clip, nil
}
