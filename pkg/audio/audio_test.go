package audio_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mirelo-dev/cantora/pkg/audio"
)

// sine-ish ramp; content is irrelevant, only framing and sample math matter.
func testClip(samples, rate, channels int) audio.Clip {
	pcm := make([]byte, samples*channels*2)
	for i := 0; i < samples*channels; i++ {
		v := int16(i % 1000)
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}
	return audio.Clip{PCM: pcm, SampleRate: rate, Channels: channels}
}

func TestWAV_RoundTrip(t *testing.T) {
	t.Parallel()

	in := testClip(1600, 16000, 1)
	data, err := audio.EncodeWAV(in)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	out, err := audio.DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if out.SampleRate != in.SampleRate || out.Channels != in.Channels {
		t.Errorf("format = %dHz/%dch, want %dHz/%dch", out.SampleRate, out.Channels, in.SampleRate, in.Channels)
	}
	if !bytes.Equal(out.PCM, in.PCM) {
		t.Error("PCM data changed across encode/decode")
	}
}

func TestDecodeWAV_SkipsUnknownChunks(t *testing.T) {
	t.Parallel()

	in := testClip(100, 8000, 1)
	data, err := audio.EncodeWAV(in)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	// Splice a LIST chunk between fmt and data (offset 36 in the canonical
	// 44-byte header layout).
	list := []byte{'L', 'I', 'S', 'T', 4, 0, 0, 0, 'I', 'N', 'F', 'O'}
	spliced := append(append(append([]byte{}, data[:36]...), list...), data[36:]...)
	// Patch the RIFF size.
	riffSize := uint32(len(spliced) - 8)
	spliced[4] = byte(riffSize)
	spliced[5] = byte(riffSize >> 8)
	spliced[6] = byte(riffSize >> 16)
	spliced[7] = byte(riffSize >> 24)

	out, err := audio.DecodeWAV(bytes.NewReader(spliced))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if !bytes.Equal(out.PCM, in.PCM) {
		t.Error("PCM data changed when LIST chunk present")
	}
}

func TestDecodeWAV_NotWAV(t *testing.T) {
	t.Parallel()

	if _, err := audio.DecodeWAV(bytes.NewReader([]byte("ID3\x03rest-of-an-mp3-file"))); !errors.Is(err, audio.ErrNotWAV) {
		t.Errorf("err = %v, want ErrNotWAV", err)
	}
}

func TestToMono_AveragesChannels(t *testing.T) {
	t.Parallel()

	// One frame: L=100, R=300 → mono 200.
	stereo := audio.Clip{
		PCM:        []byte{100, 0, 44, 1}, // 100, 300 little-endian
		SampleRate: 16000,
		Channels:   2,
	}
	mono := audio.ToMono(stereo)
	if mono.Channels != 1 {
		t.Fatalf("Channels = %d, want 1", mono.Channels)
	}
	got := int16(mono.PCM[0]) | int16(mono.PCM[1])<<8
	if got != 200 {
		t.Errorf("downmixed sample = %d, want 200", got)
	}
}

func TestResample_HalvesRate(t *testing.T) {
	t.Parallel()

	in := testClip(32000, 32000, 1)
	out := audio.Resample(in, 16000)
	if out.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", out.SampleRate)
	}
	if got, want := len(out.PCM)/2, 16000; got != want {
		t.Errorf("samples = %d, want %d", got, want)
	}
	if d := out.Duration(); d != time.Second {
		t.Errorf("Duration = %v, want 1s", d)
	}
}

func TestClip_Duration(t *testing.T) {
	t.Parallel()

	c := testClip(48000, 48000, 2)
	if d := c.Duration(); d != time.Second {
		t.Errorf("Duration = %v, want 1s", d)
	}
	if (audio.Clip{}).Duration() != 0 {
		t.Error("zero clip should have zero duration")
	}
}

func TestTakeDir_RecordsFromFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clip := testClip(800, 16000, 1)
	data, err := audio.EncodeWAV(clip)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "line-0.wav"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	rec, err := audio.NewTakeDir(dir)
	if err != nil {
		t.Fatalf("NewTakeDir: %v", err)
	}

	got, err := rec.Record(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !bytes.Equal(got.PCM, clip.PCM) {
		t.Error("take PCM does not match file contents")
	}

	if _, err := rec.Record(context.Background(), 1, 0); err == nil {
		t.Error("Record for missing take should fail")
	}
}

func TestTakeDir_MissingDir(t *testing.T) {
	t.Parallel()

	if _, err := audio.NewTakeDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("NewTakeDir should fail for a missing directory")
	}
}
