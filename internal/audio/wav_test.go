package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// buildWAV assembles a minimal PCM16 mono WAV payload for tests.
func buildWAV(t *testing.T, sampleRate int, pcm []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

func TestProbeWAV(t *testing.T) {
	pcm := make([]byte, 32000) // one second at 16kHz PCM16 mono
	payload := buildWAV(t, 16000, pcm)

	info, err := ProbeWAV(payload)
	if err != nil {
		t.Fatalf("ProbeWAV() error = %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.BitsPerSample != 16 {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.DataBytes != len(pcm) {
		t.Fatalf("DataBytes = %d, want %d", info.DataBytes, len(pcm))
	}
	if d := info.Duration(); d < 990*time.Millisecond || d > 1010*time.Millisecond {
		t.Fatalf("Duration = %v, want ~1s", d)
	}
}

func TestProbeWAVMalformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":          nil,
		"not riff":       []byte("OGGS....WAVE"),
		"truncated":      buildWAV(t, 16000, make([]byte, 100))[:20],
		"no data":        buildWAV(t, 16000, nil),
		"header only":    []byte("RIFF\x00\x00\x00\x00WAVE"),
		"oversize chunk": append(buildWAV(t, 16000, make([]byte, 4))[:40], 0xFF, 0xFF, 0xFF, 0x7F),
	}
	for name, payload := range cases {
		if _, err := ProbeWAV(payload); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: error = %v, want ErrMalformed", name, err)
		}
	}
}

func TestIsWAV(t *testing.T) {
	if !IsWAV(buildWAV(t, 8000, make([]byte, 10))) {
		t.Fatalf("valid payload not recognized")
	}
	if IsWAV([]byte("raw pcm bytes")) {
		t.Fatalf("non-wav payload recognized as wav")
	}
}
