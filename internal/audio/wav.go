package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

var ErrMalformed = errors.New("malformed wav payload")

// Info describes a probed WAV payload.
type Info struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataBytes     int
}

// Duration estimates the audio duration from the data chunk size.
func (i Info) Duration() time.Duration {
	byteRate := i.SampleRate * i.Channels * i.BitsPerSample / 8
	if byteRate <= 0 {
		return 0
	}
	return time.Duration(float64(i.DataBytes) / float64(byteRate) * float64(time.Second))
}

// IsWAV reports whether the payload starts with a RIFF/WAVE header.
func IsWAV(b []byte) bool {
	return len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE"))
}

// ProbeWAV validates a RIFF/WAVE payload and extracts its format. Uploaded
// chunks claiming to be WAV must parse, have a PCM fmt chunk and a non-empty
// data chunk; anything else is malformed.
func ProbeWAV(b []byte) (Info, error) {
	if !IsWAV(b) {
		return Info{}, ErrMalformed
	}

	var (
		info    Info
		sawFmt  bool
		sawData bool
	)
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(b) {
			return Info{}, ErrMalformed
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Info{}, ErrMalformed
			}
			info.Channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(b[body+14 : body+16]))
			if info.Channels <= 0 || info.SampleRate <= 0 || info.BitsPerSample <= 0 {
				return Info{}, ErrMalformed
			}
			sawFmt = true
		case "data":
			info.DataBytes = size
			sawData = true
		}

		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !sawFmt || !sawData || info.DataBytes == 0 {
		return Info{}, ErrMalformed
	}
	return info, nil
}
