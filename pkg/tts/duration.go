package tts

import (
	"bytes"
	"fmt"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Duration decodes the MP3 stream headers to find its playback length.
func MP3Duration(data []byte) (time.Duration, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}
	rate := dec.SampleRate()
	length := dec.Length()
	if rate <= 0 || length <= 0 {
		return 0, fmt.Errorf("decode mp3: unknown length")
	}
	// go-mp3 always decodes to 16-bit stereo: 4 bytes per frame.
	frames := length / 4
	return time.Duration(frames) * time.Second / time.Duration(rate), nil
}

// PCMDuration returns the length of mono PCM16 audio at sampleRate.
func PCMDuration(size, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := size / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// audioDuration computes the playback length for a synthesized buffer.
// Unknown lengths are reported as zero.
func audioDuration(data []byte, format AudioFormat) time.Duration {
	if format.Encoding.IsPCM() {
		return PCMDuration(len(data), format.SampleRate)
	}
	d, err := MP3Duration(data)
	if err != nil {
		return 0
	}
	return d
}
