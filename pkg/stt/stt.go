// Package stt transcribes recorded speech.
package stt

import (
	"context"
	"errors"
	"io"
)

// ErrNoTranscript is returned when the audio could not be recognized or
// contained no speech.
var ErrNoTranscript = errors.New("stt: no transcript")

// Transcriber converts recorded audio to text.
type Transcriber interface {
	// Transcribe reads an encoded audio file (WAV) named filename and
	// returns the recognized text.
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}
