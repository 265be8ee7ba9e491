// Package speech defines the speech-to-text and text-to-speech contracts and
// the audio packaging shared by their implementations.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"time"
)

var (
	// ErrNoSpeech is returned when audio could not be turned into text
	ErrNoSpeech = errors.New("no speech detected")

	// ErrEmptyText is returned when synthesis is asked to speak nothing
	ErrEmptyText = errors.New("text to synthesize is empty")
)

// Default synthesis settings
const (
	DefaultVoice = "nova"
	DefaultTone  = "cheerful and confident"
)

// Transcriber converts recorded audio to text
type Transcriber interface {
	// Transcribe converts audio to text. The filename extension tells the
	// provider which container format the bytes are in.
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// SynthesizeOptions configures synthesis
type SynthesizeOptions struct {
	Voice string
	Tone  string
}

// Synthesizer converts text to spoken audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Audio, error)
}

// Audio is a complete in-memory WAV file
type Audio struct {
	Data          []byte
	SampleRate    int
	BitsPerSample int
	Channels      int
}

// ContentType returns the MIME type of the audio
func (a *Audio) ContentType() string {
	return "audio/wav"
}

// Reader returns a seekable reader positioned at the start of the file
func (a *Audio) Reader() *bytes.Reader {
	return bytes.NewReader(a.Data)
}

// Base64 returns the WAV file encoded for embedding in JSON
func (a *Audio) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// Duration returns the playing time of the audio, or zero when the header
// cannot be read
func (a *Audio) Duration() time.Duration {
	info, err := ParseWAVHeader(a.Data)
	if err != nil {
		return 0
	}
	bytesPerSecond := info.SampleRate * info.Channels * info.BitsPerSample / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(info.DataSize) * time.Second / time.Duration(bytesPerSecond)
}
