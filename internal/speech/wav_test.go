package speech

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCMToWAV(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}

	wav := PCMToWAV(pcm, 24000, 16, 1)
	require.Len(t, wav, 48)

	info, err := ParseWAVHeader(wav)
	require.NoError(t, err)
	assert.Equal(t, 24000, info.SampleRate)
	assert.Equal(t, 16, info.BitsPerSample)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, 4, info.DataSize)
	assert.Equal(t, pcm, wav[44:])
}

func TestPCMToWAV_DropsPartialFrame(t *testing.T) {
	wav := PCMToWAV([]byte{0x01, 0x02, 0x03}, 24000, 16, 1)

	info, err := ParseWAVHeader(wav)
	require.NoError(t, err)
	assert.Equal(t, 2, info.DataSize)
	assert.Len(t, wav, 46)
}

func TestNewAudio(t *testing.T) {
	audio := NewAudio(make([]byte, 480))

	assert.Equal(t, "audio/wav", audio.ContentType())
	assert.Equal(t, 24000, audio.SampleRate)

	info, err := ParseWAVHeader(audio.Data)
	require.NoError(t, err)
	assert.Equal(t, 24000, info.SampleRate)
	assert.Equal(t, 16, info.BitsPerSample)
	assert.Equal(t, 1, info.Channels)

	r := audio.Reader()
	head := make([]byte, 4)
	_, err = io.ReadFull(r, head)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(head))

	// seekable back to the start
	_, err = r.Seek(0, io.SeekStart)
	require.NoError(t, err)
	all, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, audio.Data, all)
}

func TestParseWAVHeader_Invalid(t *testing.T) {
	_, err := ParseWAVHeader([]byte("RIFF"))
	assert.ErrorIs(t, err, ErrInvalidWAV)

	bad := PCMToWAV(nil, 24000, 16, 1)
	copy(bad[8:12], "AVI ")
	_, err = ParseWAVHeader(bad)
	assert.ErrorIs(t, err, ErrInvalidWAV)
}

func TestAudio_Duration(t *testing.T) {
	// one second of 24kHz 16-bit mono
	audio := NewAudio(make([]byte, 48000))
	assert.Equal(t, time.Second, audio.Duration())

	half := NewAudio(make([]byte, 24000))
	assert.Equal(t, 500*time.Millisecond, half.Duration())

	broken := &Audio{Data: []byte("RIFF")}
	assert.Zero(t, broken.Duration())
}
