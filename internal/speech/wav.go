package speech

import (
	"encoding/binary"
	"errors"
)

// Output format of synthesized speech
const (
	SampleRate    = 24000
	BitsPerSample = 16
	Channels      = 1
)

const wavHeaderSize = 44

// ErrInvalidWAV is returned by ParseWAVHeader for data that is not a
// canonical PCM WAV file
var ErrInvalidWAV = errors.New("invalid wav header")

// PCMToWAV wraps raw little-endian PCM samples with a 44 byte WAV header
func PCMToWAV(pcm []byte, sampleRate, bitsPerSample, channels int) []byte {
	blockAlign := channels * bitsPerSample / 8
	if blockAlign > 0 {
		// drop a trailing partial frame
		pcm = pcm[:len(pcm)-len(pcm)%blockAlign]
	}

	dataLen := len(pcm)
	byteRate := sampleRate * blockAlign

	header := make([]byte, wavHeaderSize, wavHeaderSize+dataLen)

	// RIFF chunk descriptor
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")

	// fmt sub-chunk
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample))

	// data sub-chunk
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	return append(header, pcm...)
}

// NewAudio packages PCM from the speech provider in the service's output format
func NewAudio(pcm []byte) *Audio {
	return &Audio{
		Data:          PCMToWAV(pcm, SampleRate, BitsPerSample, Channels),
		SampleRate:    SampleRate,
		BitsPerSample: BitsPerSample,
		Channels:      Channels,
	}
}

// WAVInfo is the format block of a WAV header
type WAVInfo struct {
	SampleRate    int
	BitsPerSample int
	Channels      int
	DataSize      int
}

// ParseWAVHeader reads the format of a canonical 44 byte header
func ParseWAVHeader(data []byte) (WAVInfo, error) {
	if len(data) < wavHeaderSize ||
		string(data[0:4]) != "RIFF" ||
		string(data[8:12]) != "WAVE" ||
		string(data[12:16]) != "fmt " ||
		string(data[36:40]) != "data" {
		return WAVInfo{}, ErrInvalidWAV
	}

	return WAVInfo{
		Channels:      int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(data[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(data[34:36])),
		DataSize:      int(binary.LittleEndian.Uint32(data[40:44])),
	}, nil
}
