// Package openai implements speech.Transcriber and speech.Synthesizer on top
// of the OpenAI audio endpoints.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/Rrens/voice-agent/internal/config"
	"github.com/Rrens/voice-agent/internal/speech"
)

// Client talks to the whisper and TTS endpoints
type Client struct {
	client    *goopenai.Client
	sttModel  string
	translate bool
	ttsModel  string
	voice     string
	tone      string
}

// NewClient creates a speech client. An empty baseURL targets the public API.
func NewClient(apiKey, baseURL string, cfg config.SpeechConfig) *Client {
	clientCfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}

	c := &Client{
		client:    goopenai.NewClientWithConfig(clientCfg),
		sttModel:  cfg.STTModel,
		translate: cfg.Translate,
		ttsModel:  cfg.TTSModel,
		voice:     cfg.Voice,
		tone:      cfg.Tone,
	}
	if c.sttModel == "" {
		c.sttModel = goopenai.Whisper1
	}
	if c.ttsModel == "" {
		c.ttsModel = "gpt-4o-mini-tts"
	}
	if c.voice == "" {
		c.voice = speech.DefaultVoice
	}
	if c.tone == "" {
		c.tone = speech.DefaultTone
	}
	return c
}

// Transcribe converts audio to text. In translate mode the result is English
// regardless of the spoken language.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", speech.ErrNoSpeech
	}
	if filepath.Ext(filename) == "" {
		filename += ".wav"
	}

	req := goopenai.AudioRequest{
		Model:    c.sttModel,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Format:   goopenai.AudioResponseFormatText,
	}

	var (
		resp goopenai.AudioResponse
		err  error
	)
	if c.translate {
		resp, err = c.client.CreateTranslation(ctx, req)
	} else {
		resp, err = c.client.CreateTranscription(ctx, req)
	}
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", speech.ErrNoSpeech
	}
	return text, nil
}

// Synthesize speaks text and returns it as a 24 kHz 16-bit mono WAV
func (c *Client) Synthesize(ctx context.Context, text string, opts speech.SynthesizeOptions) (*speech.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, speech.ErrEmptyText
	}

	voice := opts.Voice
	if voice == "" {
		voice = c.voice
	}
	tone := opts.Tone
	if tone == "" {
		tone = c.tone
	}

	resp, err := c.client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(c.ttsModel),
		Input:          text,
		Voice:          goopenai.SpeechVoice(voice),
		Instructions:   fmt.Sprintf("Speak in a %s tone.", tone),
		ResponseFormat: goopenai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Close()

	pcm, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("speech synthesis returned no audio")
	}

	return speech.NewAudio(pcm), nil
}
