package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/voice-agent/internal/api/response"
	"github.com/Rrens/voice-agent/internal/domain"
	"github.com/Rrens/voice-agent/internal/service"
	"github.com/Rrens/voice-agent/internal/speech"
)

const maxAudioBytes = 25 << 20

// VoiceHandler handles speech endpoints
type VoiceHandler struct {
	callService *service.CallService
}

// NewVoiceHandler creates a new voice handler
func NewVoiceHandler(callService *service.CallService) *VoiceHandler {
	return &VoiceHandler{callService: callService}
}

// VoiceResponse handles POST /voice-response/ and streams back a WAV file
func (h *VoiceHandler) VoiceResponse(w http.ResponseWriter, r *http.Request) {
	var input domain.VoiceRequest
	if !decodeAndValidate(w, r, &input) {
		return
	}

	audio, err := h.callService.Synthesize(r.Context(), input.Message, speech.SynthesizeOptions{
		Voice: input.Voice,
		Tone:  input.Tone,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", audio.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.Header().Set("X-Audio-Duration-Ms", strconv.FormatInt(audio.Duration().Milliseconds(), 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, audio.Reader()); err != nil {
		log.Warn().Err(err).Msg("Failed to stream audio")
	}
}

// Transcribe handles POST /transcribe/
func (h *VoiceHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	audio, filename, ok := readAudio(w, r)
	if !ok {
		return
	}

	text, err := h.callService.Transcribe(r.Context(), audio, filename)
	if err != nil {
		log.Warn().Err(err).Str("file", filename).Msg("Transcription failed")
		response.Unprocessable(w, service.RepeatPrompt)
		return
	}

	response.OK(w, domain.TranscriptionResponse{Transcription: text})
}

// VoiceTurn handles POST /voice-turn/{callID}: recorded audio in, reply text
// and speech out
func (h *VoiceHandler) VoiceTurn(w http.ResponseWriter, r *http.Request) {
	audio, filename, ok := readAudio(w, r)
	if !ok {
		return
	}

	result, err := h.callService.HandleTurn(r.Context(), service.TurnInput{
		CallID:        chi.URLParam(r, "callID"),
		Audio:         audio,
		AudioFilename: filename,
		IncludeAudio:  true,
		Voice:         r.FormValue("voice"),
		Tone:          r.FormValue("tone"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := domain.VoiceTurnResponse{
		Transcription: result.Transcription,
		Reply:         result.Reply,
		ShouldEndCall: result.ShouldEndCall,
		Source:        result.Source,
		Fallback:      result.Fallback,
	}
	if result.Audio != nil {
		resp.AudioBase64 = result.Audio.Base64()
	}
	response.OK(w, resp)
}

// readAudio reads the "file" part of a multipart upload
func readAudio(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		response.BadRequest(w, "invalid multipart form or file too large")
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "no file uploaded")
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.BadRequest(w, "failed to read audio")
		return nil, "", false
	}
	return data, header.Filename, true
}
