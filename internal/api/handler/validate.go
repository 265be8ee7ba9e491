package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/voice-agent/internal/api/response"
	"github.com/Rrens/voice-agent/internal/domain"
	"github.com/Rrens/voice-agent/internal/rag"
	"github.com/Rrens/voice-agent/internal/service"
	"github.com/Rrens/voice-agent/internal/speech"
)

var validate = validator.New()

// decodeAndValidate reads a JSON body into v and runs its validate tags.
// It writes the 400 response itself and reports whether to continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}

	if err := validate.Struct(v); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fields := make(map[string]string)
			for _, e := range validationErrors {
				field := e.Field()
				switch e.Tag() {
				case "required":
					fields[field] = "field is required"
				case "max":
					fields[field] = "must be at most " + e.Param() + " characters"
				case "oneof":
					fields[field] = "must be one of: " + e.Param()
				default:
					fields[field] = "validation failed on " + e.Tag()
				}
			}
			response.BadRequest(w, fields)
			return false
		}
		response.BadRequest(w, err.Error())
		return false
	}
	return true
}

// writeServiceError maps service errors onto HTTP responses
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		response.NotFound(w, "Invalid call_id")
	case errors.Is(err, service.ErrGeneration):
		response.Error(w, http.StatusBadGateway, service.GenericFallback)
	case errors.Is(err, service.ErrNoArchive):
		response.NotFound(w, "call archive is disabled")
	case errors.Is(err, service.ErrNoIndex):
		response.Error(w, http.StatusConflict, "no document uploaded for this call")
	case errors.Is(err, domain.ErrNoAssistantTurn):
		response.Error(w, http.StatusConflict, "call has no reply yet")
	case errors.Is(err, rag.ErrUnreadableDocument), errors.Is(err, rag.ErrNoText):
		response.Unprocessable(w, err.Error())
	case errors.Is(err, speech.ErrNoSpeech):
		response.Unprocessable(w, service.RepeatPrompt)
	case errors.Is(err, speech.ErrEmptyText):
		response.BadRequest(w, err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		response.InternalError(w, "internal server error")
	}
}
