package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rrens/voice-agent/internal/api/response"
	"github.com/Rrens/voice-agent/internal/domain"
	"github.com/Rrens/voice-agent/internal/service"
)

// CallHandler handles the call lifecycle endpoints
type CallHandler struct {
	callService *service.CallService
}

// NewCallHandler creates a new call handler
func NewCallHandler(callService *service.CallService) *CallHandler {
	return &CallHandler{callService: callService}
}

// StartCall handles POST /start-call
func (h *CallHandler) StartCall(w http.ResponseWriter, r *http.Request) {
	var input domain.StartCallRequest
	if !decodeAndValidate(w, r, &input) {
		return
	}

	resp, err := h.callService.StartCall(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Created(w, resp)
}

// Respond handles POST /respond/{callID}
func (h *CallHandler) Respond(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")

	var input domain.RespondRequest
	if !decodeAndValidate(w, r, &input) {
		return
	}

	resp, err := h.callService.Respond(r.Context(), callID, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, resp)
}

// Conversation handles GET /conversation/{callID}
func (h *CallHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	resp, err := h.callService.Conversation(r.Context(), chi.URLParam(r, "callID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, resp)
}

// ArchivedConversation handles GET /conversation/{callID}/archive
func (h *CallHandler) ArchivedConversation(w http.ResponseWriter, r *http.Request) {
	resp, err := h.callService.ArchivedConversation(r.Context(), chi.URLParam(r, "callID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, resp)
}

// EndCall handles DELETE /conversation/{callID}
func (h *CallHandler) EndCall(w http.ResponseWriter, r *http.Request) {
	if err := h.callService.EndCall(r.Context(), chi.URLParam(r, "callID")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.NoContent(w)
}

// Reground handles POST /conversation/{callID}/reground
func (h *CallHandler) Reground(w http.ResponseWriter, r *http.Request) {
	includeAudio := r.URL.Query().Get("include_audio") == "true"

	result, err := h.callService.RegroundLastReply(r.Context(), chi.URLParam(r, "callID"), includeAudio)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := domain.RegroundResponse{
		Replaced: result.Replaced,
		Reply:    result.Reply,
		Source:   result.Source,
	}
	if result.Audio != nil {
		resp.AudioBase64 = result.Audio.Base64()
	}
	response.OK(w, resp)
}
