package handler

import (
	"net/http"

	"github.com/Rrens/voice-agent/internal/api/response"
	"github.com/Rrens/voice-agent/internal/service"
)

// DocumentHandler handles document uploads for retrieval
type DocumentHandler struct {
	callService *service.CallService
	maxBytes    int64
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(callService *service.CallService, maxUploadMB int64) *DocumentHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &DocumentHandler{callService: callService, maxBytes: maxUploadMB << 20}
}

// UploadPDF handles POST /upload-pdf/. A call_id form field scopes the
// document to that call; without it the document is shared by every call.
func (h *DocumentHandler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		response.BadRequest(w, "invalid multipart form or file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "no file uploaded")
		return
	}
	defer file.Close()

	resp, err := h.callService.UploadDocument(r.Context(), r.FormValue("call_id"), header.Filename, file, header.Size)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, resp)
}
