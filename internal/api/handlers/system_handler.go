package handlers

import (
	"net/http"

	"github.com/markdave123-py/chunkenizer/internal/services"
)

type SystemHandler struct {
	docs           *services.DocumentService
	embeddingModel string
}

func NewSystemHandler(docs *services.DocumentService, embeddingModel string) *SystemHandler {
	return &SystemHandler{docs: docs, embeddingModel: embeddingModel}
}

// Health reports 503 when either store is unreachable.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok", "embedding_model": h.embeddingModel}
	if err := h.docs.Health(r.Context()); err != nil {
		body["status"] = "error"
		body["error"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *SystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.docs.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
