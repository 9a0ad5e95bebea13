package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/models"
	"github.com/markdave123-py/chunkenizer/internal/services"
)

type DocumentHandler struct {
	ingest *services.IngestService
	docs   *services.DocumentService
}

func NewDocumentHandler(ingest *services.IngestService, docs *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, docs: docs}
}

type uploadResponse struct {
	Message string `json:"message"`
	*models.IngestionResult
}

// UploadDocument ingests the multipart field "file". Optional fields are
// "metadata_json" (a JSON object) and "force_reindex" (a boolean).
// total_tokens in the response counts the document text once, so it is
// less than the sum of chunk token counts when chunks overlap.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, fmt.Errorf("%w: parse upload: %w", core.ErrMalformedInput, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: missing file field", core.ErrMalformedInput))
		return
	}
	defer file.Close()

	opts := services.UploadOptions{
		Name:        filepath.Base(header.Filename),
		ContentType: header.Header.Get("Content-Type"),
	}
	if raw := strings.TrimSpace(r.FormValue("metadata_json")); raw != "" {
		opts.Metadata = json.RawMessage(raw)
	}
	if raw := r.FormValue("force_reindex"); raw != "" {
		force, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: force_reindex must be a boolean", core.ErrMalformedInput))
			return
		}
		opts.ForceReindex = force
	}

	res, err := h.ingest.IngestReader(r.Context(), file, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if res.AlreadyExisted {
		writeJSON(w, http.StatusOK, uploadResponse{Message: "Document already exists", IngestionResult: res})
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Message: "Document ingested successfully", IngestionResult: res})
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "total": len(docs)})
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.docs.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted successfully", "document_id": id})
}

// DownloadDocument streams the archived original upload.
func (h *DocumentHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	rc, doc, err := h.docs.OpenRaw(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	if doc.ContentType != "" {
		w.Header().Set("Content-Type", doc.ContentType)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("DocumentHandler: stream %s: %v", doc.ID, err)
	}
}
