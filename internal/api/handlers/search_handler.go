package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/models"
	"github.com/markdave123-py/chunkenizer/internal/services"
)

const defaultTopK = 5

type SearchHandler struct {
	search *services.SearchService
}

func NewSearchHandler(search *services.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// SearchRequest is the POST /search body. top_k defaults to 5 when omitted.
type SearchRequest struct {
	Query   string              `json:"query"`
	TopK    *int                `json:"top_k,omitempty"`
	Filters models.SearchFilter `json:"filters"`
}

type SearchResponse struct {
	Query        string               `json:"query"`
	Results      []models.ScoredChunk `json:"results"`
	TotalResults int                  `json:"total_results"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body: %v", core.ErrInvalidQuery, err))
		return
	}

	topK := defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	hits, err := h.search.Search(r.Context(), req.Query, topK, req.Filters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if hits == nil {
		hits = []models.ScoredChunk{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: req.Query, Results: hits, TotalResults: len(hits)})
}
