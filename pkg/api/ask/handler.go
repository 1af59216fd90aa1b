// Package ask exposes the question-answering engine over HTTP.
package ask

import (
	"encoding/json"
	"fmt"
	"net/http"

	"harbor_insight/pkg/core/engine"
	"harbor_insight/pkg/core/utils"
)

// Handler provides the HTTP handler for the /api/ask endpoint
type Handler struct {
	eng *engine.Engine
}

// NewHandler creates a new ask handler
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{eng: eng}
}

// AskRequest is the user's natural language question
type AskRequest struct {
	Question string `json:"question"`
	Format   string `json:"format,omitempty"` // "text" (default) or "html"
}

// AskResponse is the engine's answer plus provenance
type AskResponse struct {
	RequestID string `json:"request_id"`
	Answer    string `json:"answer"`
	HTML      string `json:"html,omitempty"`
	Status    string `json:"status"`
	Method    string `json:"method"`
	SQL       string `json:"sql,omitempty"`
}

// HandleAsk answers one question per request
func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "Missing question", http.StatusBadRequest)
		return
	}

	result := h.eng.Ask(r.Context(), req.Question)

	resp := AskResponse{
		RequestID: result.RequestID,
		Answer:    result.Answer,
		Status:    result.Status,
		Method:    result.Method,
		SQL:       result.SQL,
	}
	if req.Format == "html" {
		html, err := utils.RenderHTML(result.Answer)
		if err != nil {
			fmt.Printf("[WARNING] request %s: HTML rendering failed: %v\n", result.RequestID, err)
		} else {
			resp.HTML = html
		}
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		fmt.Printf("[WARNING] request %s: failed to write response: %v\n", result.RequestID, err)
	}
}
