// Package proxy serves the chat dispatcher over HTTP so the upstream API key
// stays on the server. It exposes an OpenAI-compatible completion endpoint
// and a broadcast endpoint that fans one prompt out to many models.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"polychat/internal/db"
	"polychat/internal/dispatch"
	"polychat/internal/models"
)

const maxBodyBytes = 1 << 20

// StatsSource supplies per-model aggregates for GET /stats
type StatsSource interface {
	ModelStats() ([]db.ModelStats, error)
}

// Server handles proxy requests
type Server struct {
	catalog    *models.Catalog
	dispatcher *dispatch.Dispatcher
	stats      StatsSource

	mu         sync.Mutex
	httpServer *http.Server
}

// New creates a proxy that forwards through d
func New(catalog *models.Catalog, d *dispatch.Dispatcher) *Server {
	s := &Server{
		catalog:    catalog,
		dispatcher: d,
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// WithStats enables GET /stats
func (s *Server) WithStats(src StatsSource) *Server {
	s.stats = src
	return s
}

// Handler returns the routing table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/chat/completions", s.handleCompletions)
	mux.HandleFunc("/api/broadcast", s.handleBroadcast)
	mux.HandleFunc("/v1/models", s.handleModels)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)

	return mux
}

// ListenAndServe blocks until the server stops. Shutdown makes it return nil,
// including when Shutdown was called first.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	srv := s.httpServer
	srv.Addr = addr
	s.mu.Unlock()

	log.Printf("[proxy] Listening on %s with %d models", addr, s.catalog.Count())

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("proxy server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	return srv.Shutdown(ctx)
}

// ChatRequest is the accepted subset of an OpenAI chat completion body
type ChatRequest struct {
	Model    string           `json:"model"`
	Messages []models.Message `json:"messages"`
}

// ChatChoice is one entry of ChatResponse.Choices
type ChatChoice struct {
	Index        int            `json:"index"`
	Message      models.Message `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

// ChatResponse mirrors the OpenAI chat completion response shape
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

// BroadcastRequest asks for one prompt to be sent to several models.
// An empty Models list means every catalog model.
type BroadcastRequest struct {
	Prompt string   `json:"prompt"`
	Models []string `json:"models,omitempty"`
}

// CardView is one model's outcome in a broadcast
type CardView struct {
	ModelID string `json:"model_id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BroadcastResponse reports every card of a finished round
type BroadcastResponse struct {
	RoundID string     `json:"round_id"`
	Prompt  string     `json:"prompt"`
	Cards   []CardView `json:"cards"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}
	for i, m := range req.Messages {
		if !m.Role.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("messages[%d]: invalid role %q", i, m.Role))
			return
		}
	}
	model, ok := s.catalog.Get(req.Model)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown model %q", req.Model))
		return
	}

	id := "chatcmpl-" + uuid.NewString()
	res := s.dispatcher.Do(r.Context(), dispatch.Request{
		Key:      dispatch.CardKey{ModelID: model.ID, RoundID: id},
		Model:    model,
		Messages: req.Messages,
		Focused:  len(req.Messages) > 1,
	})
	if res.Err != nil {
		writeError(w, http.StatusBadGateway, models.ErrorMessage(res.Err))
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model.ID,
		Choices: []ChatChoice{{
			Index:        0,
			Message:      models.AssistantMessage(res.Content),
			FinishReason: "stop",
		}},
	})
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req BroadcastRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// each call gets its own session; nothing is shared between requests
	session := dispatch.NewSession(s.catalog, dispatch.Options{})
	if len(req.Models) > 0 {
		sel, err := s.selectOnly(session.Selection(), req.Models)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		session = session.WithSelection(sel)
	}

	session, reqs, err := session.Submit(req.Prompt, time.Now())
	switch {
	case errors.Is(err, dispatch.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, "prompt must not be empty")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	for res := range s.dispatcher.Run(r.Context(), reqs) {
		session = session.Resolve(res)
	}

	round, _ := session.LatestRound()
	resp := BroadcastResponse{
		RoundID: round.ID,
		Prompt:  round.Prompt,
		Cards:   make([]CardView, 0, len(round.Cards)),
	}
	for _, c := range round.Cards {
		resp.Cards = append(resp.Cards, CardView{
			ModelID: c.Model.ID,
			Name:    c.Model.Name,
			Status:  c.Status.String(),
			Content: c.Content,
			Error:   c.Err,
		})
	}

	log.Printf("[proxy] broadcast %s to %d models", round.ID, len(resp.Cards))
	writeJSON(w, http.StatusOK, resp)
}

// selectOnly unchecks everything, then checks the named models
func (s *Server) selectOnly(sel dispatch.Selection, refs []string) (dispatch.Selection, error) {
	for _, c := range sel.Choices() {
		sel, _ = sel.Set(c.Model.ID, false)
	}
	for _, ref := range refs {
		m, ok := s.catalog.Lookup(strings.TrimSpace(ref))
		if !ok {
			return sel, fmt.Errorf("unknown model %q", ref)
		}
		sel, _ = sel.Set(m.ID, true)
	}
	return sel, nil
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		Name    string `json:"name"`
		OwnedBy string `json:"owned_by"`
	}

	data := make([]modelEntry, 0, s.catalog.Count())
	for _, m := range s.catalog.All() {
		owner, _, _ := strings.Cut(m.ID, "/")
		data = append(data, modelEntry{ID: m.ID, Object: "model", Name: m.Name, OwnedBy: owner})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"object": "list",
		"data":   data,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "polychat-proxy",
		"models":    s.catalog.Count(),
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.stats == nil {
		writeError(w, http.StatusNotFound, "stats are disabled")
		return
	}

	stats, err := s.stats.ModelStats()
	if err != nil {
		log.Printf("[proxy] failed to read stats: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}

	type statEntry struct {
		ModelID      string  `json:"model_id"`
		Requests     int     `json:"requests"`
		Failures     int     `json:"failures"`
		AvgLatencyMs float64 `json:"avg_latency_ms"`
	}
	out := make([]statEntry, 0, len(stats))
	for _, st := range stats {
		out = append(out, statEntry{
			ModelID:      st.ModelID,
			Requests:     st.Requests,
			Failures:     st.Failures,
			AvgLatencyMs: float64(st.AvgLatency) / float64(time.Millisecond),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"models": out})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[proxy] failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var body errorBody
	body.Error.Message = msg
	body.Error.Type = "proxy_error"
	writeJSON(w, status, body)
}
