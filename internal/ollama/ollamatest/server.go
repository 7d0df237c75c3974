// Package ollamatest provides an in-process fake of the Ollama HTTP API for
// tests.
package ollamatest

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/recall/internal/memory/inmem"
	"github.com/blueberrycongee/recall/pkg/types"
)

// Model describes a model served by the fake.
type Model struct {
	Name         string
	Families     []string
	Capabilities []string
	Template     string
	// ShowStatus, when non-zero, makes /api/show fail for this model.
	ShowStatus int
}

// RecordedRequest stores information about a received request.
type RecordedRequest struct {
	Method string
	Path   string
	Body   []byte
	Time   time.Time
}

// Server is a fake Ollama runtime.
type Server struct {
	server *httptest.Server

	mu          sync.Mutex
	models      []Model
	requests    []RecordedRequest
	tagsStatus  int
	embedStatus int
	chatStatus  int
	chatChunks  []string
	embed       func(model, prompt string) []float64
}

// NewServer creates and starts a fake serving models. Embeddings are
// deterministic keyword vectors.
func NewServer(models ...Model) *Server {
	s := &Server{
		models:     models,
		chatChunks: []string{"Hel", "lo"},
		embed: func(model, prompt string) []float64 {
			vec := inmem.KeywordVector(model, prompt, inmem.DefaultDimensions)
			out := make([]float64, len(vec))
			for i, v := range vec {
				out[i] = float64(v)
			}
			return out
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tags", s.handleTags)
	mux.HandleFunc("POST /api/show", s.handleShow)
	mux.HandleFunc("POST /api/embeddings", s.handleEmbeddings)
	mux.HandleFunc("POST /api/chat", s.handleChat)

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		mux.ServeHTTP(w, r)
	}))
	return s
}

// URL returns the base URL of the fake.
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the fake down.
func (s *Server) Close() {
	s.server.Close()
}

// SetModels replaces the catalog.
func (s *Server) SetModels(models ...Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = models
}

// SetTagsStatus makes /api/tags answer with code. Zero restores 200.
func (s *Server) SetTagsStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tagsStatus = code
}

// SetEmbedStatus makes /api/embeddings answer with code. Zero restores 200.
func (s *Server) SetEmbedStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embedStatus = code
}

// SetEmbedFunc overrides how embeddings are computed.
func (s *Server) SetEmbedFunc(fn func(model, prompt string) []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embed = fn
}

// SetChat configures /api/chat. A non-zero status is returned with an error
// body; otherwise chunks are streamed as NDJSON messages.
func (s *Server) SetChat(status int, chunks ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatStatus = status
	if len(chunks) > 0 {
		s.chatChunks = chunks
	}
}

// Requests returns all recorded requests.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many requests hit path.
func (s *Server) Count(path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// Reset clears recorded requests.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = s.requests[:0]
}

func (s *Server) record(r *http.Request) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Body:   body,
		Time:   time.Now(),
	})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := s.tagsStatus
	models := append([]Model(nil), s.models...)
	s.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		writeJSON(w, status, map[string]string{"error": "catalog unavailable"})
		return
	}
	resp := types.TagsResponse{Models: make([]types.ModelEntry, 0, len(models))}
	for _, m := range models {
		resp.Models = append(resp.Models, types.ModelEntry{Name: m.Name, Model: m.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	var req types.ShowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	var found *Model
	for i := range s.models {
		if s.models[i].Name == req.Name {
			m := s.models[i]
			found = &m
			break
		}
	}
	s.mu.Unlock()

	switch {
	case found == nil:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "model '" + req.Name + "' not found"})
		return
	case found.ShowStatus != 0:
		writeJSON(w, found.ShowStatus, map[string]string{"error": "show failed"})
		return
	}

	families := make([]any, 0, len(found.Families))
	for _, f := range found.Families {
		families = append(families, f)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model_info":   map[string]any{"families": families, "general.architecture": "test"},
		"capabilities": found.Capabilities,
		"template":     found.Template,
	})
}

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req types.EmbeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	status := s.embedStatus
	embed := s.embed
	s.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		writeJSON(w, status, map[string]string{"error": "embedding failed"})
		return
	}
	writeJSON(w, http.StatusOK, types.EmbeddingResponse{Embedding: embed(req.Model, req.Prompt)})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	status := s.chatStatus
	chunks := append([]string(nil), s.chatChunks...)
	s.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		writeJSON(w, status, map[string]string{"error": "model '" + req.Model + "' not found"})
		return
	}

	if !req.Stream {
		writeJSON(w, http.StatusOK, chatMessage(req.Model, strings.Join(chunks, ""), true))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, c := range chunks {
		line, _ := json.Marshal(chatMessage(req.Model, c, false))
		_, _ = w.Write(append(line, '\n'))
		if flusher != nil {
			flusher.Flush()
		}
	}
	line, _ := json.Marshal(chatMessage(req.Model, "", true))
	_, _ = w.Write(append(line, '\n'))
}

func chatMessage(model, content string, done bool) map[string]any {
	return map[string]any{
		"model":   model,
		"message": map[string]string{"role": "assistant", "content": content},
		"done":    done,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
