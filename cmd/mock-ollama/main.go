// Package main implements a mock Ollama server for e2e testing.
// It serves /api/generate and /api/chat with deterministic responses,
// eliminating the need for a real model during wiring tests and making
// them fast, deterministic, and offline-capable.
//
// Usage:
//
//	mock-ollama -port 11434 -latency 50ms
//
// Generate requests are answered by a rule-based formatter: each
// non-empty line of the prompt's data block becomes an "It is observed
// that ..." sentence. Chat requests get a canned assistant reply that
// echoes the last user message, so tests can verify the history made
// it onto the wire.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// --- Ollama wire types ---

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Model     string      `json:"model"`
	CreatedAt string      `json:"created_at"`
	Message   chatMessage `json:"message"`
	Done      bool        `json:"done"`
}

// --- Server ---

// capturedRequest stores the key fields of an incoming request for
// test verification via the /requests endpoint.
type capturedRequest struct {
	Endpoint  string        `json:"endpoint"`
	Model     string        `json:"model"`
	Prompt    string        `json:"prompt,omitempty"`
	Messages  []chatMessage `json:"messages,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

type server struct {
	latency time.Duration
	calls   atomic.Int64 // total calls served

	requestsMu sync.Mutex
	requests   []capturedRequest
}

func newServer(latency time.Duration) *server {
	return &server{latency: latency}
}

func (s *server) capture(req capturedRequest) {
	req.Timestamp = time.Now().UnixMilli()
	s.requestsMu.Lock()
	defer s.requestsMu.Unlock()
	s.requests = append(s.requests, req)
}

func main() {
	port := flag.Int("port", 11434, "port to listen on")
	latency := flag.Duration("latency", 0, "artificial delay before each response")
	flag.Parse()

	s := newServer(*latency)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/requests", s.handleRequests)
	mux.HandleFunc("/stats", s.handleStats)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock Ollama server listening on %s (latency=%s)", addr, *latency)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	callNum := s.calls.Add(1)
	log.Printf("[call %d] generate model=%s prompt_len=%d", callNum, req.Model, len(req.Prompt))
	s.capture(capturedRequest{Endpoint: "/api/generate", Model: req.Model, Prompt: req.Prompt})

	if s.latency > 0 {
		time.Sleep(s.latency)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(generateResponse{
		Model:     req.Model,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Response:  formatProse(req.Prompt),
		Done:      true,
	})
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	callNum := s.calls.Add(1)
	log.Printf("[call %d] chat model=%s messages=%d", callNum, req.Model, len(req.Messages))
	s.capture(capturedRequest{Endpoint: "/api/chat", Model: req.Model, Messages: req.Messages})

	if s.latency > 0 {
		time.Sleep(s.latency)
	}

	var lastUser string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUser = req.Messages[i].Content
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(chatResponse{
		Model:     req.Model,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Message: chatMessage{
			Role:    "assistant",
			Content: fmt.Sprintf("Regarding %q: a concise, hedged answer in an academic register.", lastUser),
		},
		Done: true,
	})
}

func (s *server) handleRequests(w http.ResponseWriter, _ *http.Request) {
	s.requestsMu.Lock()
	defer s.requestsMu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.requests)
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{"calls": s.calls.Load()})
}

// formatProse applies the rule-based bullets-to-prose transform to the
// data block of a formatting prompt. Prompts without a recognizable
// data block are transformed whole.
func formatProse(prompt string) string {
	data := prompt
	if i := strings.Index(prompt, "Data:\n"); i >= 0 {
		data = prompt[i+len("Data:\n"):]
	}
	if i := strings.Index(data, "\n\nScientific paragraph:"); i >= 0 {
		data = data[:i]
	}

	var b strings.Builder
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "-")
		line = strings.TrimSuffix(strings.TrimSpace(line), ".")
		fmt.Fprintf(&b, "It is observed that %s. ", line)
	}
	return strings.TrimSpace(b.String())
}
