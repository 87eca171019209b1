// Package providers contains text-generation backend implementations.
// Importing it registers every provider via init().
package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/c360studio/paperdraft/llm"
)

// OllamaProvider implements the native Ollama HTTP API: /api/generate
// for single-prompt completions and /api/chat for message histories.
type OllamaProvider struct{}

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// Name returns the provider identifier.
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// BuildURL constructs the endpoint URL for the given mode.
func (o *OllamaProvider) BuildURL(baseURL string, mode llm.Mode) string {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if mode == llm.ModeChat {
		return baseURL + "/api/chat"
	}
	return baseURL + "/api/generate"
}

// SetHeaders adds provider-specific headers. Ollama itself is
// unauthenticated; a bearer token is forwarded for proxies that front it.
func (o *OllamaProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("OLLAMA_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// generateRequest is the /api/generate request format.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// chatRequest is the /api/chat request format.
type chatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildRequestBody creates the JSON body for the request's mode.
// Streaming is always disabled: the formatter and conversation engine
// consume whole completions.
func (o *OllamaProvider) BuildRequestBody(req llm.Request) ([]byte, error) {
	if req.Mode == llm.ModeChat {
		messages := make([]ollamaMessage, len(req.Messages))
		for i, msg := range req.Messages {
			messages[i] = ollamaMessage{Role: msg.Role, Content: msg.Content}
		}
		return json.Marshal(chatRequest{
			Model:    req.Model,
			Messages: messages,
			Stream:   false,
		})
	}

	return json.Marshal(generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Stream: false,
	})
}

// generateResponse is the /api/generate response format.
type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// chatResponse is the /api/chat response format.
type chatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// ParseResponse extracts the completion text for the request's mode.
func (o *OllamaProvider) ParseResponse(body []byte, mode llm.Mode) (*llm.Response, error) {
	if mode == llm.ModeChat {
		var resp chatResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parse chat response: %w", err)
		}
		return &llm.Response{
			Content: resp.Message.Content,
			Model:   resp.Model,
		}, nil
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse generate response: %w", err)
	}
	return &llm.Response{
		Content: resp.Response,
		Model:   resp.Model,
	}, nil
}
