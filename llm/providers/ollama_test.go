package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/paperdraft/llm"
)

func TestOllamaBuildURL(t *testing.T) {
	p := &OllamaProvider{}

	assert.Equal(t, "http://example.com/api/generate", p.BuildURL("http://example.com", llm.ModeCompletion))
	assert.Equal(t, "http://example.com/api/chat", p.BuildURL("http://example.com", llm.ModeChat))
	assert.Equal(t, "http://example.com/api/generate", p.BuildURL("http://example.com/", llm.ModeCompletion))
	assert.Equal(t, "http://localhost:11434/api/generate", p.BuildURL("", llm.ModeCompletion))
}

func TestOllamaBuildRequestBodyGenerate(t *testing.T) {
	p := &OllamaProvider{}

	body, err := p.BuildRequestBody(llm.Request{
		Mode:   llm.ModeCompletion,
		Model:  "phi3",
		Prompt: "Convert these bullets.",
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "phi3", decoded["model"])
	assert.Equal(t, "Convert these bullets.", decoded["prompt"])
	assert.Equal(t, false, decoded["stream"])
	assert.NotContains(t, decoded, "messages")
}

func TestOllamaBuildRequestBodyChat(t *testing.T) {
	p := &OllamaProvider{}

	body, err := p.BuildRequestBody(llm.Request{
		Mode:  llm.ModeChat,
		Model: "phi3",
		Messages: []llm.Message{
			{Role: "system", Content: "instruction"},
			{Role: "user", Content: "question"},
		},
	})
	require.NoError(t, err)

	var decoded struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "phi3", decoded.Model)
	assert.False(t, decoded.Stream)
	require.Len(t, decoded.Messages, 2)
	assert.Equal(t, "system", decoded.Messages[0].Role)
	assert.Equal(t, "question", decoded.Messages[1].Content)
}

func TestOllamaParseResponse(t *testing.T) {
	p := &OllamaProvider{}

	resp, err := p.ParseResponse([]byte(`{"model":"phi3","response":"Prose.","done":true}`), llm.ModeCompletion)
	require.NoError(t, err)
	assert.Equal(t, "Prose.", resp.Content)
	assert.Equal(t, "phi3", resp.Model)

	resp, err = p.ParseResponse([]byte(`{"model":"phi3","message":{"role":"assistant","content":"Reply."},"done":true}`), llm.ModeChat)
	require.NoError(t, err)
	assert.Equal(t, "Reply.", resp.Content)

	_, err = p.ParseResponse([]byte("garbage"), llm.ModeCompletion)
	assert.Error(t, err)
}

func TestOllamaSetHeaders(t *testing.T) {
	p := &OllamaProvider{}

	req, err := http.NewRequest(http.MethodPost, "http://localhost:11434/api/generate", nil)
	require.NoError(t, err)

	p.SetHeaders(req)
	assert.Empty(t, req.Header.Get("Authorization"))

	t.Setenv("OLLAMA_API_KEY", "secret")
	p.SetHeaders(req)
	assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
}

func TestOllamaRegistered(t *testing.T) {
	assert.NotNil(t, llm.GetProvider("ollama"))
	assert.Contains(t, llm.ListProviders(), "ollama")
}
