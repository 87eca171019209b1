// Package llm provides a provider-agnostic client for text-generation
// backends. A request is a single bounded round trip: the client never
// retries, and every failure carries caller-usable fallback text so the
// preview and chat always have something to render.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxResponseSize limits the response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// DefaultTimeout bounds a single completion round trip. The backend has
// no server-side deadline, so an unbounded client would hang forever on
// a dead endpoint.
const DefaultTimeout = 120 * time.Second

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Request defines a completion request.
type Request struct {
	// Mode selects the backend operation: completion or chat.
	Mode Mode

	// Model is the model identifier sent to the backend.
	Model string

	// Prompt is the full prompt text. Used in ModeCompletion.
	Prompt string

	// Messages is the ordered chat history, oldest first, with one
	// leading system instruction. Used in ModeChat.
	Messages []Message

	// Fallback is the text substituted for the completion if the call
	// fails: the raw section content for formatting, a static apology
	// for chat. It travels inside the returned error (see FallbackText).
	Fallback string
}

// Response contains the completion result.
type Response struct {
	// Content is the generated text.
	Content string

	// Model is the model that produced the completion.
	Model string
}

// Completer is the calling contract consumed by the formatter and the
// conversation engine. *Client implements it; tests substitute mocks.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client issues single completion round trips to one configured backend.
type Client struct {
	provider   Provider
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a client for the named provider and base URL.
// It returns an error if the provider is not registered.
func NewClient(providerName, baseURL string, opts ...ClientOption) (*Client, error) {
	provider := GetProvider(providerName)
	if provider == nil {
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}

	c := &Client{
		provider: provider,
		baseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Complete sends one completion request. It performs exactly one round
// trip: retry policy belongs to callers, and the callers of this system
// deliberately do not retry. They publish the fallback text instead.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	url := c.provider.BuildURL(c.baseURL, req.Mode)

	body, err := c.provider.BuildRequestBody(req)
	if err != nil {
		return nil, NewTransportError(fmt.Errorf("build request body: %w", err), req.Fallback)
	}

	c.logger.Debug("Sending completion request",
		"provider", c.provider.Name(),
		"model", req.Model,
		"mode", req.Mode,
		"url", url)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewTransportError(fmt.Errorf("create HTTP request: %w", err), req.Fallback)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	c.provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransportError(fmt.Errorf("HTTP request failed: %w", err), req.Fallback)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransportError(fmt.Errorf("read response body: %w", err), req.Fallback)
	}

	if httpResp.StatusCode != http.StatusOK {
		preview := string(respBody)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, NewTransportError(
			fmt.Errorf("backend error (status %d): %s", httpResp.StatusCode, preview),
			req.Fallback)
	}

	resp, err := c.provider.ParseResponse(respBody, req.Mode)
	if err != nil {
		return nil, NewMalformedResponseError(fmt.Errorf("parse response: %w", err), req.Fallback)
	}
	if resp.Content == "" {
		return nil, NewMalformedResponseError(fmt.Errorf("empty completion in response"), req.Fallback)
	}

	return resp, nil
}

func validateRequest(req Request) error {
	if req.Model == "" {
		return fmt.Errorf("model is required")
	}
	switch req.Mode {
	case ModeCompletion:
		if req.Prompt == "" {
			return fmt.Errorf("prompt is required in completion mode")
		}
	case ModeChat:
		if len(req.Messages) == 0 {
			return fmt.Errorf("at least one message is required in chat mode")
		}
	default:
		return fmt.Errorf("unknown request mode: %q", req.Mode)
	}
	return nil
}
