package llm

import (
	"net/http"
	"sync"
)

// Mode selects which backend operation a request targets.
type Mode string

const (
	// ModeCompletion is a single-prompt completion (section formatting).
	ModeCompletion Mode = "completion"

	// ModeChat is a multi-message chat exchange (assistant turns).
	ModeChat Mode = "chat"
)

// Provider defines the interface for text-generation backend implementations.
type Provider interface {
	// Name returns the provider identifier (e.g., "ollama").
	Name() string

	// BuildURL constructs the full API endpoint URL for the given mode.
	BuildURL(baseURL string, mode Mode) string

	// SetHeaders adds provider-specific headers to the request.
	SetHeaders(req *http.Request)

	// BuildRequestBody creates the JSON request body for the provider.
	BuildRequestBody(req Request) ([]byte, error)

	// ParseResponse extracts the completion from provider-specific JSON.
	ParseResponse(body []byte, mode Mode) (*Response, error)
}

// providerRegistry holds registered providers.
var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider to the registry.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns all registered provider names.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	return names
}
