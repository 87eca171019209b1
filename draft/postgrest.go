package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/c360studio/paperdraft/paper"
)

// ErrNotFound is returned when no draft matches the requested id and owner.
var ErrNotFound = errors.New("draft not found")

// draftsTable is the record collection holding persisted drafts.
const draftsTable = "drafts"

// maxErrorBody caps how much of an error response is read for classification.
const maxErrorBody = 64 * 1024

// PostgRESTStore implements Store against a PostgREST-compatible
// record store (Supabase and friends). Rows live in the drafts table:
// {id, created_at, title, content, user_id}.
type PostgRESTStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// PostgRESTOption configures a PostgRESTStore.
type PostgRESTOption func(*PostgRESTStore)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) PostgRESTOption {
	return func(s *PostgRESTStore) {
		s.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PostgRESTOption {
	return func(s *PostgRESTStore) {
		s.logger = logger
	}
}

// NewPostgRESTStore creates a store client for the given endpoint and key.
func NewPostgRESTStore(baseURL, apiKey string, opts ...PostgRESTOption) *PostgRESTStore {
	s := &PostgRESTStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// draftRecord is the wire shape of a drafts row.
type draftRecord struct {
	ID        string          `json:"id,omitempty"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
	Title     string          `json:"title"`
	Content   []paper.Section `json:"content"`
	UserID    string          `json:"user_id"`
}

// storeError is the PostgREST error body.
type storeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// Insert implements Store.
func (s *PostgRESTStore) Insert(ctx context.Context, title string, content []paper.Section, ownerID string) error {
	record := draftRecord{
		Title:   title,
		Content: content,
		UserID:  ownerID,
	}

	resp, err := s.do(ctx, http.MethodPost, nil, record, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return s.classifyError(resp)
	}
	return nil
}

// Update implements Store. The returned count comes from the
// representation the store echoes back, so a predicate matching zero
// records is observable to the caller.
func (s *PostgRESTStore) Update(ctx context.Context, draftID, ownerID, title string, content []paper.Section) (int, error) {
	filter := url.Values{}
	filter.Set("id", "eq."+draftID)
	filter.Set("user_id", "eq."+ownerID)

	patch := map[string]any{
		"title":   title,
		"content": content,
	}

	resp, err := s.do(ctx, http.MethodPatch, filter, patch, "return=representation")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, s.classifyError(resp)
	}

	var updated []draftRecord
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		return 0, fmt.Errorf("decode update response: %w", err)
	}
	return len(updated), nil
}

// GetOwned implements Store.
func (s *PostgRESTStore) GetOwned(ctx context.Context, draftID, ownerID string) (paper.Draft, error) {
	filter := url.Values{}
	filter.Set("select", "*")
	filter.Set("id", "eq."+draftID)
	filter.Set("user_id", "eq."+ownerID)

	records, err := s.selectRecords(ctx, filter)
	if err != nil {
		return paper.Draft{}, err
	}
	if len(records) == 0 {
		return paper.Draft{}, ErrNotFound
	}
	return records[0].toDraft(), nil
}

// ListByOwner implements Store.
func (s *PostgRESTStore) ListByOwner(ctx context.Context, ownerID string) ([]paper.Draft, error) {
	filter := url.Values{}
	filter.Set("select", "*")
	filter.Set("user_id", "eq."+ownerID)
	filter.Set("order", "created_at.desc")

	records, err := s.selectRecords(ctx, filter)
	if err != nil {
		return nil, err
	}

	drafts := make([]paper.Draft, len(records))
	for i, r := range records {
		drafts[i] = r.toDraft()
	}
	return drafts, nil
}

func (r draftRecord) toDraft() paper.Draft {
	return paper.Draft{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Title:     r.Title,
		Content:   paper.CloneSections(r.Content),
		OwnerID:   r.UserID,
	}
}

// selectRecords runs a GET with the given filter and decodes the rows.
func (s *PostgRESTStore) selectRecords(ctx context.Context, filter url.Values) ([]draftRecord, error) {
	resp, err := s.do(ctx, http.MethodGet, filter, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.classifyError(resp)
	}

	var records []draftRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode select response: %w", err)
	}
	return records, nil
}

// do issues one request to the drafts table endpoint.
func (s *PostgRESTStore) do(ctx context.Context, method string, filter url.Values, body any, prefer string) (*http.Response, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, draftsTable)
	if len(filter) > 0 {
		endpoint += "?" + filter.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store request failed: %w", err)
	}
	return resp, nil
}

// classifyError turns a non-success store response into a typed error.
// Missing-column and missing-table conditions become *SchemaError so
// the reconciler can surface their remediation.
func (s *PostgRESTStore) classifyError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var se storeError
	if err := json.Unmarshal(data, &se); err == nil && se.Code != "" {
		s.logger.Warn("Store error",
			"status", resp.StatusCode,
			"code", se.Code,
			"message", se.Message)
		switch se.Code {
		case CodeMissingColumn, CodeMissingTable:
			return &SchemaError{Code: se.Code, Message: se.Message}
		}
		return fmt.Errorf("store error %s (status %d): %s", se.Code, resp.StatusCode, se.Message)
	}

	// A bare 404 means the table route does not exist at all.
	if resp.StatusCode == http.StatusNotFound {
		return &SchemaError{Code: CodeMissingTable, Message: "relation does not exist"}
	}

	return fmt.Errorf("store error (status %d): %s", resp.StatusCode, string(data))
}
