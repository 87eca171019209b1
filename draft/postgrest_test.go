package draft

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/paperdraft/paper"
)

func sections(contents ...string) []paper.Section {
	out := make([]paper.Section, len(contents))
	for i, c := range contents {
		out[i] = paper.NewSection("Methods")
		out[i].Content = c
	}
	return out
}

func TestPostgRESTInsert(t *testing.T) {
	var gotPath, gotAPIKey, gotAuth string
	var gotRecord map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRecord))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	store := NewPostgRESTStore(server.URL, "svc-key")
	err := store.Insert(context.Background(), "My Paper", sections("- result"), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "/rest/v1/drafts", gotPath)
	assert.Equal(t, "svc-key", gotAPIKey)
	assert.Equal(t, "Bearer svc-key", gotAuth)
	assert.Equal(t, "My Paper", gotRecord["title"])
	assert.Equal(t, "user-1", gotRecord["user_id"])
}

func TestPostgRESTUpdateReturnsRowCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.draft-1", r.URL.Query().Get("id"))
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"draft-1","title":"Renamed","content":[],"user_id":"user-1"}]`))
	}))
	defer server.Close()

	store := NewPostgRESTStore(server.URL, "svc-key")
	rows, err := store.Update(context.Background(), "draft-1", "user-1", "Renamed", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
}

func TestPostgRESTUpdateZeroRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	store := NewPostgRESTStore(server.URL, "svc-key")
	rows, err := store.Update(context.Background(), "someone-elses-draft", "user-1", "Title", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rows)
}

func TestPostgRESTClassifiesMissingColumn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"42703","message":"column drafts.user_id does not exist"}`))
	}))
	defer server.Close()

	store := NewPostgRESTStore(server.URL, "svc-key")
	err := store.Insert(context.Background(), "Title", nil, "user-1")
	require.Error(t, err)

	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeMissingColumn, se.Code)
	assert.Equal(t, RemediationMissingColumn, Remediation(err))
}

func TestPostgRESTClassifiesMissingTable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "coded error body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"code":"42P01","message":"relation \"public.drafts\" does not exist"}`))
			},
		},
		{
			name: "bare 404",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			store := NewPostgRESTStore(server.URL, "svc-key")
			_, err := store.ListByOwner(context.Background(), "user-1")
			require.Error(t, err)

			var se *SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, CodeMissingTable, se.Code)
			assert.Equal(t, RemediationMissingTable, Remediation(err))
		})
	}
}

func TestPostgRESTGetOwnedNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	store := NewPostgRESTStore(server.URL, "svc-key")
	_, err := store.GetOwned(context.Background(), "missing", "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgRESTListOrdersByCreatedAtDesc(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"d2","title":"Newer","content":[],"user_id":"user-1"},
			{"id":"d1","title":"Older","content":[],"user_id":"user-1"}
		]`))
	}))
	defer server.Close()

	store := NewPostgRESTStore(server.URL, "svc-key")
	drafts, err := store.ListByOwner(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "Newer", drafts[0].Title)
	assert.Equal(t, "d1", drafts[1].ID)
}
