// SPDX-License-Identifier: Apache-2.0

package knowledge_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kusari-oss/triage/internal/core/models"
	"github.com/kusari-oss/triage/internal/sources/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	var gotKey, gotPath, gotVersion string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		gotPath = r.URL.Path
		gotVersion = r.URL.Query().Get("api-version")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"value": [
			{"id": "kb-1", "title": "DB pool runbook", "content": "Raise max pool size", "url": "https://kb/1", "@search.score": 3.2},
			{"doc_id": "kb-2", "title": "Latency", "chunk": "Check the CDN", "url": null},
			{"id": 7, "title": "Numeric id"}
		]}`))
	}))
	defer srv.Close()

	client := knowledge.NewClient(knowledge.Config{Endpoint: srv.URL, Index: "runbooks", APIKey: "k"}, srv.Client(), nil)
	docs, err := client.Search(context.Background(), "why latency", 0)

	require.NoError(t, err)
	assert.Equal(t, "k", gotKey)
	assert.Equal(t, "/indexes/runbooks/docs/search", gotPath)
	assert.Equal(t, knowledge.DefaultAPIVersion, gotVersion)
	assert.Equal(t, "why latency", gotBody["search"])
	assert.Equal(t, float64(knowledge.DefaultTop), gotBody["top"])

	require.Len(t, docs, 3)
	assert.Equal(t, models.KnowledgeDoc{ID: "kb-1", Title: "DB pool runbook", Content: "Raise max pool size", URL: "https://kb/1"}, docs[0])
	assert.Equal(t, models.KnowledgeDoc{ID: "kb-2", Title: "Latency", Content: "Check the CDN"}, docs[1])
	assert.Equal(t, "7", docs[2].ID)
}

func TestSearchNotConfigured(t *testing.T) {
	client := knowledge.NewClient(knowledge.Config{Endpoint: "https://search"}, nil, nil)
	assert.False(t, client.Configured())

	docs, err := client.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSearchFailureYieldsNoDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := knowledge.NewClient(knowledge.Config{Endpoint: srv.URL, Index: "runbooks"}, srv.Client(), nil)
	docs, err := client.Search(context.Background(), "q", 5)

	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}
