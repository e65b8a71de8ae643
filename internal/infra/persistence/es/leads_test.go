package es

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/LouYuanbo1/leadagent/internal/infra/persistence"
	"github.com/elastic/go-elasticsearch/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeES 只实现测试用到的几个接口
type fakeES struct {
	mu       sync.Mutex
	docs     map[string]json.RawMessage
	searches []map[string]any
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodHead && len(parts) == 1:
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && len(parts) == 3 && parts[1] == "_doc":
		src, ok := f.docs[parts[2]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"_index":"linkedin_leads","_id":"`+parts[2]+`","found":false}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"_index": parts[0], "_id": parts[2], "found": true, "_source": src})
	case r.Method == http.MethodPut && len(parts) == 3 && parts[1] == "_doc":
		body, _ := io.ReadAll(r.Body)
		f.docs[parts[2]] = body
		_ = json.NewEncoder(w).Encode(map[string]any{
			"_index": parts[0], "_id": parts[2], "_version": 1, "result": "created",
			"_shards": map[string]int{"total": 1, "successful": 1, "failed": 0}, "_seq_no": 0, "_primary_term": 1,
		})
	case r.Method == http.MethodPost && len(parts) == 3 && parts[1] == "_update":
		if _, ok := f.docs[parts[2]]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"type":"document_missing_exception","reason":"document missing"},"status":404}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"_index": parts[0], "_id": parts[2], "_version": 2, "result": "updated",
			"_shards": map[string]int{"total": 1, "successful": 1, "failed": 0}, "_seq_no": 1, "_primary_term": 1,
		})
	case len(parts) == 2 && parts[1] == "_search":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.searches = append(f.searches, body)
		hits := make([]map[string]any, 0, len(f.docs))
		for id, src := range f.docs {
			hits = append(hits, map[string]any{"_index": parts[0], "_id": id, "_score": 1.0, "_source": src})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"took": 1, "timed_out": false,
			"_shards": map[string]int{"total": 1, "successful": 1, "skipped": 0, "failed": 0},
			"hits":    map[string]any{"total": map[string]any{"value": len(hits), "relation": "eq"}, "hits": hits},
		})
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"unsupported","reason":"`+r.Method+` `+r.URL.Path+`"},"status":400}`)
	}
}

type fixedEmbedder struct{ calls int }

func (f *fixedEmbedder) BatchSize() int { return 8 }

func (f *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func newTestStore(t *testing.T) (*LeadStore, *fakeES, *fixedEmbedder) {
	fake := &fakeES{docs: map[string]json.RawMessage{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewTypedClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	emb := &fixedEmbedder{}
	store, err := InitLeadStore(context.Background(), NewTypedEsClient[*model.Lead](client, "", 3, zaptest.NewLogger(t)), emb, zaptest.NewLogger(t))
	require.NoError(t, err)
	return store, fake, emb
}

func TestLeadStoreAddAndGet(t *testing.T) {
	ctx := context.Background()
	store, fake, emb := newTestStore(t)

	lead := &model.Lead{
		ID:          "lead-1",
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		AuthorName:  "Jane Doe",
		PostContent: "We are hiring a CTO, reach me at jane@acme.io",
		Emails:      []string{"jane@acme.io"},
	}
	added, err := store.Add(ctx, lead)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, lead.Embedding)
	assert.Contains(t, string(fake.docs["lead-1"]), `"embedding":[0.1,0.2,0.3]`)

	added, err = store.Add(ctx, &model.Lead{ID: "lead-1"})
	require.NoError(t, err)
	assert.False(t, added)

	got, err := store.Get(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.AuthorName)
	assert.Equal(t, []string{"jane@acme.io"}, got.Emails)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrLeadNotFound)
}

func TestLeadStoreUpdateMissing(t *testing.T) {
	store, _, _ := newTestStore(t)
	exported := true
	err := store.Update(context.Background(), "missing", model.LeadPatch{Exported: &exported})
	assert.ErrorIs(t, err, persistence.ErrLeadNotFound)
}

func TestLeadStoreSearchUsesKnn(t *testing.T) {
	ctx := context.Background()
	store, fake, _ := newTestStore(t)
	_, err := store.Add(ctx, &model.Lead{ID: "a", AuthorName: "A", PostContent: "hiring"})
	require.NoError(t, err)

	leads, err := store.Search(ctx, "who is hiring", 5)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "a", leads[0].ID)

	require.Len(t, fake.searches, 1)
	knn, ok := fake.searches[0]["knn"].([]any)
	require.True(t, ok, "knn clause missing: %v", fake.searches[0])
	clause := knn[0].(map[string]any)
	assert.Equal(t, "embedding", clause["field"])
	assert.EqualValues(t, 5, clause["k"])
	assert.EqualValues(t, 100, clause["num_candidates"])
}

func TestLeadStoreAllSortsByTime(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"late", "early", "middle"} {
		offset := map[int]time.Duration{0: 2 * time.Hour, 1: 0, 2: time.Hour}[i]
		_, err := store.Add(ctx, &model.Lead{ID: id, Timestamp: base.Add(offset), Embedding: []float32{1, 0, 0}})
		require.NoError(t, err)
	}
	leads, err := store.All(ctx)
	require.NoError(t, err)
	ids := make([]string, len(leads))
	for i, l := range leads {
		ids[i] = l.ID
	}
	assert.Equal(t, []string{"early", "middle", "late"}, ids)
}
