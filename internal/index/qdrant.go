package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/model"
	appErr "github.com/ragline/ragline/internal/pkg/errors"
)

// QdrantIndex is a minimal REST client to Qdrant, cosine distance assumed.
// The collection is created lazily on the first upsert once the vector
// dimension is known.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	prepMu   sync.Mutex
	prepared bool
}

func NewQdrantIndex(cfg config.QdrantConfig) *QdrantIndex {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantIndex{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, dimension int) error {
	q.prepMu.Lock()
	defer q.prepMu.Unlock()
	if q.prepared {
		return nil
	}
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant answers 200 when the collection already exists with the same
	// schema, so this is safe to repeat.
	if err := q.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", q.url, q.collection), body, nil); err != nil {
		return err
	}
	q.prepared = true
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, chunks []model.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch")
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}
	points := make([]map[string]interface{}, len(chunks))
	for i := range chunks {
		points[i] = map[string]interface{}{
			"id":     chunks[i].ID,
			"vector": vectors[i],
			"payload": map[string]interface{}{
				"text":     chunks[i].Text,
				"metadata": chunks[i].Metadata,
			},
		}
	}
	body := map[string]interface{}{"points": points}
	return q.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", q.url, q.collection), body, nil)
}

func (q *QdrantIndex) Search(ctx context.Context, vector []float32, topN int) ([]model.Candidate, error) {
	if topN <= 0 {
		topN = 5
	}
	req := map[string]interface{}{
		"vector":       vector,
		"limit":        topN,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      interface{}            `json:"id"`
			Score   float32                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", q.url, q.collection), req, &resp); err != nil {
		return nil, err
	}
	results := make([]model.Candidate, 0, len(resp.Result))
	for _, r := range resp.Result {
		cand := model.Candidate{
			ChunkID: fmt.Sprintf("%v", r.ID),
			Score:   r.Score,
		}
		if v, ok := r.Payload["text"].(string); ok {
			cand.Text = v
		}
		if raw, ok := r.Payload["metadata"].(map[string]interface{}); ok {
			cand.Metadata = make(map[string]string, len(raw))
			for k, v := range raw {
				if s, ok := v.(string); ok {
					cand.Metadata[k] = s
				}
			}
		}
		results = append(results, cand)
	}
	return results, nil
}

func (q *QdrantIndex) do(ctx context.Context, method, endpoint string, in interface{}, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: qdrant: %v", appErr.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
