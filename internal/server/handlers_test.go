package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/indexer"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/prompt"
	"github.com/hyperjump/shiori/internal/retrieval"
	"github.com/hyperjump/shiori/internal/vector"
)

type fakeRebuilder struct {
	calls       int
	err         error
	hasDeadline bool
	ctxErr      error
}

func (f *fakeRebuilder) Rebuild(ctx context.Context) (indexer.BuildStats, error) {
	f.calls++
	_, f.hasDeadline = ctx.Deadline()
	f.ctxErr = ctx.Err()
	return indexer.BuildStats{Documents: 2, Chunks: 3}, f.err
}

func testServer(t *testing.T, withIndex bool, rb Rebuilder) *Server {
	t.Helper()
	emb := embedding.NewHashingEmbedder(384)
	var idx vector.Index
	if withIndex {
		var entries []models.IndexEntry
		for _, d := range []struct{ file, text string }{{"a.txt", "The cat sat."}, {"b.txt", "The dog ran."}} {
			v, err := emb.Embed(context.Background(), d.text)
			if err != nil {
				t.Fatal(err)
			}
			entries = append(entries, models.IndexEntry{
				Vector:  v,
				Payload: models.Chunk{Content: d.text, Metadata: map[string]string{models.MetaFile: d.file}},
			})
		}
		var err error
		idx, err = vector.Build("flat", 384, emb.Model(), entries)
		if err != nil {
			t.Fatal(err)
		}
	}
	r := retrieval.NewRetriever(emb, idx, retrieval.WithDefaultK(4))
	t.Cleanup(func() { _ = r.Close() })
	cfg := &config.Config{}
	cfg.Storage.IndexPath = t.TempDir()
	config.ApplyDefaults(cfg)
	return NewServer(r, prompt.NewAssembler("Be brief."), rb, cfg, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleRetrieve(t *testing.T) {
	h := testServer(t, true, nil).Handler()
	w := do(t, h, http.MethodPost, "/api/v1/retrieve", `{"query":"cat","k":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	var resp models.RetrieveResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Chunk.Metadata[models.MetaFile] != "a.txt" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleRetrieve_defaultK(t *testing.T) {
	h := testServer(t, true, nil).Handler()
	w := do(t, h, http.MethodPost, "/api/v1/retrieve", `{"query":"the"}`)
	var resp models.RetrieveResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.K != 4 || resp.Total != 2 {
		t.Errorf("k=%d total=%d, want k=4 total=2", resp.K, resp.Total)
	}
}

func TestHandleRetrieve_errors(t *testing.T) {
	tests := []struct {
		name      string
		withIndex bool
		body      string
		want      int
	}{
		{"bad json", true, `{`, http.StatusBadRequest},
		{"empty query", true, `{"query":""}`, http.StatusBadRequest},
		{"negative k", true, `{"query":"cat","k":-1}`, http.StatusBadRequest},
		{"whitespace query", true, `{"query":"   "}`, http.StatusBadRequest},
		{"no index", false, `{"query":"cat"}`, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testServer(t, tt.withIndex, nil).Handler()
			w := do(t, h, http.MethodPost, "/api/v1/retrieve", tt.body)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			var out map[string]string
			_ = json.NewDecoder(w.Body).Decode(&out)
			if out["error"] == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestHandlePrompt(t *testing.T) {
	h := testServer(t, true, nil).Handler()
	w := do(t, h, http.MethodPost, "/api/v1/prompt", `{"query":"Who sat?","k":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var resp models.PromptResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Hits != 2 {
		t.Errorf("hits = %d, want 2", resp.Hits)
	}
	if !strings.HasPrefix(resp.Prompt, "SYSTEM: Be brief.\n\nCONTEXT:\n[1] ") || !strings.HasSuffix(resp.Prompt, "USER QUESTION: Who sat?\n\nASSISTANT:") {
		t.Errorf("prompt = %q", resp.Prompt)
	}
}

func TestHandleStatus(t *testing.T) {
	h := testServer(t, true, nil).Handler()
	w := do(t, h, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Index  *vector.Stats          `json:"index"`
		Config map[string]interface{} `json:"config"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Index == nil || out.Index.Size != 2 || out.Index.Dimensions != 384 || out.Index.Type != vector.IndexTypeFlat {
		t.Errorf("index stats = %+v", out.Index)
	}
	if out.Config["top_k"] != float64(config.DefaultTopK) {
		t.Errorf("config = %v", out.Config)
	}
}

func TestHandleRebuild(t *testing.T) {
	t.Run("not enabled", func(t *testing.T) {
		h := testServer(t, true, nil).Handler()
		w := do(t, h, http.MethodPost, "/api/v1/index", "")
		if w.Code != http.StatusNotImplemented {
			t.Errorf("status: got %d", w.Code)
		}
	})
	t.Run("ok", func(t *testing.T) {
		rb := &fakeRebuilder{}
		h := testServer(t, true, rb).Handler()
		w := do(t, h, http.MethodPost, "/api/v1/index", "")
		if w.Code != http.StatusOK || rb.calls != 1 {
			t.Errorf("status %d calls %d", w.Code, rb.calls)
		}
		var out map[string]interface{}
		_ = json.NewDecoder(w.Body).Decode(&out)
		if out["chunks"] != float64(3) {
			t.Errorf("body = %v", out)
		}
	})
	t.Run("failure", func(t *testing.T) {
		rb := &fakeRebuilder{err: errors.New("load documents: loader: /missing: no such file")}
		h := testServer(t, true, rb).Handler()
		w := do(t, h, http.MethodPost, "/api/v1/index", "")
		if w.Code != http.StatusInternalServerError {
			t.Errorf("status: got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "load documents") {
			t.Errorf("body does not name stage: %s", w.Body.String())
		}
	})
}

func TestHandleHealth(t *testing.T) {
	h := testServer(t, false, nil).Handler()
	w := do(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleRebuild_NoRequestDeadline(t *testing.T) {
	rb := &fakeRebuilder{}
	h := testServer(t, true, rb).Handler()

	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest(http.MethodPost, "/api/v1/index", strings.NewReader("")).WithContext(ctx)
	cancel()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK || rb.calls != 1 {
		t.Fatalf("status = %d, calls = %d", w.Code, rb.calls)
	}
	if rb.hasDeadline {
		t.Error("rebuild context carries a deadline")
	}
	if rb.ctxErr != nil {
		t.Errorf("rebuild context already done: %v", rb.ctxErr)
	}
}
