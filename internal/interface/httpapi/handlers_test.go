package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/blog-rag/internal/core/draft"
	"github.com/jinford/blog-rag/internal/core/job"
	"github.com/jinford/blog-rag/internal/core/llm"
	"github.com/jinford/blog-rag/internal/core/plan"
	"github.com/jinford/blog-rag/internal/core/research"
	"github.com/jinford/blog-rag/internal/core/retrieval"
	"github.com/jinford/blog-rag/internal/core/worker"
	"github.com/jinford/blog-rag/internal/infra/memory"
)

// --- パイプライン用スタブ ---

type stubSearcher struct {
	docs []research.Document
	err  error
}

func (s *stubSearcher) Search(context.Context, string, int) ([]research.Document, error) {
	return s.docs, s.err
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (stubEmbedder) BatchEmbed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

type stubLLM struct {
	planJSON string
}

func (s *stubLLM) GenerateCompletion(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if req.ResponseFormat == "json" {
		return llm.CompletionResponse{Content: s.planJSON}, nil
	}
	return llm.CompletionResponse{Content: "generated section body"}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv はインメモリストア上でAPIサーバとワーカーを組み立てる
type testEnv struct {
	store  *memory.JobStore
	server *Server
	worker *worker.Worker
}

func newTestEnv(t *testing.T, searcher research.Searcher, client llm.Client) *testEnv {
	t.Helper()

	store := memory.NewJobStore()
	logger := discardLogger()

	chunker, err := retrieval.NewChunker(100, 20)
	require.NoError(t, err)
	builder := retrieval.NewBuilder(chunker, stubEmbedder{}, logger)
	researchSvc := research.NewService(searcher, research.WithLogger(logger))
	synthesizer := plan.NewSynthesizer(client, plan.WithLogger(logger))
	drafter := draft.NewDrafter(researchSvc, builder, client, draft.WithLogger(logger))
	pipeline := worker.NewPipeline(researchSvc, builder, synthesizer, drafter,
		worker.WithPipelineLogger(logger))

	w := worker.New(store, pipeline,
		worker.WithPollInterval(10*time.Millisecond),
		worker.WithLogger(logger),
	)

	return &testEnv{
		store:  store,
		server: NewServer(job.NewService(store, logger), 0, logger),
		worker: w,
	}
}

func (e *testEnv) startWorker(t *testing.T) {
	t.Helper()
	e.worker.Start(context.Background())
	t.Cleanup(e.worker.Stop)
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// waitForTerminal はジョブが終端状態になるまでGETをポーリングする
func (e *testEnv) waitForTerminal(t *testing.T, path string) map[string]any {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("job at %s did not reach a terminal status", path)
		case <-time.After(10 * time.Millisecond):
		}

		rec := e.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		decodeBody(t, rec, &body)
		status := body["status"].(string)
		if status == string(job.StatusCompleted) || status == string(job.StatusFailed) {
			return body
		}
	}
}

const twoSectionPlanJSON = `{
	"title": "Remote Work Trends in 2026",
	"intro": "How distributed teams keep evolving.",
	"sections": [
		{"heading": "Hybrid schedules", "subsections": [{"heading": "Async rituals"}]},
		{"heading": "Tooling shifts", "subsections": [{"heading": "Meeting fatigue"}]}
	]
}`

func researchDocs() []research.Document {
	return []research.Document{
		{URL: "https://one.example", Title: "One", Content: "remote work research"},
		{URL: "https://two.example", Title: "Two", Content: "hybrid office research"},
		{URL: "https://three.example", Title: "Three", Content: "tooling research"},
	}
}

func TestPlanJobLifecycle(t *testing.T) {
	env := newTestEnv(t, &stubSearcher{docs: researchDocs()}, &stubLLM{planJSON: twoSectionPlanJSON})
	env.startWorker(t)

	rec := env.do(t, http.MethodPost, "/generate-plan/session-1", map[string]string{
		"keyword": "remote work trends",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var accepted jobAcceptedResponse
	decodeBody(t, rec, &accepted)
	assert.Equal(t, string(job.StatusProcessing), accepted.Status)
	assert.NotEqual(t, uuid.Nil, accepted.JobID)

	body := env.waitForTerminal(t, "/plan/"+accepted.JobID.String())
	require.Equal(t, string(job.StatusCompleted), body["status"])
	assert.Equal(t, "remote work trends", body["keyword"])
	assert.Nil(t, body["error"])

	planBody := body["plan"].(map[string]any)
	sections := planBody["sections"].([]any)
	assert.Len(t, sections, 2)
}

func TestBlogJobUsesEditedPlan(t *testing.T) {
	env := newTestEnv(t, &stubSearcher{docs: researchDocs()}, &stubLLM{planJSON: twoSectionPlanJSON})
	env.startWorker(t)

	// プランジョブ完了後の編集を模して、最初の見出しを差し替えたプランを投入する
	planJobID := uuid.New()
	edited := map[string]any{
		"plan_job_id": planJobID,
		"plan": map[string]any{
			"title": "Remote Work Trends in 2026",
			"sections": []map[string]any{
				{"heading": "Overview"},
				{"heading": "Tooling shifts"},
			},
		},
	}

	rec := env.do(t, http.MethodPost, "/generate-blog/session-1", edited)
	require.Equal(t, http.StatusCreated, rec.Code)

	var accepted jobAcceptedResponse
	decodeBody(t, rec, &accepted)

	body := env.waitForTerminal(t, "/blog/"+accepted.JobID.String())
	require.Equal(t, string(job.StatusCompleted), body["status"])
	assert.Equal(t, planJobID.String(), body["plan_job_id"])

	sections := body["sections"].([]any)
	require.Len(t, sections, 2)
	first := sections[0].(map[string]any)
	assert.Equal(t, "Overview", first["heading"])
	assert.Equal(t, float64(0), first["index"])

	blog := body["blog"].(string)
	assert.Contains(t, blog, "## Overview")
}

func TestPlanJobFailsWhenSearchProviderErrors(t *testing.T) {
	env := newTestEnv(t, &stubSearcher{err: fmt.Errorf("provider unavailable")}, &stubLLM{planJSON: twoSectionPlanJSON})
	env.startWorker(t)

	rec := env.do(t, http.MethodPost, "/generate-plan/session-1", map[string]string{
		"keyword": "doomed keyword",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var accepted jobAcceptedResponse
	decodeBody(t, rec, &accepted)

	body := env.waitForTerminal(t, "/plan/"+accepted.JobID.String())
	require.Equal(t, string(job.StatusFailed), body["status"])
	require.NotNil(t, body["error"])
	assert.Contains(t, body["error"].(string), "provider unavailable")
	assert.Nil(t, body["plan"])
}

func TestGetPlanUnknownID(t *testing.T) {
	env := newTestEnv(t, &stubSearcher{}, &stubLLM{})

	rec := env.do(t, http.MethodGet, "/plan/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/plan/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGeneratePlanRejectsEmptyKeyword(t *testing.T) {
	env := newTestEnv(t, &stubSearcher{}, &stubLLM{})

	rec := env.do(t, http.MethodPost, "/generate-plan/session-1", map[string]string{"keyword": "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errBody errorResponse
	decodeBody(t, rec, &errBody)
	assert.NotEmpty(t, errBody.Error)
}

func TestGenerateBlogRejectsInvalidPlan(t *testing.T) {
	env := newTestEnv(t, &stubSearcher{}, &stubLLM{})

	rec := env.do(t, http.MethodPost, "/generate-blog/session-1", map[string]any{
		"plan": map[string]any{"title": "", "sections": []any{}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/generate-blog/session-1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobKindMismatchIsNotFound(t *testing.T) {
	env := newTestEnv(t, &stubSearcher{docs: researchDocs()}, &stubLLM{planJSON: twoSectionPlanJSON})

	rec := env.do(t, http.MethodPost, "/generate-plan/session-1", map[string]string{"keyword": "k"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var accepted jobAcceptedResponse
	decodeBody(t, rec, &accepted)

	// プランジョブのIDをブログ取得エンドポイントに渡しても404
	rec = env.do(t, http.MethodGet, "/blog/"+accepted.JobID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubSearcher{}, &stubLLM{})

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}
