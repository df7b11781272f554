package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/quizforge/internal/cache"
	"github.com/abhisek/quizforge/internal/jobs"
	"github.com/abhisek/quizforge/internal/llm"
	"github.com/abhisek/quizforge/internal/pipeline"
	"github.com/abhisek/quizforge/internal/quiz"
	"github.com/abhisek/quizforge/internal/router"
	"github.com/abhisek/quizforge/internal/store"
)

func testServer(t *testing.T) (*Server, *llm.MockProvider) {
	t.Helper()
	s, err := store.Open(context.Background(), store.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	p := &llm.MockProvider{
		ProviderName: "mock",
		Configured:   true,
		GenerateFunc: func(_ context.Context, _ string, opts quiz.Options) (*quiz.Questionset, error) {
			questions := make([]quiz.Question, opts.NumQuestions)
			for i := range questions {
				questions[i] = quiz.Question{
					Stem: fmt.Sprintf("stem %c%c", 'a'+i%26, 'a'+(i/26)%26), OptionA: "a", OptionB: "b",
					OptionC: "c", OptionD: "d", Correct: "A",
					Difficulty: quiz.DifficultyMedium, CognitiveLevel: quiz.BloomApply,
				}
			}
			return &quiz.Questionset{Questions: questions, Metadata: quiz.Metadata{Provider: "mock"}}, nil
		},
	}

	rt := router.New("mock", p)
	c := cache.New(s, 0, 0)
	pl := pipeline.New(rt, c, pipeline.Config{})
	js := jobs.NewStore(s)
	q := jobs.NewQueue(js, pl, 1)
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("queue start: %v", err)
	}
	t.Cleanup(q.Stop)

	return New(pl, rt, c, q, js), p
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGenerateEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/generate",
		`{"text":"source material","options":{"numQuestions":5,"qualityCheck":false,"deduplicate":false,"balanceDifficulty":false}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var qs quiz.Questionset
	if err := json.Unmarshal(rec.Body.Bytes(), &qs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(qs.Questions) != 5 {
		t.Errorf("questions = %d, want 5", len(qs.Questions))
	}
	if qs.Metadata.SourceFingerprint == "" {
		t.Error("missing fingerprint in response")
	}
}

func TestGenerateEndpointBadRequest(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"missing text", `{"options":{}}`},
		{"malformed json", `{`},
		{"bad distribution", `{"text":"x","options":{"numQuestions":10,"difficultyDistribution":{"easy":1}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/generate", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/jobs/",
		`{"text":"async source","options":{"numQuestions":3,"qualityCheck":false,"deduplicate":false,"balanceDifficulty":false}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body)
	}
	var submitted jobs.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode job: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var got jobs.Job
	for {
		rec = doJSON(t, h, http.MethodGet, "/api/jobs/"+submitted.ID+"/", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("get status = %d", rec.Code)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode job: %v", err)
		}
		if got.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %q", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got.Status != jobs.StatusCompleted {
		t.Fatalf("status = %q (%s)", got.Status, got.Error)
	}
	if got.Result == nil || len(got.Result.Questions) != 3 {
		t.Error("job result missing")
	}

	rec = doJSON(t, h, http.MethodGet, "/api/jobs/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list []jobs.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("list = %d jobs, want 1", len(list))
	}

	// Completed jobs cannot be cancelled.
	rec = doJSON(t, h, http.MethodDelete, "/api/jobs/"+submitted.ID+"/", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("cancel completed = %d, want 409", rec.Code)
	}
}

func TestJobNotFound(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/jobs/no-such-id/", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	rec = doJSON(t, h, http.MethodDelete, "/api/jobs/no-such-id/", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("cancel status = %d, want 404", rec.Code)
	}
}

func TestProviderEndpoints(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/providers/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var infos []router.ProviderInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &infos); err != nil {
		t.Fatalf("decode providers: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "mock" || !infos[0].Current {
		t.Errorf("providers = %+v", infos)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/providers/switch", `{"provider":"mock"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("switch status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, "/api/providers/switch", `{"provider":"missing"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("switch unknown status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/providers/test", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("test status = %d", rec.Code)
	}
	var results map[string]llm.TestResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if !results["mock"].Success {
		t.Errorf("probe = %+v", results)
	}
}

func TestRoutingStatsEndpoints(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/generate",
		`{"text":"stats source","options":{"numQuestions":2,"qualityCheck":false,"deduplicate":false,"balanceDifficulty":false}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/providers/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var stats map[string]router.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats["mock"].Requests != 1 || stats["mock"].Failures != 0 {
		t.Errorf("stats = %+v", stats)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/providers/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/providers/stats", "")
	stats = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats["mock"].Requests != 0 {
		t.Errorf("stats after reset = %+v", stats)
	}
}

func TestCacheEndpoints(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	// Prime one entry.
	rec := doJSON(t, h, http.MethodPost, "/api/generate",
		`{"text":"cache me","options":{"numQuestions":2,"qualityCheck":false,"deduplicate":false,"balanceDifficulty":false}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/cache/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var stats cache.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Errorf("entries = %d, want 1", stats.Entries)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/cache/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	var cleared map[string]int64
	_ = json.Unmarshal(rec.Body.Bytes(), &cleared)
	if cleared["cleared"] != 1 {
		t.Errorf("cleared = %v, want 1", cleared)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["currentProvider"] != "mock" {
		t.Errorf("health = %v", body)
	}
}
