package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/qcm-las/qcm-server/internal/quiz"
	"github.com/qcm-las/qcm-server/internal/runs"

	"github.com/go-chi/chi/v5"
)

func testRouter(saver quiz.RunSaver) (*chi.Mux, *SessionRegistry) {
	reg := NewSessionRegistry()
	defaults := SessionDefaults{SecondsPerQuestion: 90, TimerEnabled: true}
	r := chi.NewRouter()
	r.Post("/sessions", CreateSessionHandler(reg, saver, defaults))
	r.Route("/sessions/{sessionID}", func(sr chi.Router) {
		sr.Get("/", GetSessionHandler(reg))
		sr.Delete("/", DeleteSessionHandler(reg))
		sr.Post("/answers", AnswerHandler(reg))
		sr.Post("/goto", NavigateHandler(reg))
		sr.Post("/validate", ValidateHandler(reg))
		sr.Post("/flag", FlagHandler(reg))
		sr.Post("/finish", FinishHandler(reg))
		sr.Post("/restart", RestartHandler(reg))
		sr.Get("/export", ExportHandler(reg, nil))
	})
	return r, reg
}

const importBody = `{"title":"UE1","questions":[
  {"type":"multi","question":"Concernant le coeur :","options":["A un","B deux","C trois","D quatre","E cinq"],
   "answer_indices":[0,2],"explanation":"","difficulty":"moyen"},
  {"type":"tf","question":"Parmi les propositions :","items":["A aorte","B veine","C artere","D plasma","E globule"],
   "truth":[true,false,true,false,true],"explanation":"","difficulty":"facile"}
]}`

func createSession(t *testing.T, r *chi.Mux, query string) string {
	t.Helper()
	req := httptest.NewRequest("POST", "/sessions"+query, strings.NewReader(importBody))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.SessionID == "" {
		t.Fatalf("create response: %s err=%v", w.Body.String(), err)
	}
	return resp.SessionID
}

func postJSON(t *testing.T, r *chi.Mux, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(buf))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateSessionStrictRejectsBadEntry(t *testing.T) {
	r, _ := testRouter(nil)
	bad := `[{"type":"essay","question":"not supported here","difficulty":"facile"}]`
	req := httptest.NewRequest("POST", "/sessions", strings.NewReader(bad))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), "question 1") {
		t.Fatalf("error should name the entry: %s", w.Body.String())
	}
}

func TestCreateSessionLenientDrops(t *testing.T) {
	r, _ := testRouter(nil)
	mixed := `[{"type":"essay","question":"unsupported kind"},
	  {"type":"multi","question":"Concernant le coeur :","options":["A a","B b","C c","D d","E e"],
	   "answer_indices":[1],"difficulty":"facile"}]`
	req := httptest.NewRequest("POST", "/sessions?policy=lenient", strings.NewReader(mixed))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		QuestionCount int `json:"question_count"`
		DroppedCount  int `json:"dropped_count"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.QuestionCount != 1 || resp.DroppedCount != 1 {
		t.Fatalf("kept/dropped: %+v", resp)
	}
}

func TestExamFlowOverHTTP(t *testing.T) {
	saver := &recordingSaver{ch: make(chan quiz.RunSnapshot, 1)}
	r, _ := testRouter(saver)
	id := createSession(t, r, "")

	// Exam mode hides answer keys while in progress.
	req := httptest.NewRequest("GET", "/sessions/"+id+"/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var view sessionView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Questions) != 2 || view.Questions[0].AnswerIndices != nil || view.Questions[1].Truth != nil {
		t.Fatalf("answer keys leaked in progress: %+v", view.Questions)
	}

	w = postJSON(t, r, "/sessions/"+id+"/answers", map[string]any{
		"index":  0,
		"answer": map[string]any{"type": "multi", "indices": []int{0, 2}},
	})
	if w.Code != 200 {
		t.Fatalf("answer: %d %s", w.Code, w.Body.String())
	}

	// Incomplete tf validation bounces with 409.
	tr := true
	w = postJSON(t, r, "/sessions/"+id+"/answers", map[string]any{
		"index":  1,
		"answer": map[string]any{"type": "tf", "truth": []*bool{&tr, nil, nil, nil, nil}},
	})
	if w.Code != 200 {
		t.Fatalf("tf answer: %d %s", w.Code, w.Body.String())
	}
	w = postJSON(t, r, "/sessions/"+id+"/validate", map[string]any{"index": 1})
	if w.Code != http.StatusConflict {
		t.Fatalf("incomplete validate: status %d", w.Code)
	}

	w = postJSON(t, r, "/sessions/"+id+"/finish", nil)
	if w.Code != 200 {
		t.Fatalf("finish: %d %s", w.Code, w.Body.String())
	}
	var m quiz.Metrics
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	// q0 perfect (1.0), q1 incomplete tf forced to 0: mean 0.5, note20 10.
	if m.Note20 != 10 {
		t.Fatalf("note20 = %v, want 10", m.Note20)
	}

	// The save dispatch is asynchronous; wait for it.
	select {
	case snap := <-saver.ch:
		if snap.SessionID != id {
			t.Fatalf("saved wrong session: %+v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run save never dispatched")
	}

	// After Results the keys are served.
	req = httptest.NewRequest("GET", "/sessions/"+id+"/", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if view.Questions[0].AnswerIndices == nil || view.Metrics == nil {
		t.Fatalf("results view incomplete: %+v", view)
	}

	// A second finish is a phase conflict.
	w = postJSON(t, r, "/sessions/"+id+"/finish", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("double finish: status %d", w.Code)
	}
}

func TestTrainModeValidateReturnsResult(t *testing.T) {
	r, _ := testRouter(nil)
	id := createSession(t, r, "?mode=train")

	w := postJSON(t, r, "/sessions/"+id+"/answers", map[string]any{
		"index":  0,
		"answer": map[string]any{"type": "multi", "indices": []int{0}},
	})
	if w.Code != 200 {
		t.Fatalf("answer: %d", w.Code)
	}
	w = postJSON(t, r, "/sessions/"+id+"/validate", map[string]any{"index": 0})
	if w.Code != 200 {
		t.Fatalf("validate: %d %s", w.Code, w.Body.String())
	}
	var res quiz.ValidationResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Errors != 1 || res.Score != 0.5 {
		t.Fatalf("train validate result: %+v", res)
	}
}

func TestRestartWrongOverHTTP(t *testing.T) {
	r, _ := testRouter(nil)
	id := createSession(t, r, "")
	// Answer q0 wrong, leave q1 untouched, finish, restart on wrong subset.
	postJSON(t, r, "/sessions/"+id+"/answers", map[string]any{
		"index":  0,
		"answer": map[string]any{"type": "multi", "indices": []int{4}},
	})
	postJSON(t, r, "/sessions/"+id+"/finish", nil)

	w := postJSON(t, r, "/sessions/"+id+"/restart", map[string]any{"subset": "wrong"})
	if w.Code != 200 {
		t.Fatalf("restart: %d %s", w.Code, w.Body.String())
	}
	var view sessionView
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if view.Phase != quiz.PhaseInProgress || len(view.Questions) != 2 {
		t.Fatalf("restart view: phase=%q n=%d", view.Phase, len(view.Questions))
	}
}

func TestSessionNotFound(t *testing.T) {
	r, _ := testRouter(nil)
	w := postJSON(t, r, "/sessions/nope/finish", nil)
	if w.Code != 404 {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	r, _ := testRouter(nil)
	id := createSession(t, r, "")

	req := httptest.NewRequest("DELETE", "/sessions/"+id+"/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", w.Code)
	}

	w = postJSON(t, r, "/sessions/"+id+"/finish", nil)
	if w.Code != 404 {
		t.Fatalf("dropped session still reachable: %d", w.Code)
	}
}

func TestRunHandlers(t *testing.T) {
	st := runs.NewInMemoryStore()
	for i := 0; i < 3; i++ {
		_ = st.PutRun(context.Background(), runs.Run{ID: fmt.Sprintf("r%d", i), Mode: quiz.ModeExam, Note20: float64(10 + i), EndedAt: int64(i)})
	}
	r := chi.NewRouter()
	r.Get("/runs", ListRunsHandler(st))
	r.Get("/runs/stats", RunStatsHandler(st))
	r.Get("/runs/{runID}", GetRunHandler(st))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/runs?limit=2", nil))
	var list []runs.Run
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list) != 2 || list[0].ID != "r2" {
		t.Fatalf("list: %+v", list)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/runs/stats", nil))
	var stats runs.Stats
	_ = json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.RunCount != 3 || stats.BestNote20 != 12 {
		t.Fatalf("stats: %+v", stats)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/runs/missing", nil))
	if w.Code != 404 {
		t.Fatalf("missing run: status %d", w.Code)
	}
}

type recordingSaver struct {
	ch chan quiz.RunSnapshot
}

func (s *recordingSaver) SaveRun(_ context.Context, snap quiz.RunSnapshot) error {
	s.ch <- snap
	return nil
}
