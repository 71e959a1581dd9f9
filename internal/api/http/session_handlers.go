package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/qcm-las/qcm-server/internal/quiz"
	"github.com/qcm-las/qcm-server/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SessionDefaults seeds new sessions from server configuration.
type SessionDefaults struct {
	SecondsPerQuestion int
	TimerEnabled       bool
}

// CreateSessionHandler imports a question set and starts a session on it.
// The body is either a raw question array or {title, questions}; the policy
// query parameter picks strict (user paste, first error aborts) or lenient
// (generated batches, failures dropped) validation.
func CreateSessionHandler(reg *SessionRegistry, saver quiz.RunSaver, defaults SessionDefaults) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
		if err != nil {
			http.Error(w, "read body", 400)
			return
		}
		title, raws, err := quiz.ParseImport(body)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}

		mode := quiz.Mode(r.URL.Query().Get("mode"))
		if mode != quiz.ModeTrain {
			mode = quiz.ModeExam
		}

		var qs []quiz.Question
		dropped := 0
		if r.URL.Query().Get("policy") == "lenient" {
			qs, dropped = quiz.LoadLenient(raws)
		} else {
			qs, err = quiz.LoadStrict(raws)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
		}

		s := quiz.NewSession(uuid.NewString(), mode, defaults.SecondsPerQuestion, defaults.TimerEnabled)
		ctl := quiz.NewController(s, saver, nil)
		if err := ctl.Begin(qs, title); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		reg.Put(ctl)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"session_id":     s.ID,
			"phase":          ctl.Phase(),
			"question_count": len(qs),
			"dropped_count":  dropped,
			"timer":          s.Timer,
		})
	}
}

// sessionView is the state snapshot served to the client. Answer keys and
// explanations are withheld for questions whose grade is not yet visible.
type sessionView struct {
	ID        string                        `json:"id"`
	Title     string                        `json:"title"`
	Mode      quiz.Mode                     `json:"mode"`
	Phase     quiz.Phase                    `json:"phase"`
	Current   int                           `json:"current"`
	Questions []quiz.Question               `json:"questions"`
	Answers   map[int]quiz.Answer           `json:"answers"`
	Validated map[int]quiz.ValidationResult `json:"validated,omitempty"`
	Flagged   []int                         `json:"flagged"`
	Finished  bool                          `json:"finished"`
	Timer     quiz.Timer                    `json:"timer"`
	Metrics   *quiz.Metrics                 `json:"metrics,omitempty"`
}

func viewOf(ctl *quiz.Controller) sessionView {
	s := ctl.Session()
	v := sessionView{
		ID:       s.ID,
		Title:    s.Title,
		Mode:     s.Mode,
		Phase:    ctl.Phase(),
		Current:  s.Current,
		Answers:  s.Answers,
		Flagged:  s.FlaggedIndices(),
		Finished: s.Finished,
		Timer:    s.Timer,
	}
	if m, ok := ctl.Metrics(); ok {
		v.Metrics = &m
	}
	inProgress := ctl.Phase() == quiz.PhaseInProgress
	v.Questions = make([]quiz.Question, len(s.Questions))
	for i, q := range s.Questions {
		_, graded := s.Validated[i]
		revealed := !inProgress || (s.Mode == quiz.ModeTrain && graded)
		if revealed {
			v.Questions[i] = q
			continue
		}
		q.AnswerIndices = nil
		q.Truth = nil
		q.Explanation = ""
		v.Questions[i] = q
	}
	if !inProgress || s.Mode == quiz.ModeTrain {
		v.Validated = s.Validated
	}
	return v
}

// DeleteSessionHandler discards a live session entirely. Saved runs are
// untouched; only the in-memory state goes away.
func DeleteSessionHandler(reg *SessionRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg.Drop(chi.URLParam(r, "sessionID"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func GetSessionHandler(reg *SessionRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		err := reg.With(id, func(ctl *quiz.Controller) error {
			return json.NewEncoder(w).Encode(viewOf(ctl))
		})
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, err.Error(), 404)
		}
	}
}

func withSession(reg *SessionRegistry, w http.ResponseWriter, r *http.Request, fn func(ctl *quiz.Controller) error) {
	id := chi.URLParam(r, "sessionID")
	err := reg.With(id, fn)
	switch {
	case err == nil:
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, err.Error(), 404)
	case errors.Is(err, quiz.ErrWrongPhase):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, quiz.ErrIncompleteAnswer):
		http.Error(w, "all five items must be answered before validation", http.StatusConflict)
	default:
		http.Error(w, err.Error(), 400)
	}
}

// AnswerHandler records a selection for one question.
func AnswerHandler(reg *SessionRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Index  int         `json:"index"`
			Answer quiz.Answer `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		withSession(reg, w, r, func(ctl *quiz.Controller) error {
			if err := ctl.Answer(req.Index, req.Answer); err != nil {
				return err
			}
			return json.NewEncoder(w).Encode(map[string]any{"recorded": true})
		})
	}
}

// NavigateHandler moves the cursor; out-of-range targets clamp.
func NavigateHandler(reg *SessionRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Index int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		withSession(reg, w, r, func(ctl *quiz.Controller) error {
			if err := ctl.Navigate(req.Index); err != nil {
				return err
			}
			return json.NewEncoder(w).Encode(map[string]any{"current": ctl.Session().Current})
		})
	}
}

// ValidateHandler grades one question on user request. Train mode gets the
// result back immediately; exam mode only acknowledges, the grade surfaces
// at Results.
func ValidateHandler(reg *SessionRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Index int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		withSession(reg, w, r, func(ctl *quiz.Controller) error {
			res, err := ctl.ValidateQuestion(req.Index)
			if err != nil {
				return err
			}
			if ctl.Session().Mode == quiz.ModeTrain {
				return json.NewEncoder(w).Encode(res)
			}
			return json.NewEncoder(w).Encode(map[string]any{"recorded": true})
		})
	}
}

func FlagHandler(reg *SessionRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Index int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		withSession(reg, w, r, func(ctl *quiz.Controller) error {
			if err := ctl.ToggleFlag(req.Index); err != nil {
				return err
			}
			return json.NewEncoder(w).Encode(map[string]any{"flagged": ctl.Session().FlaggedIndices()})
		})
	}
}

// TickHandler advances the countdown. The client is the single tick source;
// the per-session lock serializes ticks against every other mutation.
func TickHandler(reg *SessionRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		withSession(reg, w, r, func(ctl *quiz.Controller) error {
			return json.NewEncoder(w).Encode(ctl.Tick())
		})
	}
}

func FinishHandler(reg *SessionRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		withSession(reg, w, r, func(ctl *quiz.Controller) error {
			m, err := ctl.Finish()
			if err != nil {
				return err
			}
			return json.NewEncoder(w).Encode(m)
		})
	}
}

// RestartHandler starts a fresh run over a subset of the finished session's
// questions: the ones answered wrong, the flagged ones, or explicit indices.
func RestartHandler(reg *SessionRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Subset  quiz.SubsetSelector `json:"subset"`
			Indices []int               `json:"indices"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		withSession(reg, w, r, func(ctl *quiz.Controller) error {
			if err := ctl.Restart(req.Subset, req.Indices); err != nil {
				return err
			}
			return json.NewEncoder(w).Encode(viewOf(ctl))
		})
	}
}

func ResetHandler(reg *SessionRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		withSession(reg, w, r, func(ctl *quiz.Controller) error {
			ctl.BackToSetup()
			return json.NewEncoder(w).Encode(map[string]any{"phase": ctl.Phase()})
		})
	}
}

// ReconfigureHandler applies new timer settings; the engine guarantees no
// stale countdown survives the change.
func ReconfigureHandler(reg *SessionRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SecondsPerQuestion int  `json:"seconds_per_question"`
			TimerEnabled       bool `json:"timer_enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.SecondsPerQuestion <= 0 {
			http.Error(w, "seconds_per_question must be positive", 400)
			return
		}
		withSession(reg, w, r, func(ctl *quiz.Controller) error {
			ctl.Reconfigure(req.SecondsPerQuestion, req.TimerEnabled)
			return json.NewEncoder(w).Encode(ctl.Session().Timer)
		})
	}
}

// ExportHandler serves the full session projection as a downloadable JSON
// document and keeps a copy in the export store. A failed disk write is
// logged, not surfaced; the download is what matters.
func ExportHandler(reg *SessionRegistry, exports *storage.FSStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		withSession(reg, w, r, func(ctl *quiz.Controller) error {
			s := ctl.Session()
			var mp *quiz.Metrics
			if m, ok := ctl.Metrics(); ok {
				mp = &m
			}
			data, err := quiz.ExportSession(s, mp, time.Now())
			if err != nil {
				return err
			}
			if exports != nil {
				if _, err := exports.SaveExport(s.ID, data); err != nil {
					log.Printf("export write failed for %s: %v", s.ID, err)
				}
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Content-Disposition", `attachment; filename="qcm-session-`+s.ID+`.json"`)
			_, err = w.Write(data)
			return err
		})
	}
}
