package quiz

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Phase is where the session stands in its lifecycle.
type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseInProgress Phase = "in_progress"
	PhaseResults    Phase = "results"
)

// RunSnapshot is the projection handed to the persistence collaborator once
// a session reaches Results.
type RunSnapshot struct {
	SessionID string                   `json:"session_id"`
	Mode      Mode                     `json:"mode"`
	Title     string                   `json:"title"`
	Metrics   Metrics                  `json:"metrics"`
	Questions []Question               `json:"questions"`
	Answers   map[int]Answer           `json:"answers"`
	Validated map[int]ValidationResult `json:"validated"`
	Flagged   []int                    `json:"flagged"`
	StartedAt *time.Time               `json:"started_at,omitempty"`
	EndedAt   *time.Time               `json:"ended_at,omitempty"`
}

// RunSaver persists finished runs. Calls are dispatched after the Results
// transition completes and never gate it; a failed save is logged and the
// locally computed score stands.
type RunSaver interface {
	SaveRun(ctx context.Context, snap RunSnapshot) error
}

var (
	ErrNoQuestions  = errors.New("no questions loaded")
	ErrWrongPhase   = errors.New("operation not allowed in this phase")
	ErrAlreadyEnded = errors.New("session already finished")
	ErrEmptySubset  = errors.New("restart subset is empty")
)

// Controller owns one Session and its timer, and is the only writer to
// either. All calls on a Controller must come from a single logical thread;
// the HTTP layer serializes them per session.
type Controller struct {
	session *Session
	phase   Phase
	metrics *Metrics
	saver   RunSaver
	now     func() time.Time
}

// NewController wraps a fresh session. saver may be nil (no persistence);
// now is injectable for tests and defaults to time.Now.
func NewController(s *Session, saver RunSaver, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{session: s, phase: PhaseSetup, saver: saver, now: now}
}

func (c *Controller) Phase() Phase      { return c.phase }
func (c *Controller) Session() *Session { return c.session }

// Metrics returns the aggregate grade once the session has reached Results.
func (c *Controller) Metrics() (Metrics, bool) {
	if c.metrics == nil {
		return Metrics{}, false
	}
	return *c.metrics, true
}

// Begin moves Setup → InProgress with a validated, non-empty question set.
// The timer starts itself only in exam mode with the countdown enabled.
func (c *Controller) Begin(qs []Question, title string) error {
	if c.phase == PhaseInProgress {
		return ErrWrongPhase
	}
	if len(qs) == 0 {
		return ErrNoQuestions
	}
	c.session.LoadQuestions(qs)
	c.session.Title = title
	t := c.now()
	c.session.StartedAt = &t
	c.metrics = nil
	c.phase = PhaseInProgress
	c.session.StartTimer(t)
	return nil
}

// Answer records a selection for a question. Navigation elsewhere never
// discards it.
func (c *Controller) Answer(index int, a Answer) error {
	if c.phase != PhaseInProgress {
		return ErrWrongPhase
	}
	return c.session.SetAnswer(index, a)
}

// Navigate moves the cursor. Out-of-range targets clamp.
func (c *Controller) Navigate(index int) error {
	if c.phase != PhaseInProgress {
		return ErrWrongPhase
	}
	c.session.GoTo(index)
	return nil
}

// ValidateQuestion grades one question on user request. In train mode the
// result is shown immediately; in exam mode it is recorded and surfaced at
// Results. ErrIncompleteAnswer passes through untouched so the caller can
// prompt for the missing rows.
func (c *Controller) ValidateQuestion(index int) (ValidationResult, error) {
	if c.phase != PhaseInProgress {
		return ValidationResult{}, ErrWrongPhase
	}
	if err := c.session.Validate(index, false); err != nil {
		return ValidationResult{}, err
	}
	return c.session.Validated[index], nil
}

// ToggleFlag marks a question for review.
func (c *Controller) ToggleFlag(index int) error {
	if c.phase != PhaseInProgress {
		return ErrWrongPhase
	}
	return c.session.ToggleFlag(index)
}

// Reconfigure applies new timer settings mid-session without ever leaving a
// stale countdown running against old totals.
func (c *Controller) Reconfigure(secondsPerQuestion int, enabled bool) {
	c.session.ReconfigureTimer(secondsPerQuestion, enabled, c.now())
}

// TickResult reports what a timer tick did to the session.
type TickResult struct {
	RemainingSeconds int     `json:"remaining_seconds"`
	Expired          bool    `json:"expired"`
	Metrics          Metrics `json:"metrics,omitempty"`
}

// Tick advances the countdown. Timer expiry is the one path that ends a
// session without explicit user action: it runs the same finalization as an
// explicit finish, exactly once.
func (c *Controller) Tick() TickResult {
	if c.phase != PhaseInProgress || c.session.Finished {
		return TickResult{RemainingSeconds: c.session.Timer.RemainingSeconds}
	}
	remaining, expired := c.session.TickTimer(c.now())
	if !expired {
		return TickResult{RemainingSeconds: remaining}
	}
	m := c.finalize()
	return TickResult{RemainingSeconds: 0, Expired: true, Metrics: m}
}

// Finish ends the session on explicit user action.
func (c *Controller) Finish() (Metrics, error) {
	if c.phase != PhaseInProgress {
		return Metrics{}, ErrWrongPhase
	}
	if c.session.Finished {
		return Metrics{}, ErrAlreadyEnded
	}
	return c.finalize(), nil
}

// finalize stops the timer, synthesizes a ValidationResult for every index
// that has none (gaps score as fully wrong, never as an error), computes the
// aggregate, and only then dispatches the fire-and-forget save.
func (c *Controller) finalize() Metrics {
	s := c.session
	s.StopTimer()
	for i := range s.Questions {
		if _, ok := s.Validated[i]; !ok {
			_ = s.Validate(i, true)
		}
	}
	m := ComputeFinalMetrics(s)
	s.Finished = true
	t := c.now()
	s.EndedAt = &t
	c.metrics = &m
	c.phase = PhaseResults

	if c.saver != nil {
		snap := c.snapshot(m)
		go func() {
			if err := c.saver.SaveRun(context.Background(), snap); err != nil {
				log.Printf("run save failed (results unaffected): %v", err)
			}
		}()
	}
	return m
}

func (c *Controller) snapshot(m Metrics) RunSnapshot {
	s := c.session
	answers := make(map[int]Answer, len(s.Answers))
	for k, v := range s.Answers {
		answers[k] = v
	}
	validated := make(map[int]ValidationResult, len(s.Validated))
	for k, v := range s.Validated {
		validated[k] = v
	}
	return RunSnapshot{
		SessionID: s.ID,
		Mode:      s.Mode,
		Title:     s.Title,
		Metrics:   m,
		Questions: append([]Question(nil), s.Questions...),
		Answers:   answers,
		Validated: validated,
		Flagged:   s.FlaggedIndices(),
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
	}
}

// SubsetSelector names the restart filters the results screen offers.
type SubsetSelector string

const (
	SubsetWrong   SubsetSelector = "wrong"
	SubsetFlagged SubsetSelector = "flagged"
	SubsetIndices SubsetSelector = "indices"
)

// Restart begins a brand-new run over a filtered subsequence of the current
// questions, going straight back to InProgress under the same full-reset
// contract as Begin.
func (c *Controller) Restart(selector SubsetSelector, indices []int) error {
	if c.phase != PhaseResults {
		return ErrWrongPhase
	}
	switch selector {
	case SubsetWrong:
		indices = c.session.WrongIndices()
	case SubsetFlagged:
		indices = c.session.FlaggedIndices()
	case SubsetIndices:
	default:
		return fmt.Errorf("unknown subset selector %q", selector)
	}
	qs := c.session.Subset(indices)
	if len(qs) == 0 {
		return ErrEmptySubset
	}
	c.phase = PhaseSetup
	return c.Begin(qs, c.session.Title)
}

// BackToSetup tears the session down: timer stopped, state cleared.
func (c *Controller) BackToSetup() {
	c.session.Reset()
	c.metrics = nil
	c.phase = PhaseSetup
}
