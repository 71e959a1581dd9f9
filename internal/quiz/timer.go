package quiz

import "time"

// Timer is the countdown attached to an exam-mode session. It has exactly
// two states: Running and Stopped (Running=false). All transitions go
// through the Session methods below; ticks and other session mutations are
// serialized by the owning Controller, so the fields need no lock.
type Timer struct {
	Enabled            bool `json:"enabled"`
	SecondsPerQuestion int  `json:"seconds_per_question"`
	TotalSeconds       int  `json:"total_seconds"`
	RemainingSeconds   int  `json:"remaining_seconds"`
	Running            bool `json:"running"`

	lastTick time.Time
}

// StartTimer arms the countdown. It is a no-op unless the session is in exam
// mode, the timer is enabled, and questions are loaded. A zero total is
// derived from the per-question budget; an exhausted countdown is rewound to
// the full total before running again.
func (s *Session) StartTimer(now time.Time) {
	if s.Mode != ModeExam || !s.Timer.Enabled || len(s.Questions) == 0 {
		return
	}
	if s.Timer.TotalSeconds <= 0 {
		s.Timer.TotalSeconds = len(s.Questions) * s.Timer.SecondsPerQuestion
	}
	if s.Timer.RemainingSeconds <= 0 {
		s.Timer.RemainingSeconds = s.Timer.TotalSeconds
	}
	s.Timer.Running = true
	s.Timer.lastTick = now
}

// TickTimer advances the countdown by the wall-clock delta since the last
// tick, never less than one second so coalesced ticks still make progress.
// Reaching zero stops the timer and reports expiry; the caller owns what
// happens next (forced finalization).
func (s *Session) TickTimer(now time.Time) (remaining int, expired bool) {
	if !s.Timer.Running {
		return s.Timer.RemainingSeconds, false
	}
	elapsed := int(now.Sub(s.Timer.lastTick).Seconds())
	if elapsed < 1 {
		elapsed = 1
	}
	s.Timer.lastTick = now
	s.Timer.RemainingSeconds -= elapsed
	if s.Timer.RemainingSeconds <= 0 {
		s.Timer.RemainingSeconds = 0
		s.Timer.Running = false
		return 0, true
	}
	return s.Timer.RemainingSeconds, false
}

// StopTimer halts the countdown. Safe to call redundantly, and always called
// before a session is torn down or replaced so a stale tick can never touch
// a superseded session.
func (s *Session) StopTimer() {
	s.Timer.Running = false
	s.Timer.lastTick = time.Time{}
}

// ReconfigureTimer applies a new per-question budget or enable toggle. The
// countdown always stops first and restarts from fresh totals when the start
// conditions still hold; a configuration change never leaves an old
// countdown running.
func (s *Session) ReconfigureTimer(secondsPerQuestion int, enabled bool, now time.Time) {
	wasRunning := s.Timer.Running
	s.StopTimer()
	s.Timer.SecondsPerQuestion = secondsPerQuestion
	s.Timer.Enabled = enabled
	s.Timer.TotalSeconds = len(s.Questions) * secondsPerQuestion
	s.Timer.RemainingSeconds = s.Timer.TotalSeconds
	if wasRunning && enabled {
		s.StartTimer(now)
	}
}
