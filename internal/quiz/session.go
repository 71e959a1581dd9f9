package quiz

import "fmt"

// NewSession builds an empty session with the given timer defaults. It holds
// nothing until LoadQuestions is called.
func NewSession(id string, mode Mode, secondsPerQuestion int, timerEnabled bool) *Session {
	return &Session{
		ID:        id,
		Mode:      mode,
		Answers:   map[int]Answer{},
		Validated: map[int]ValidationResult{},
		Flagged:   map[int]bool{},
		Timer: Timer{
			Enabled:            timerEnabled,
			SecondsPerQuestion: secondsPerQuestion,
		},
	}
}

// LoadQuestions replaces the question set wholesale: cursor back to zero,
// answers, grades and flags cleared, timer totals re-derived. Loading
// mid-session discards everything from the prior run; there is no merge.
func (s *Session) LoadQuestions(qs []Question) {
	s.StopTimer()
	s.Questions = qs
	s.Current = 0
	s.Answers = map[int]Answer{}
	s.Validated = map[int]ValidationResult{}
	s.Flagged = map[int]bool{}
	s.Finished = false
	s.StartedAt = nil
	s.EndedAt = nil
	s.Timer.TotalSeconds = len(qs) * s.Timer.SecondsPerQuestion
	s.Timer.RemainingSeconds = s.Timer.TotalSeconds
}

// SetAnswer overwrites the stored answer for an index unconditionally. It
// never scores.
func (s *Session) SetAnswer(index int, a Answer) error {
	if index < 0 || index >= len(s.Questions) {
		return fmt.Errorf("answer index %d out of range", index)
	}
	if a.Kind != s.Questions[index].Kind {
		return fmt.Errorf("answer kind %q does not match question kind %q", a.Kind, s.Questions[index].Kind)
	}
	s.Answers[index] = a
	return nil
}

// Validate grades the stored answer for an index and records the result.
// In normal validation a per-item tf answer with unanswered rows refuses to
// grade and reports ErrIncompleteAnswer; under forced finalization the gaps
// are scored as fully wrong instead so the session can always complete.
func (s *Session) Validate(index int, forced bool) error {
	if index < 0 || index >= len(s.Questions) {
		return fmt.Errorf("validate index %d out of range", index)
	}
	q := s.Questions[index]
	a, answered := s.Answers[index]

	if forced {
		s.Validated[index] = scoreForced(q, a, answered)
		return nil
	}

	switch q.Kind {
	case KindMulti:
		if !answered {
			a = Answer{Kind: KindMulti}
		}
		s.Validated[index] = ScoreMulti(q, a.Indices)
	case KindTF:
		if q.IsSingleTF() {
			v := firstTruthSlot(a.Truth)
			if !answered || v == nil {
				return ErrIncompleteAnswer
			}
			s.Validated[index] = ScoreTFSingle(q, *v)
			return nil
		}
		if !answered {
			return ErrIncompleteAnswer
		}
		res, err := ScoreTF(q, a.Truth)
		if err != nil {
			return err
		}
		s.Validated[index] = res
	}
	return nil
}

// GoTo moves the cursor, clamping out-of-range requests into [0, n-1].
func (s *Session) GoTo(index int) {
	if len(s.Questions) == 0 {
		s.Current = 0
		return
	}
	if index < 0 {
		index = 0
	}
	if index > len(s.Questions)-1 {
		index = len(s.Questions) - 1
	}
	s.Current = index
}

// ToggleFlag marks or unmarks a question for later review.
func (s *Session) ToggleFlag(index int) error {
	if index < 0 || index >= len(s.Questions) {
		return fmt.Errorf("flag index %d out of range", index)
	}
	if s.Flagged[index] {
		delete(s.Flagged, index)
	} else {
		s.Flagged[index] = true
	}
	return nil
}

// Reset clears the session back to its initial empty state and stops the
// timer.
func (s *Session) Reset() {
	s.LoadQuestions(nil)
}

// Subset returns the original question objects at the given indices,
// skipping anything out of range. Restarting on the result is a full new
// session via LoadQuestions, never a resume.
func (s *Session) Subset(indices []int) []Question {
	out := make([]Question, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(s.Questions) {
			out = append(out, s.Questions[i])
		}
	}
	return out
}

// WrongIndices lists every graded question that lost at least one point.
func (s *Session) WrongIndices() []int {
	out := []int{}
	for i := 0; i < len(s.Questions); i++ {
		if res, ok := s.Validated[i]; ok && res.Errors > 0 {
			out = append(out, i)
		}
	}
	return out
}

// FlaggedIndices lists flagged questions in position order.
func (s *Session) FlaggedIndices() []int {
	out := []int{}
	for i := 0; i < len(s.Questions); i++ {
		if s.Flagged[i] {
			out = append(out, i)
		}
	}
	return out
}
