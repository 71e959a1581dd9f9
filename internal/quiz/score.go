package quiz

import "errors"

// ErrIncompleteAnswer is reported when a per-item tf question is validated
// with unanswered rows outside forced finalization. Callers recover by
// prompting for the missing rows; it is never fatal.
var ErrIncompleteAnswer = errors.New("incomplete answer")

// ScoreForErrors is the partial-credit curve the whole grading policy hangs
// on: full credit at zero errors, half at one, a fifth at two, nothing past
// that. The drop from 0.2 to 0 at the third error is deliberate.
func ScoreForErrors(errs int) float64 {
	switch {
	case errs <= 0:
		return 1.0
	case errs == 1:
		return 0.5
	case errs == 2:
		return 0.2
	default:
		return 0.0
	}
}

// ScoreMulti counts false positives plus missed correct options (the size of
// the symmetric difference between the selection and the answer key).
func ScoreMulti(q Question, selected []int) ValidationResult {
	correct := make(map[int]bool, len(q.AnswerIndices))
	for _, i := range q.AnswerIndices {
		correct[i] = true
	}
	chosen := make(map[int]bool, len(selected))
	for _, i := range selected {
		chosen[i] = true
	}
	errs := 0
	for i := range chosen {
		if !correct[i] {
			errs++
		}
	}
	for i := range correct {
		if !chosen[i] {
			errs++
		}
	}
	return ValidationResult{Score: ScoreForErrors(errs), Errors: errs}
}

// ScoreTF grades a per-item tf question by Hamming distance against the
// truth row. Every slot must be answered; ErrIncompleteAnswer is returned
// otherwise and nothing is scored.
func ScoreTF(q Question, userTruth []*bool) (ValidationResult, error) {
	if len(userTruth) != 5 {
		return ValidationResult{}, ErrIncompleteAnswer
	}
	errs := 0
	for i, v := range userTruth {
		if v == nil {
			return ValidationResult{}, ErrIncompleteAnswer
		}
		if *v != q.Truth[i] {
			errs++
		}
	}
	return ValidationResult{Score: ScoreForErrors(errs), Errors: errs}, nil
}

// ScoreTFSingle grades a single-mode tf question. When the expected answer
// cannot be derived (no Vrai/Faux token survived import, i.e. corrupt
// upstream data) the result is downgraded to a worst case instead of
// failing, since the user cannot repair the question mid-session.
func ScoreTFSingle(q Question, userTruth bool) ValidationResult {
	expected, ok := q.SingleTFExpected()
	if !ok {
		return ValidationResult{Score: 0.0, Errors: 1}
	}
	if userTruth == expected {
		return ValidationResult{Score: 1.0, Errors: 0}
	}
	return ValidationResult{Score: 0.5, Errors: 1}
}

// scoreForced grades a question during end-of-session finalization, where an
// absent or partial answer must still produce a result. Multi questions are
// scored against whatever was selected (possibly nothing); a tf question
// with any unanswered row is treated as if every row were wrong.
func scoreForced(q Question, a Answer, answered bool) ValidationResult {
	switch q.Kind {
	case KindMulti:
		if !answered {
			return ScoreMulti(q, nil)
		}
		return ScoreMulti(q, a.Indices)
	case KindTF:
		if q.IsSingleTF() {
			v := firstTruthSlot(a.Truth)
			if !answered || v == nil {
				return ValidationResult{Score: 0.0, Errors: 1}
			}
			return ScoreTFSingle(q, *v)
		}
		if !answered || !a.Complete() {
			return ValidationResult{Score: 0.0, Errors: 5}
		}
		res, _ := ScoreTF(q, a.Truth)
		return res
	}
	return ValidationResult{}
}

func firstTruthSlot(slots []*bool) *bool {
	for _, v := range slots {
		if v != nil {
			return v
		}
	}
	return nil
}

// ComputeFinalMetrics averages per-question scores over every loaded
// question. An index without a ValidationResult contributes zero to the sum
// but still counts in the denominator.
func ComputeFinalMetrics(s *Session) Metrics {
	n := len(s.Questions)
	if n == 0 {
		return Metrics{}
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		if res, ok := s.Validated[i]; ok {
			sum += res.Score
		}
	}
	mean := sum / float64(n)
	return Metrics{
		Mean:          mean,
		Note20:        mean * 20,
		AnsweredCount: len(s.Answers),
	}
}
