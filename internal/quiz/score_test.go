package quiz

import (
	"math"
	"testing"
)

func multiQ(answers ...int) Question {
	return Question{
		Kind:          KindMulti,
		Text:          "Concernant le coeur humain :",
		Options:       []string{"A un", "B deux", "C trois", "D quatre", "E cinq"},
		AnswerIndices: answers,
		Difficulty:    DifficultyMoyen,
	}
}

func tfQ(truth ...bool) Question {
	return Question{
		Kind:       KindTF,
		Text:       "Parmi les propositions suivantes :",
		Items:      []string{"A aorte", "B veine", "C artere", "D plasma", "E globule"},
		Truth:      truth,
		Difficulty: DifficultyFacile,
	}
}

func singleTFQ(expected bool) Question {
	q := Question{
		Kind:       KindTF,
		Text:       "Le coeur comporte quatre cavites.",
		Items:      []string{"A Vrai", "B Faux", "C Faux", "D Faux", "E Faux"},
		Difficulty: DifficultyFacile,
	}
	q.Truth = []bool{expected, !expected, !expected, !expected, !expected}
	return q
}

func bp(b bool) *bool { return &b }

func fullTruth(vals ...bool) []*bool {
	out := make([]*bool, len(vals))
	for i, v := range vals {
		out[i] = bp(v)
	}
	return out
}

func TestScoreCurve(t *testing.T) {
	cases := []struct {
		errs int
		want float64
	}{
		{0, 1.0}, {1, 0.5}, {2, 0.2}, {3, 0.0}, {4, 0.0}, {5, 0.0}, {7, 0.0},
	}
	for _, c := range cases {
		if got := ScoreForErrors(c.errs); got != c.want {
			t.Fatalf("ScoreForErrors(%d) = %v, want %v", c.errs, got, c.want)
		}
	}
}

func TestScoreMultiSymmetricDifference(t *testing.T) {
	q := multiQ(0, 2, 4)
	// Exhaust every subset of {0..4} and check the error count against the
	// symmetric difference computed independently.
	for mask := 0; mask < 32; mask++ {
		var sel []int
		for i := 0; i < 5; i++ {
			if mask&(1<<i) != 0 {
				sel = append(sel, i)
			}
		}
		want := 0
		for i := 0; i < 5; i++ {
			inSel := mask&(1<<i) != 0
			inKey := i == 0 || i == 2 || i == 4
			if inSel != inKey {
				want++
			}
		}
		res := ScoreMulti(q, sel)
		if res.Errors != want {
			t.Fatalf("mask %05b: errors = %d, want %d", mask, res.Errors, want)
		}
		if res.Score != ScoreForErrors(want) {
			t.Fatalf("mask %05b: score = %v, want %v", mask, res.Score, ScoreForErrors(want))
		}
	}
}

func TestScoreMultiEmptySelection(t *testing.T) {
	res := ScoreMulti(multiQ(1, 3), nil)
	if res.Errors != 2 || res.Score != 0.2 {
		t.Fatalf("empty selection: got %+v, want errors=2 score=0.2", res)
	}
}

func TestScoreTFHammingDistance(t *testing.T) {
	q := tfQ(true, false, true, false, true)
	cases := []struct {
		user []*bool
		want int
	}{
		{fullTruth(true, false, true, false, true), 0},
		{fullTruth(false, false, true, false, true), 1},
		{fullTruth(false, true, true, false, true), 2},
		{fullTruth(false, true, false, true, false), 5},
	}
	for _, c := range cases {
		res, err := ScoreTF(q, c.user)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Errors != c.want {
			t.Fatalf("errors = %d, want %d", res.Errors, c.want)
		}
		if res.Score != ScoreForErrors(c.want) {
			t.Fatalf("score = %v, want %v", res.Score, ScoreForErrors(c.want))
		}
	}
}

func TestScoreTFRefusesIncomplete(t *testing.T) {
	q := tfQ(true, true, true, true, true)
	user := fullTruth(true, true, true, true, true)
	user[3] = nil
	if _, err := ScoreTF(q, user); err != ErrIncompleteAnswer {
		t.Fatalf("expected ErrIncompleteAnswer, got %v", err)
	}
	if _, err := ScoreTF(q, nil); err != ErrIncompleteAnswer {
		t.Fatalf("expected ErrIncompleteAnswer for nil slots, got %v", err)
	}
}

func TestScoreTFSingle(t *testing.T) {
	q := singleTFQ(true)
	if res := ScoreTFSingle(q, true); res.Errors != 0 || res.Score != 1.0 {
		t.Fatalf("correct single tf: got %+v", res)
	}
	if res := ScoreTFSingle(q, false); res.Errors != 1 || res.Score != 0.5 {
		t.Fatalf("wrong single tf: got %+v", res)
	}
}

func TestScoreTFSingleFauxOnly(t *testing.T) {
	// No Vrai item: the expected answer is the inverse of the Faux pairing.
	q := Question{
		Kind:  KindTF,
		Text:  "Le plasma est un tissu solide.",
		Items: []string{"A Faux", "B Faux", "C Faux", "D Faux", "E Faux"},
		Truth: []bool{true, true, true, true, true},
	}
	expected, ok := q.SingleTFExpected()
	if !ok || expected != false {
		t.Fatalf("expected derivation (false, true), got (%v, %v)", expected, ok)
	}
	if res := ScoreTFSingle(q, false); res.Errors != 0 {
		t.Fatalf("matching inverted Faux should score clean: %+v", res)
	}
}

func TestScoreTFSingleMalformedDowngrades(t *testing.T) {
	q := tfQ(true, true, true, true, true) // ordinary items, no Vrai/Faux token
	res := ScoreTFSingle(q, true)
	if res.Errors != 1 || res.Score != 0.0 {
		t.Fatalf("malformed single tf must be worst-cased, got %+v", res)
	}
}

func TestComputeFinalMetricsDenominator(t *testing.T) {
	s := NewSession("s1", ModeExam, 90, true)
	s.LoadQuestions([]Question{multiQ(0), multiQ(1), multiQ(2), multiQ(3)})
	s.Validated[0] = ValidationResult{Score: 1.0}
	s.Validated[1] = ValidationResult{Score: 0.5}
	// indices 2 and 3 never validated: they stay in the denominator.
	m := ComputeFinalMetrics(s)
	if want := 1.5 / 4; math.Abs(m.Mean-want) > 1e-9 {
		t.Fatalf("mean = %v, want %v", m.Mean, want)
	}
	if math.Abs(m.Note20-m.Mean*20) > 1e-9 {
		t.Fatalf("note20 = %v, want %v", m.Note20, m.Mean*20)
	}
}

func TestComputeFinalMetricsAllUnanswered(t *testing.T) {
	s := NewSession("s1", ModeTrain, 90, false)
	s.LoadQuestions([]Question{multiQ(0), multiQ(1)})
	m := ComputeFinalMetrics(s)
	if m.Mean != 0 || m.Note20 != 0 || m.AnsweredCount != 0 {
		t.Fatalf("all-unanswered session: got %+v", m)
	}
}
