package quiz

import (
	"strings"
	"time"
)

// Kind discriminates the two supported question shapes.
type Kind string

const (
	KindMulti Kind = "multi"
	KindTF    Kind = "tf"
)

type Difficulty string

const (
	DifficultyFacile    Difficulty = "facile"
	DifficultyMoyen     Difficulty = "moyen"
	DifficultyDifficile Difficulty = "difficile"
)

// Evidence points back into the source document a question was drawn from.
type Evidence struct {
	Page    int    `json:"page"`
	Excerpt string `json:"excerpt"`
}

// Question is the validated form of an imported question. Kind selects which
// of the variant fields are populated: Options/AnswerIndices for multi,
// Items/Truth for tf. Both variants carry exactly five A–E entries.
type Question struct {
	Kind Kind   `json:"type"`
	Text string `json:"question"`

	// multi
	Options       []string `json:"options,omitempty"`
	AnswerIndices []int    `json:"answer_indices,omitempty"`

	// tf
	Items []string `json:"items,omitempty"`
	Truth []bool   `json:"truth,omitempty"`

	Explanation string     `json:"explanation"`
	Difficulty  Difficulty `json:"difficulty"`
	Evidence    []Evidence `json:"evidence,omitempty"`
}

// tfTokens are the literal item texts that flip a tf question into its
// single yes/no sub-mode.
var tfTrueTokens = map[string]bool{"vrai": true, "true": true}
var tfFalseTokens = map[string]bool{"faux": true, "false": true}

func stripItemLabel(s string) string {
	t := strings.TrimSpace(s)
	if len(t) >= 2 && t[0] >= 'A' && t[0] <= 'E' && t[1] == ' ' {
		return strings.TrimSpace(t[2:])
	}
	return t
}

// IsSingleTF reports whether every item of a tf question is itself a literal
// Vrai/Faux token, collapsing the five rows into one yes/no question.
func (q Question) IsSingleTF() bool {
	if q.Kind != KindTF || len(q.Items) != 5 {
		return false
	}
	for _, it := range q.Items {
		tok := strings.ToLower(stripItemLabel(it))
		if !tfTrueTokens[tok] && !tfFalseTokens[tok] {
			return false
		}
	}
	return true
}

// SingleTFExpected derives the one correct answer of a single-mode tf
// question: the truth value paired with the Vrai/True item, or the inverse
// of the Faux/False pairing when no true-token item exists. ok is false when
// neither token is present (corrupt upstream data).
func (q Question) SingleTFExpected() (expected, ok bool) {
	if q.Kind != KindTF || len(q.Items) != 5 || len(q.Truth) != 5 {
		return false, false
	}
	for i, it := range q.Items {
		if tfTrueTokens[strings.ToLower(stripItemLabel(it))] {
			return q.Truth[i], true
		}
	}
	for i, it := range q.Items {
		if tfFalseTokens[strings.ToLower(stripItemLabel(it))] {
			return !q.Truth[i], true
		}
	}
	return false, false
}

// Answer is what the user selected for one question. For multi questions
// Indices holds the checked option positions; for tf questions Truth holds
// five slots where nil means the row was never answered.
type Answer struct {
	Kind    Kind    `json:"type"`
	Indices []int   `json:"indices,omitempty"`
	Truth   []*bool `json:"truth,omitempty"`
}

// Complete reports whether a tf answer has all five slots filled. Multi
// answers are always complete (an empty selection is a valid selection).
func (a Answer) Complete() bool {
	if a.Kind != KindTF {
		return true
	}
	if len(a.Truth) != 5 {
		return false
	}
	for _, v := range a.Truth {
		if v == nil {
			return false
		}
	}
	return true
}

// ValidationResult is the graded outcome for one question.
type ValidationResult struct {
	Score  float64 `json:"score"`
	Errors int     `json:"errors"`
}

type Mode string

const (
	ModeExam  Mode = "exam"
	ModeTrain Mode = "train"
)

// Session is the aggregate root of one quiz run: the loaded questions, the
// user's answers and grades so far, the cursor, and the countdown state.
// It is owned by a Controller and must only be mutated through its
// operations.
type Session struct {
	ID        string                   `json:"id"`
	Title     string                   `json:"title"`
	Mode      Mode                     `json:"mode"`
	Questions []Question               `json:"questions"`
	Current   int                      `json:"current"`
	Answers   map[int]Answer           `json:"answers"`
	Validated map[int]ValidationResult `json:"validated"`
	Flagged   map[int]bool             `json:"flagged"`
	StartedAt *time.Time               `json:"started_at,omitempty"`
	EndedAt   *time.Time               `json:"ended_at,omitempty"`
	Finished  bool                     `json:"finished"`
	Timer     Timer                    `json:"timer"`
}

// Metrics is the aggregate grade over a finished (or finalized) session.
// Mean averages per-question scores over every loaded question, counting
// missing grades as zero; Note20 is the same on the French 0–20 scale.
type Metrics struct {
	Mean          float64 `json:"mean"`
	Note20        float64 `json:"note20"`
	AnsweredCount int     `json:"answered_count"`
}
