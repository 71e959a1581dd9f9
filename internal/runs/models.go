package runs

import "github.com/qcm-las/qcm-server/internal/quiz"

// Run is one finished quiz session as persisted. The question/answer/grade
// detail rides along as JSON exactly as the engine produced it; the metric
// columns are denormalized for listing and stats without re-parsing.
type Run struct {
	ID            string    `json:"id"`
	Mode          quiz.Mode `json:"mode"`
	Title         string    `json:"title"`
	Mean          float64   `json:"mean"`
	Note20        float64   `json:"note20"`
	AnsweredCount int       `json:"answered_count"`
	QuestionCount int       `json:"question_count"`
	SnapshotJSON  string    `json:"snapshot,omitempty"`
	StartedAt     int64     `json:"started_at"`
	EndedAt       int64     `json:"ended_at"`
}

// ListOpts filters and pages run history queries.
type ListOpts struct {
	Mode   string
	Limit  int
	Offset int
}

// Stats aggregates the saved history for the results dashboard.
type Stats struct {
	RunCount   int     `json:"run_count"`
	MeanNote20 float64 `json:"mean_note20"`
	BestNote20 float64 `json:"best_note20"`
}
