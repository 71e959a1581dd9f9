package quiz

import (
	"encoding/json"
	"fmt"
	"time"
)

// Export is the downloadable projection of a full session. It is read-only:
// nothing in the engine consumes it besides ParseExport, which exists so a
// saved file can be inspected or re-imported losslessly.
type Export struct {
	SessionID  string                   `json:"session_id"`
	Title      string                   `json:"title"`
	Mode       Mode                     `json:"mode"`
	Questions  []Question               `json:"questions"`
	Answers    map[int]Answer           `json:"answers"`
	Validated  map[int]ValidationResult `json:"validated"`
	Flagged    []int                    `json:"flagged"`
	Metrics    *Metrics                 `json:"metrics,omitempty"`
	StartedAt  *time.Time               `json:"started_at,omitempty"`
	EndedAt    *time.Time               `json:"ended_at,omitempty"`
	ExportedAt time.Time                `json:"exported_at"`
}

// ExportSession serializes the session as one JSON document. The flagged
// set comes out as a sorted array; metrics are included once the session has
// them.
func ExportSession(s *Session, m *Metrics, now time.Time) ([]byte, error) {
	e := Export{
		SessionID:  s.ID,
		Title:      s.Title,
		Mode:       s.Mode,
		Questions:  s.Questions,
		Answers:    s.Answers,
		Validated:  s.Validated,
		Flagged:    s.FlaggedIndices(),
		Metrics:    m,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
		ExportedAt: now,
	}
	return json.MarshalIndent(e, "", "  ")
}

// ParseExport reads an exported document back.
func ParseExport(data []byte) (Export, error) {
	var e Export
	if err := json.Unmarshal(data, &e); err != nil {
		return Export{}, fmt.Errorf("parse export: %w", err)
	}
	if e.Answers == nil {
		e.Answers = map[int]Answer{}
	}
	if e.Validated == nil {
		e.Validated = map[int]ValidationResult{}
	}
	return e, nil
}
