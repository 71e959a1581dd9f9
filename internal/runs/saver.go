package runs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qcm-las/qcm-server/internal/quiz"
	syncx "github.com/qcm-las/qcm-server/internal/sync"
)

// Saver adapts the engine's fire-and-forget RunSnapshot into a stored Run
// plus an event-log record. It satisfies quiz.RunSaver.
type Saver struct {
	store  Store
	events *syncx.EventRepo
}

// NewSaver builds a Saver; events may be nil (no event log, e.g. in-memory
// deployments).
func NewSaver(store Store, events *syncx.EventRepo) *Saver {
	return &Saver{store: store, events: events}
}

func (s *Saver) SaveRun(ctx context.Context, snap quiz.RunSnapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	r := Run{
		ID:            snap.SessionID,
		Mode:          snap.Mode,
		Title:         snap.Title,
		Mean:          snap.Metrics.Mean,
		Note20:        snap.Metrics.Note20,
		AnsweredCount: snap.Metrics.AnsweredCount,
		QuestionCount: len(snap.Questions),
		SnapshotJSON:  string(blob),
	}
	if snap.StartedAt != nil {
		r.StartedAt = snap.StartedAt.Unix()
	}
	if snap.EndedAt != nil {
		r.EndedAt = snap.EndedAt.Unix()
	}
	if err := s.store.PutRun(ctx, r); err != nil {
		return err
	}
	if s.events != nil {
		summary, _ := json.Marshal(map[string]any{
			"note20": r.Note20, "questions": r.QuestionCount, "mode": r.Mode,
		})
		if err := s.events.Append(ctx, syncx.Event{
			Type:     syncx.EventRunFinished,
			Key:      r.ID,
			DataJSON: string(summary),
		}); err != nil {
			// The run row is the source of truth; a missed event is not.
			return fmt.Errorf("run saved, event append failed: %w", err)
		}
	}
	return nil
}
