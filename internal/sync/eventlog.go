package syncx

import (
	"context"
	"database/sql"
	"time"
)

// Event is one append-only record of session lifecycle: a run finishing, an
// export being written. The log is what a future sync/stats job replays.
type Event struct {
	Offset    int64
	SiteID    string
	Type      string // e.g., RunFinished, ExportWritten
	Key       string // natural key: session/run ID
	DataJSON  string
	CreatedAt int64
}

const (
	EventRunFinished   = "RunFinished"
	EventExportWritten = "ExportWritten"
)

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	site := e.SiteID
	if site == "" {
		site = "local"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		site, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}
