package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event is one append-only record of something that happened, keyed by the
// id of the affected record. The log exists for audit and for later
// multi-site reconciliation, not for serving reads.
type Event struct {
	Seq       int64  `json:"seq,omitempty"`
	SiteID    string `json:"siteId,omitempty"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"createdAt"`
}

// Recorder appends events. Implementations must be safe for concurrent use.
type Recorder interface {
	Append(ctx context.Context, e Event) error
}

// EventRepo records events in the event_log table.
type EventRepo struct {
	db     *sql.DB
	siteID string
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	return &EventRepo{db: db, siteID: siteID}
}

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// FileLog appends events as JSON lines, one event per line. It backs the
// file-based storage mode, where there is no database to hold the log.
type FileLog struct {
	mu     sync.Mutex
	path   string
	siteID string
}

func NewFileLog(dir, siteID string) *FileLog {
	return &FileLog{path: filepath.Join(dir, "events.log"), siteID: siteID}
}

func (l *FileLog) Append(_ context.Context, e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.SiteID = l.siteID
	e.CreatedAt = time.Now().Unix()
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
