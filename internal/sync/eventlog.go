package syncx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-headlessquiz/internal/db"
)

// Attempt lifecycle event types.
const (
	AttemptStarted   = "AttemptStarted"
	AttemptAbandoned = "AttemptAbandoned"
	AttemptFinished  = "AttemptFinished"
	ResponsesSaved   = "ResponsesSaved"
)

type Event struct {
	Seq       int64           `json:"seq"`
	SiteID    string          `json:"site_id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	DataJSON  json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at"`
}

type EventRepo struct {
	site string
	now  func() time.Time
}

func NewEventRepo(site string) *EventRepo {
	if site == "" {
		site = "local"
	}
	return &EventRepo{site: site, now: time.Now}
}

// Append writes e through ex, normally the transaction that made the change.
func (r *EventRepo) Append(ctx context.Context, ex db.Execer, typ, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "encode %s event", typ)
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.site, typ, key, string(data), r.now().Unix())
	return errors.Wrapf(err, "append %s event", typ)
}

// Since lists events after seq in log order.
func (r *EventRepo) Since(ctx context.Context, ex db.Execer, seq int64, limit int) ([]Event, error) {
	rows, err := ex.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log
		 WHERE seq > $1 ORDER BY seq LIMIT $2`, seq, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var (
			e    Event
			data string
		)
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &data, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		e.DataJSON = json.RawMessage(data)
		out = append(out, e)
	}
	return out, rows.Err()
}
