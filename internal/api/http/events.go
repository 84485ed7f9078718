package http

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mind-engage/mindengage-headlessquiz/internal/db"
	syncx "github.com/mind-engage/mindengage-headlessquiz/internal/sync"
)

const maxEventPage = 500

// GET /api/events?since=<seq>&limit=100
// Attempt lifecycle events in log order, for downstream consumers that
// mirror grades elsewhere.
func EventsHandler(repo *syncx.EventRepo, ex db.Execer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since := parseIntDefault(r.URL.Query().Get("since"), 0)
		limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
		if since < 0 {
			since = 0
		}
		if limit <= 0 || limit > maxEventPage {
			limit = maxEventPage
		}
		events, err := repo.Since(r.Context(), ex, int64(since), limit)
		if err != nil {
			log.Error().Err(err).Msg("list events")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []syncx.Event{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func parseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
