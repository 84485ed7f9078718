package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	auth "github.com/mind-engage/mindengage-headlessquiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-headlessquiz/internal/engine"
	"github.com/mind-engage/mindengage-headlessquiz/internal/quiz"
	"github.com/mind-engage/mindengage-headlessquiz/internal/rbac"
)

type AttemptStore interface {
	GetCourseModule(ctx context.Context, cmid int64) (quiz.CourseModule, error)
	ListAttempts(ctx context.Context, quizID, userID int64) ([]quiz.Attempt, error)
	GetAttempt(ctx context.Context, id int64) (quiz.Attempt, error)
	Review(ctx context.Context, id int64) (quiz.AttemptReview, error)
	SubmitResponses(ctx context.Context, id int64, subs []engine.Submission, at time.Time) (quiz.Attempt, error)
	FinishAttempt(ctx context.Context, id int64, at time.Time) (quiz.Attempt, error)
}

type attemptJSON struct {
	ID           int64    `json:"id"`
	QuizID       int64    `json:"quizid"`
	UserID       int64    `json:"userid"`
	Number       int      `json:"number"`
	State        string   `json:"state"`
	TimeStart    int64    `json:"timestart"`
	TimeFinish   int64    `json:"timefinish"`
	TimeModified int64    `json:"timemodified"`
	SumGrades    *float64 `json:"sumgrades"`
}

func toAttemptJSON(a quiz.Attempt) attemptJSON {
	return attemptJSON{
		ID:           a.ID,
		QuizID:       a.QuizID,
		UserID:       a.UserID,
		Number:       a.Number,
		State:        string(a.State),
		TimeStart:    a.TimeStart,
		TimeFinish:   a.TimeFinish,
		TimeModified: a.TimeModified,
		SumGrades:    a.SumGrades,
	}
}

type slotJSON struct {
	Slot          int      `json:"slot"`
	QuestionID    int64    `json:"questionid"`
	State         string   `json:"state"`
	Mark          *float64 `json:"mark"`
	MaxMark       float64  `json:"maxmark"`
	SequenceCheck int      `json:"sequencecheck"`
}

// GET /api/attempts?cmid=...&user_id=...
// Without headlessquiz:view-any, user_id is forced to the caller.
func ListAttemptsHandler(store AttemptStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmid, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("cmid")), 10, 64)
		if err != nil || cmid <= 0 {
			http.Error(w, "cmid required", http.StatusBadRequest)
			return
		}
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if v := strings.TrimSpace(r.URL.Query().Get("user_id")); v != "" && canViewAny(r) {
			if userID, err = strconv.ParseInt(v, 10, 64); err != nil {
				http.Error(w, "bad user_id", http.StatusBadRequest)
				return
			}
		}

		cm, err := store.GetCourseModule(r.Context(), cmid)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if cm.ModName != "quiz" {
			http.Error(w, "not a quiz", http.StatusNotFound)
			return
		}
		list, err := store.ListAttempts(r.Context(), cm.Instance, userID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		out := make([]attemptJSON, 0, len(list))
		for _, a := range list {
			out = append(out, toAttemptJSON(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /api/attempts/{attemptID}
func GetAttemptHandler(store AttemptStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := ownedAttempt(w, r, store)
		if !ok {
			return
		}
		rv, err := store.Review(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		slots := make([]slotJSON, 0, len(rv.Slots))
		for _, s := range rv.Slots {
			slots = append(slots, slotJSON{
				Slot:          s.Slot,
				QuestionID:    s.Question.ID,
				State:         string(s.State),
				Mark:          s.Mark(),
				MaxMark:       s.MaxMark,
				SequenceCheck: s.SequenceCheck,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"attempt": toAttemptJSON(rv.Attempt),
			"slots":   slots,
		})
	}
}

type saveResponsesRequest struct {
	Responses []struct {
		Slot          int               `json:"slot" validate:"gt=0"`
		SequenceCheck int               `json:"sequencecheck" validate:"gte=0"`
		Response      map[string]string `json:"response"`
	} `json:"responses" validate:"required,min=1,dive"`
}

// POST /api/attempts/{attemptID}/responses
//
//	{"responses":[{"slot":1,"sequencecheck":0,"response":{"answer":"Paris"}}]}
func SaveResponsesHandler(store AttemptStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := ownedAttempt(w, r, store)
		if !ok {
			return
		}
		var req saveResponsesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, "responses need a slot and sequencecheck", http.StatusBadRequest)
			return
		}
		subs := make([]engine.Submission, 0, len(req.Responses))
		for _, s := range req.Responses {
			subs = append(subs, engine.Submission{Slot: s.Slot, Response: s.Response, SequenceCheck: s.SequenceCheck})
		}
		a, err := store.SubmitResponses(r.Context(), id, subs, time.Now())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAttemptJSON(a))
	}
}

// POST /api/attempts/{attemptID}/finish
func FinishAttemptHandler(store AttemptStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := ownedAttempt(w, r, store)
		if !ok {
			return
		}
		a, err := store.FinishAttempt(r.Context(), id, time.Now())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAttemptJSON(a))
	}
}

// ownedAttempt resolves {attemptID} and checks the caller may act on it.
// On false the response has already been written.
func ownedAttempt(w http.ResponseWriter, r *http.Request, store AttemptStore) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "attemptID"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "bad attempt id", http.StatusBadRequest)
		return 0, false
	}
	a, err := store.GetAttempt(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return 0, false
	}
	sub, _ := auth.UserIDFromContext(r.Context())
	if a.UserID != sub && !canViewAny(r) {
		// same answer as a missing attempt
		http.Error(w, "not found", http.StatusNotFound)
		return 0, false
	}
	return id, true
}

func canViewAny(r *http.Request) bool {
	return rbac.Can(rbac.RoleFromContext(r.Context()), rbac.PermViewAny)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, engine.ErrStaleSequence), errors.Is(err, engine.ErrAttemptClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrUnknownSlot):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error().Err(err).Msg("attempt request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
