package engine_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-headlessquiz/internal/db"
	"github.com/mind-engage/mindengage-headlessquiz/internal/engine"
)

// fixture ids
const (
	courseID = 7
	cmID     = 30
	quizID   = 3
	userID   = 5
	otherID  = 6
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	h, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func exec(t *testing.T, h *sql.DB, query string, args ...any) {
	t.Helper()
	_, err := h.Exec(query, args...)
	require.NoError(t, err, query)
}

// seed creates course 7 with quiz 3 behind course module 30:
//
//	slot 1  shortanswer 11 "capital of France"   max mark 1
//	slot 2  random over category 20 (+subcats)    max mark 1
//
// Category 20 holds truefalse 21, its child category 22 holds multichoice 23.
// User 5 is enrolled, user 6 exists but is not. The grade item passes at 50/100.
func seed(t *testing.T, h *sql.DB) {
	t.Helper()
	exec(t, h, `INSERT INTO users (id, username, password_hash, role) VALUES (5, 'student', '', 'student'), (6, 'other', '', 'student')`)
	exec(t, h, `INSERT INTO enrolments (user_id, course_id) VALUES (5, 7)`)
	exec(t, h, `INSERT INTO course_modules (id, course_id, modname, instance) VALUES (30, 7, 'quiz', 3), (31, 7, 'page', 1)`)
	exec(t, h, `INSERT INTO quizzes (id, course_id, name, grade) VALUES (3, 7, 'Geography', 100)`)
	exec(t, h, `INSERT INTO quiz_feedback (quiz_id, text, min_grade, max_grade) VALUES (3, 'Well done', 50, 101), (3, 'Keep trying', 0, 50)`)
	exec(t, h, `INSERT INTO question_categories (id, parent_id, name) VALUES (10, 0, 'Top'), (20, 10, 'Pool'), (22, 20, 'Sub pool')`)
	exec(t, h, `INSERT INTO questions (id, category_id, name, text, qtype, options_json, answers_json) VALUES
		(11, 10, 'Capital', '<p>What is the capital of France?</p>', 'shortanswer', '{"usecase":false}',
		 '[{"answer":"Paris","fraction":1},{"answer":"*","fraction":0,"feedback":"The capital of France is Paris."}]'),
		(21, 20, 'Sky', 'The sky is blue.', 'truefalse', '{}',
		 '[{"answer":"true","fraction":1},{"answer":"false","fraction":0}]'),
		(23, 22, 'Primes', 'Which are prime?', 'multichoice',
		 '{"single":false,"choices":[{"id":"a","text":"2"},{"id":"b","text":"3"},{"id":"c","text":"4"}]}',
		 '[{"answer":"a","fraction":0.5},{"answer":"b","fraction":0.5},{"answer":"c","fraction":-1}]')`)
	exec(t, h, `INSERT INTO questions (id, category_id, name, qtype, random_category_id, random_include_sub)
		VALUES (12, 10, 'Random (Pool)', 'random', 20, 1)`)
	exec(t, h, `INSERT INTO quiz_slots (quiz_id, slot, page, question_id, max_mark) VALUES (3, 1, 1, 11, 1), (3, 2, 1, 12, 1)`)
	exec(t, h, `INSERT INTO grade_items (course_id, quiz_id, grade_max, grade_pass) VALUES (7, 3, 100, 50)`)
}

func newStore(t *testing.T, opts ...engine.Option) (*engine.Store, *sql.DB) {
	t.Helper()
	h := openDB(t)
	seed(t, h)
	first := func(int) int { return 0 }
	return engine.New(h, append([]engine.Option{engine.WithPicker(first)}, opts...)...), h
}

func at(unix int64) time.Time { return time.Unix(unix, 0) }
