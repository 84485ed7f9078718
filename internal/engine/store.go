// Package engine is the SQL-backed quiz engine, question bank, gradebook and
// user directory that the headless API is composed over.
package engine

import (
	"database/sql"
	"encoding/json"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-headlessquiz/internal/grading"
	"github.com/mind-engage/mindengage-headlessquiz/internal/quiz"
	syncx "github.com/mind-engage/mindengage-headlessquiz/internal/sync"
)

var (
	// ErrAttemptClosed is returned when changing an attempt that is no longer in progress.
	ErrAttemptClosed = errors.New("attempt is not in progress")
	// ErrStaleSequence is returned when a submission was made against an outdated view of a slot.
	ErrStaleSequence = errors.New("sequence check does not match")
	ErrUnknownSlot   = errors.New("no such slot in attempt")
)

var (
	_ quiz.CourseModules = (*Store)(nil)
	_ quiz.Quizzes       = (*Store)(nil)
	_ quiz.QuestionBank  = (*Store)(nil)
	_ quiz.Directory     = (*Store)(nil)
	_ quiz.AttemptEngine = (*Store)(nil)
	_ quiz.Gradebook     = (*Store)(nil)
)

type Store struct {
	db     *sql.DB
	grader grading.Grader
	events *syncx.EventRepo
	pick   func(n int) int // index of the candidate a random slot shows
}

type Option func(*Store)

func WithGrader(g grading.Grader) Option     { return func(s *Store) { s.grader = g } }
func WithEvents(r *syncx.EventRepo) Option   { return func(s *Store) { s.events = r } }
func WithPicker(pick func(n int) int) Option { return func(s *Store) { s.pick = pick } }

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		grader: grading.NewDefaultGrader(),
		events: syncx.NewEventRepo(""),
		pick:   rand.Intn,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Deps wires the store and renderer into the headless API.
func (s *Store) Deps(r quiz.Renderer) quiz.Deps {
	return quiz.Deps{
		Modules:   s,
		Quizzes:   s,
		Questions: s,
		Users:     s,
		Attempts:  s,
		Grades:    s,
		Renderer:  r,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const questionCols = `q.id, q.name, q.text, q.qtype, q.options_json, q.random_category_id, q.random_include_sub`

type questionRow struct {
	q          quiz.Question
	options    string
	randomCat  sql.NullInt64
	includeSub int
}

func (r *questionRow) dest() []any {
	return []any{&r.q.ID, &r.q.Name, &r.q.Text, &r.q.Type, &r.options, &r.randomCat, &r.includeSub}
}

func (r *questionRow) question() quiz.Question {
	q := r.q
	if r.options != "" {
		q.Options = json.RawMessage(r.options)
	}
	if q.IsRandom() && r.randomCat.Valid {
		q.Random = &quiz.RandomFilter{CategoryID: r.randomCat.Int64, IncludeSubcategories: r.includeSub != 0}
	}
	return q
}

// questionOptions are the grading relevant keys of options_json.
type questionOptions struct {
	UseCase bool `json:"usecase"`
	Single  bool `json:"single"`
}

func gradingQuestion(q quiz.Question, answersJSON string) (grading.Q, error) {
	g := grading.Q{Type: q.Type}
	if len(q.Options) > 0 {
		var o questionOptions
		if err := json.Unmarshal(q.Options, &o); err != nil {
			return g, errors.Wrapf(err, "options of question %d", q.ID)
		}
		g.UseCase, g.Single = o.UseCase, o.Single
	}
	if answersJSON != "" {
		if err := json.Unmarshal([]byte(answersJSON), &g.Answers); err != nil {
			return g, errors.Wrapf(err, "answers of question %d", q.ID)
		}
	}
	return g, nil
}
