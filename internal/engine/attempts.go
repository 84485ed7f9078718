package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mind-engage/mindengage-headlessquiz/internal/db"
	"github.com/mind-engage/mindengage-headlessquiz/internal/grading"
	"github.com/mind-engage/mindengage-headlessquiz/internal/quiz"
	syncx "github.com/mind-engage/mindengage-headlessquiz/internal/sync"
)

// All reads happen before db.WithTx is entered: with SQLite the pool holds
// one connection and the transaction owns it.

const attemptCols = `id, quiz_id, user_id, attempt, state, time_start, time_finish, time_modified, sum_grades`

func scanAttempt(r rowScanner) (quiz.Attempt, error) {
	var (
		a     quiz.Attempt
		state string
		sum   sql.NullFloat64
	)
	err := r.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Number, &state, &a.TimeStart, &a.TimeFinish, &a.TimeModified, &sum)
	a.State = quiz.AttemptState(state)
	if sum.Valid {
		v := sum.Float64
		a.SumGrades = &v
	}
	return a, err
}

func (s *Store) ListAttempts(ctx context.Context, quizID, userID int64) ([]quiz.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptCols+` FROM quiz_attempts WHERE quiz_id=$1 AND user_id=$2 ORDER BY attempt`,
		quizID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list attempts")
	}
	defer rows.Close()
	var out []quiz.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan attempt")
		}
		out = append(out, a)
	}
	return out, errors.Wrap(rows.Err(), "read attempts")
}

func (s *Store) GetAttempt(ctx context.Context, id int64) (quiz.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM quiz_attempts WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return a, errors.Wrapf(quiz.ErrNotFound, "attempt %d", id)
	}
	return a, errors.Wrapf(err, "get attempt %d", id)
}

func (s *Store) inProgress(ctx context.Context, id int64) (quiz.Attempt, error) {
	a, err := s.GetAttempt(ctx, id)
	if err != nil {
		return a, err
	}
	if a.State != quiz.StateInProgress {
		return a, errors.Wrapf(ErrAttemptClosed, "attempt %d is %s", id, a.State)
	}
	return a, nil
}

// plannedSlot is one question_attempts row to be created with an attempt.
type plannedSlot struct {
	slot       int
	questionID int64
	maxMark    float64
	response   map[string]string
}

// StartNewAttempt creates the attempt with one question per slot. Random
// slots get a question drawn from their category, avoiding questions
// already shown in other slots while the pool allows it.
func (s *Store) StartNewAttempt(ctx context.Context, p quiz.StartParams) (quiz.Attempt, error) {
	slots, err := s.loadSlots(ctx, p.Quiz.ID)
	if err != nil {
		return quiz.Attempt{}, err
	}
	used := make(map[int64]bool, len(slots))
	for _, sl := range slots {
		if !sl.question.IsRandom() {
			used[sl.question.ID] = true
		}
	}

	resolver := quiz.NewResolver(s)
	plans := make([]plannedSlot, 0, len(slots))
	for _, sl := range slots {
		plan := plannedSlot{slot: sl.question.Slot, questionID: sl.question.ID, maxMark: sl.maxMark}
		if sl.question.IsRandom() {
			candidates, err := resolver.ResolveRandom(ctx, sl.question)
			if err != nil {
				return quiz.Attempt{}, errors.Wrapf(err, "slot %d", sl.question.Slot)
			}
			fresh := make([]quiz.Question, 0, len(candidates))
			for _, c := range candidates {
				if !used[c.ID] {
					fresh = append(fresh, c)
				}
			}
			if len(fresh) == 0 {
				fresh = candidates
			}
			chosen := fresh[s.pick(len(fresh))]
			used[chosen.ID] = true
			plan.questionID = chosen.ID
		}
		plans = append(plans, plan)
	}
	return s.insertAttempt(ctx, p, plans)
}

// StartAttemptBuiltOnLast repeats the previous attempt's questions, random
// picks included, and carries its last responses forward.
func (s *Store) StartAttemptBuiltOnLast(ctx context.Context, p quiz.StartParams) (quiz.Attempt, error) {
	if p.Previous == nil {
		return quiz.Attempt{}, errors.New("build on last: no previous attempt")
	}
	prev, err := s.attemptSlots(ctx, p.Previous.ID)
	if err != nil {
		return quiz.Attempt{}, err
	}
	plans := make([]plannedSlot, 0, len(prev))
	for _, sl := range prev {
		plans = append(plans, plannedSlot{
			slot:       sl.review.Slot,
			questionID: sl.review.Question.ID,
			maxMark:    sl.review.MaxMark,
			response:   sl.review.Response,
		})
	}
	return s.insertAttempt(ctx, p, plans)
}

func (s *Store) insertAttempt(ctx context.Context, p quiz.StartParams, plans []plannedSlot) (quiz.Attempt, error) {
	at := p.At.Unix()
	a := quiz.Attempt{
		QuizID:       p.Quiz.ID,
		UserID:       p.UserID,
		Number:       p.Number,
		State:        quiz.StateInProgress,
		TimeStart:    at,
		TimeModified: at,
	}
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO quiz_attempts (quiz_id, user_id, attempt, state, time_start, time_modified)
			 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			a.QuizID, a.UserID, a.Number, string(a.State), at, at).Scan(&a.ID)
		if err != nil {
			return errors.Wrapf(err, "insert attempt %d", a.Number)
		}
		for _, pl := range plans {
			state := quiz.QTodo
			if hasAnswer(pl.response) {
				state = quiz.QComplete
			}
			resp, err := encodeResponse(pl.response)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO question_attempts (attempt_id, slot, question_id, max_mark, state, response_json)
				 VALUES ($1,$2,$3,$4,$5,$6)`,
				a.ID, pl.slot, pl.questionID, pl.maxMark, string(state), resp); err != nil {
				return errors.Wrapf(err, "insert slot %d", pl.slot)
			}
		}
		return s.events.Append(ctx, tx, syncx.AttemptStarted, attemptKey(a.ID), map[string]any{
			"attempt_id":    a.ID,
			"quiz_id":       a.QuizID,
			"user_id":       a.UserID,
			"number":        a.Number,
			"built_on_last": p.Previous != nil,
		})
	})
	if err != nil {
		return quiz.Attempt{}, err
	}
	return a, nil
}

func (s *Store) AbandonAttempt(ctx context.Context, attemptID int64, at time.Time) (quiz.Attempt, error) {
	a, err := s.inProgress(ctx, attemptID)
	if err != nil {
		return a, err
	}
	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if err := closeAttempt(ctx, tx, attemptID, quiz.StateAbandoned, at, nil); err != nil {
			return err
		}
		return s.events.Append(ctx, tx, syncx.AttemptAbandoned, attemptKey(attemptID),
			map[string]any{"attempt_id": attemptID})
	})
	if err != nil {
		return quiz.Attempt{}, err
	}
	a.State, a.TimeModified = quiz.StateAbandoned, at.Unix()
	return a, nil
}

type gradedSlot struct {
	slot     int
	state    quiz.QuestionState
	fraction *float64
	feedback string
}

// FinishAttempt grades every slot and closes the attempt. Unanswered slots
// end as gaveup. The attempt's sum of marks stays null while any slot
// needs manual grading.
func (s *Store) FinishAttempt(ctx context.Context, attemptID int64, at time.Time) (quiz.Attempt, error) {
	a, err := s.inProgress(ctx, attemptID)
	if err != nil {
		return a, err
	}
	slots, err := s.attemptSlots(ctx, attemptID)
	if err != nil {
		return a, err
	}

	graded := make([]gradedSlot, 0, len(slots))
	sum, manual := 0.0, false
	for _, sl := range slots {
		g, err := s.gradeSlot(ctx, sl)
		if err != nil {
			return a, err
		}
		if g.state == quiz.QNeedsGrading {
			manual = true
		}
		if g.fraction != nil {
			sum += *g.fraction * sl.review.MaxMark
		}
		graded = append(graded, g)
	}
	var sumGrades *float64
	if !manual {
		sumGrades = &sum
	}

	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		for _, g := range graded {
			if _, err := tx.ExecContext(ctx,
				`UPDATE question_attempts SET state=$1, fraction=$2, feedback=$3 WHERE attempt_id=$4 AND slot=$5`,
				string(g.state), nullFloat(g.fraction), g.feedback, attemptID, g.slot); err != nil {
				return errors.Wrapf(err, "save grade of slot %d", g.slot)
			}
		}
		if err := closeAttempt(ctx, tx, attemptID, quiz.StateFinished, at, sumGrades); err != nil {
			return err
		}
		return s.events.Append(ctx, tx, syncx.AttemptFinished, attemptKey(attemptID),
			map[string]any{"attempt_id": attemptID, "sum_grades": sumGrades})
	})
	if err != nil {
		return quiz.Attempt{}, err
	}

	log.Debug().Int64("attempt_id", attemptID).Bool("manual", manual).Float64("sum", sum).Msg("attempt graded")
	a.State = quiz.StateFinished
	a.TimeFinish, a.TimeModified = at.Unix(), at.Unix()
	a.SumGrades = sumGrades
	return a, nil
}

func (s *Store) gradeSlot(ctx context.Context, sl attemptSlot) (gradedSlot, error) {
	g := gradedSlot{slot: sl.review.Slot}
	if !sl.review.Real {
		g.state = quiz.QFinished
		return g, nil
	}
	if !hasAnswer(sl.review.Response) {
		g.state = quiz.QGaveUp
		return g, nil
	}
	gq, err := gradingQuestion(sl.review.Question, sl.answers)
	if err != nil {
		return g, err
	}
	res, err := s.grader.Grade(ctx, gq, sl.review.Response)
	switch {
	case errors.Is(err, grading.ErrInvalidResponse):
		g.state = quiz.QGaveUp
		return g, nil
	case err != nil:
		return g, errors.Wrapf(err, "grade slot %d", sl.review.Slot)
	case res.NeedsManual:
		g.state = quiz.QNeedsGrading
		return g, nil
	}
	f := res.Fraction
	g.state, g.fraction = quiz.StateForFraction(f), &f
	g.feedback = strings.Join(res.Feedback, " ")
	return g, nil
}

// Submission is a client's answer to one slot. SequenceCheck must equal the
// slot's current sequence check as last returned to the client.
type Submission struct {
	Slot          int
	Response      map[string]string
	SequenceCheck int
}

// SubmitResponses saves answers to an in-progress attempt. Each saved slot's
// sequence check advances by one.
func (s *Store) SubmitResponses(ctx context.Context, attemptID int64, subs []Submission, at time.Time) (quiz.Attempt, error) {
	a, err := s.inProgress(ctx, attemptID)
	if err != nil {
		return a, err
	}
	slots, err := s.attemptSlots(ctx, attemptID)
	if err != nil {
		return a, err
	}
	current := make(map[int]int, len(slots))
	for _, sl := range slots {
		current[sl.review.Slot] = sl.review.SequenceCheck
	}
	for _, sub := range subs {
		seq, ok := current[sub.Slot]
		if !ok {
			return a, errors.Wrapf(ErrUnknownSlot, "slot %d", sub.Slot)
		}
		if seq != sub.SequenceCheck {
			return a, errors.Wrapf(ErrStaleSequence, "slot %d is at %d, got %d", sub.Slot, seq, sub.SequenceCheck)
		}
	}

	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		for _, sub := range subs {
			state := quiz.QTodo
			if hasAnswer(sub.Response) {
				state = quiz.QComplete
			}
			resp, err := encodeResponse(sub.Response)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx,
				`UPDATE question_attempts SET response_json=$1, state=$2, sequence_check=sequence_check+1
				 WHERE attempt_id=$3 AND slot=$4 AND sequence_check=$5`,
				resp, string(state), attemptID, sub.Slot, sub.SequenceCheck)
			if err != nil {
				return errors.Wrapf(err, "save slot %d", sub.Slot)
			}
			if n, _ := res.RowsAffected(); n != 1 {
				return errors.Wrapf(ErrStaleSequence, "slot %d", sub.Slot)
			}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE quiz_attempts SET time_modified=$1 WHERE id=$2 AND state=$3`,
			at.Unix(), attemptID, string(quiz.StateInProgress))
		if err != nil {
			return errors.Wrap(err, "touch attempt")
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return errors.Wrapf(ErrAttemptClosed, "attempt %d", attemptID)
		}
		return s.events.Append(ctx, tx, syncx.ResponsesSaved, attemptKey(attemptID),
			map[string]any{"attempt_id": attemptID, "slots": len(subs)})
	})
	if err != nil {
		return quiz.Attempt{}, err
	}
	a.TimeModified = at.Unix()
	return a, nil
}

func (s *Store) Review(ctx context.Context, attemptID int64) (quiz.AttemptReview, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return quiz.AttemptReview{}, err
	}
	slots, err := s.attemptSlots(ctx, attemptID)
	if err != nil {
		return quiz.AttemptReview{}, err
	}
	out := quiz.AttemptReview{Attempt: a, Slots: make([]quiz.SlotReview, len(slots))}
	for i, sl := range slots {
		out.Slots[i] = sl.review
	}
	return out, nil
}

type attemptSlot struct {
	review  quiz.SlotReview
	answers string // answers_json of the question, never shown to clients
}

func (s *Store) attemptSlots(ctx context.Context, attemptID int64) ([]attemptSlot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT qa.slot, qa.max_mark, qa.state, qa.fraction, qa.response_json, qa.sequence_check, qa.feedback,
		       q.answers_json, `+questionCols+`
		FROM question_attempts qa JOIN questions q ON q.id = qa.question_id
		WHERE qa.attempt_id=$1 ORDER BY qa.slot`, attemptID)
	if err != nil {
		return nil, errors.Wrapf(err, "slots of attempt %d", attemptID)
	}
	defer rows.Close()

	var out []attemptSlot
	for rows.Next() {
		var (
			sl       attemptSlot
			qr       questionRow
			state    string
			fraction sql.NullFloat64
			resp     string
		)
		dest := append([]any{&sl.review.Slot, &sl.review.MaxMark, &state, &fraction, &resp,
			&sl.review.SequenceCheck, &sl.review.Feedback, &sl.answers}, qr.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "scan question attempt")
		}
		sl.review.Question = qr.question()
		sl.review.Question.Slot = sl.review.Slot
		sl.review.Real = sl.review.Question.Type != quiz.TypeDescription
		sl.review.State = quiz.QuestionState(state)
		if fraction.Valid {
			f := fraction.Float64
			sl.review.Fraction = &f
		}
		if resp != "" {
			if err := json.Unmarshal([]byte(resp), &sl.review.Response); err != nil {
				return nil, errors.Wrapf(err, "decode response of slot %d", sl.review.Slot)
			}
		}
		out = append(out, sl)
	}
	return out, errors.Wrap(rows.Err(), "read question attempts")
}

func closeAttempt(ctx context.Context, tx *sql.Tx, id int64, state quiz.AttemptState, at time.Time, sum *float64) error {
	finish := int64(0)
	if state == quiz.StateFinished {
		finish = at.Unix()
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE quiz_attempts SET state=$1, time_finish=$2, time_modified=$3, sum_grades=$4
		 WHERE id=$5 AND state=$6`,
		string(state), finish, at.Unix(), nullFloat(sum), id, string(quiz.StateInProgress))
	if err != nil {
		return errors.Wrapf(err, "close attempt %d", id)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return errors.Wrapf(ErrAttemptClosed, "attempt %d", id)
	}
	return nil
}

func hasAnswer(resp map[string]string) bool {
	for _, v := range resp {
		if v != "" {
			return true
		}
	}
	return false
}

func encodeResponse(resp map[string]string) (string, error) {
	if len(resp) == 0 {
		return "", nil
	}
	buf, err := json.Marshal(resp)
	if err != nil {
		return "", errors.Wrap(err, "encode response")
	}
	return string(buf), nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func attemptKey(id int64) string { return strconv.FormatInt(id, 10) }
