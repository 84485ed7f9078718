package engine_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-headlessquiz/internal/engine"
	"github.com/mind-engage/mindengage-headlessquiz/internal/quiz"
	syncx "github.com/mind-engage/mindengage-headlessquiz/internal/sync"
)

func start(t *testing.T, s *engine.Store, number int) quiz.Attempt {
	t.Helper()
	ctx := context.Background()
	q, err := s.GetQuiz(ctx, quizID)
	require.NoError(t, err)
	a, err := s.StartNewAttempt(ctx, quiz.StartParams{Quiz: q, UserID: userID, Number: number, At: at(1000)})
	require.NoError(t, err)
	return a
}

func TestStartNewAttempt(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	a := start(t, s, 1)
	assert.NotZero(t, a.ID)
	assert.Equal(t, quiz.StateInProgress, a.State)
	assert.Equal(t, int64(1000), a.TimeStart)

	list, err := s.ListAttempts(ctx, quizID, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a, list[0])

	review, err := s.Review(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, review.Slots, 2)
	assert.Equal(t, int64(11), review.Slots[0].Question.ID)
	second := review.Slots[1]
	assert.Equal(t, int64(21), second.Question.ID, "random slot shows a concrete question")
	assert.Equal(t, quiz.TypeTrueFalse, second.Question.Type)
	assert.Equal(t, 2, second.Slot)
	assert.Equal(t, quiz.QTodo, second.State)
	assert.True(t, second.Real)
	assert.Nil(t, second.Fraction)
	assert.Nil(t, second.Response)
	assert.Zero(t, second.SequenceCheck)
}

func TestStartNewAttemptAvoidsRepeats(t *testing.T) {
	s, h := newStore(t)
	// a second random slot over the same pool must not show question 21 twice
	exec(t, h, `INSERT INTO quiz_slots (quiz_id, slot, page, question_id, max_mark) VALUES (3, 3, 1, 12, 1)`)
	a := start(t, s, 1)

	review, err := s.Review(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, review.Slots, 3)
	assert.Equal(t, int64(21), review.Slots[1].Question.ID)
	assert.Equal(t, int64(23), review.Slots[2].Question.ID)
}

func TestStartNewAttemptDuplicateNumber(t *testing.T) {
	s, _ := newStore(t)
	start(t, s, 1)

	q, err := s.GetQuiz(context.Background(), quizID)
	require.NoError(t, err)
	_, err = s.StartNewAttempt(context.Background(), quiz.StartParams{Quiz: q, UserID: userID, Number: 1, At: at(1001)})
	require.Error(t, err, "a racing second attempt with the same number is rejected")

	list, err := s.ListAttempts(context.Background(), quizID, userID)
	require.NoError(t, err)
	assert.Len(t, list, 1, "the failed attempt left nothing behind")
}

func TestSubmitResponses(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	a := start(t, s, 1)

	_, err := s.SubmitResponses(ctx, a.ID, []engine.Submission{
		{Slot: 1, Response: map[string]string{"answer": "Paris"}, SequenceCheck: 0},
	}, at(1010))
	require.NoError(t, err)

	review, err := s.Review(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"answer": "Paris"}, review.Slots[0].Response)
	assert.Equal(t, quiz.QComplete, review.Slots[0].State)
	assert.Equal(t, 1, review.Slots[0].SequenceCheck)
	assert.Equal(t, int64(1010), review.Attempt.TimeModified)

	_, err = s.SubmitResponses(ctx, a.ID, []engine.Submission{
		{Slot: 1, Response: map[string]string{"answer": "Lyon"}, SequenceCheck: 0},
	}, at(1020))
	assert.True(t, errors.Is(err, engine.ErrStaleSequence))

	_, err = s.SubmitResponses(ctx, a.ID, []engine.Submission{{Slot: 9, SequenceCheck: 0}}, at(1020))
	assert.True(t, errors.Is(err, engine.ErrUnknownSlot))

	_, err = s.SubmitResponses(ctx, 404, nil, at(1020))
	assert.True(t, errors.Is(err, quiz.ErrNotFound))
}

func TestFinishAttemptGrades(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	a := start(t, s, 1)

	_, err := s.SubmitResponses(ctx, a.ID, []engine.Submission{
		{Slot: 1, Response: map[string]string{"answer": "paris"}},
		{Slot: 2, Response: map[string]string{"answer": "1"}},
	}, at(1010))
	require.NoError(t, err)

	done, err := s.FinishAttempt(ctx, a.ID, at(1100))
	require.NoError(t, err)
	assert.Equal(t, quiz.StateFinished, done.State)
	assert.Equal(t, int64(1100), done.TimeFinish)
	require.NotNil(t, done.SumGrades)
	assert.Equal(t, 2.0, *done.SumGrades)

	review, err := s.Review(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, done, review.Attempt)
	for _, sl := range review.Slots {
		assert.Equal(t, quiz.QGradedRight, sl.State)
		require.NotNil(t, sl.Mark())
		assert.Equal(t, 1.0, *sl.Mark())
	}

	_, err = s.FinishAttempt(ctx, a.ID, at(1200))
	assert.True(t, errors.Is(err, engine.ErrAttemptClosed))
	_, err = s.SubmitResponses(ctx, a.ID, []engine.Submission{{Slot: 1, SequenceCheck: 1}}, at(1200))
	assert.True(t, errors.Is(err, engine.ErrAttemptClosed))
}

func TestFinishAttemptWrongAndUnanswered(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	a := start(t, s, 1)

	_, err := s.SubmitResponses(ctx, a.ID, []engine.Submission{
		{Slot: 1, Response: map[string]string{"answer": "test"}},
	}, at(1010))
	require.NoError(t, err)
	done, err := s.FinishAttempt(ctx, a.ID, at(1100))
	require.NoError(t, err)
	require.NotNil(t, done.SumGrades)
	assert.Zero(t, *done.SumGrades)

	review, err := s.Review(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.QGradedWrong, review.Slots[0].State)
	require.NotNil(t, review.Slots[0].Fraction)
	assert.Zero(t, *review.Slots[0].Fraction)
	assert.Equal(t, quiz.QGaveUp, review.Slots[1].State)
	assert.Nil(t, review.Slots[1].Fraction)
}

func TestAbandonAttempt(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	a := start(t, s, 1)

	closed, err := s.AbandonAttempt(ctx, a.ID, at(1050))
	require.NoError(t, err)
	assert.Equal(t, quiz.StateAbandoned, closed.State)
	assert.Equal(t, int64(1050), closed.TimeModified)
	assert.Nil(t, closed.SumGrades)

	got, err := s.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, closed, got)

	_, err = s.AbandonAttempt(ctx, a.ID, at(1060))
	assert.True(t, errors.Is(err, engine.ErrAttemptClosed))
}

func TestStartAttemptBuiltOnLast(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	first := start(t, s, 1)
	_, err := s.SubmitResponses(ctx, first.ID, []engine.Submission{
		{Slot: 2, Response: map[string]string{"answer": "0"}},
	}, at(1010))
	require.NoError(t, err)
	prev, err := s.FinishAttempt(ctx, first.ID, at(1100))
	require.NoError(t, err)

	q, err := s.GetQuiz(ctx, quizID)
	require.NoError(t, err)
	next, err := s.StartAttemptBuiltOnLast(ctx, quiz.StartParams{Quiz: q, UserID: userID, Number: 2, Previous: &prev, At: at(1200)})
	require.NoError(t, err)
	assert.Equal(t, 2, next.Number)

	review, err := s.Review(ctx, next.ID)
	require.NoError(t, err)
	require.Len(t, review.Slots, 2)
	assert.Equal(t, quiz.QTodo, review.Slots[0].State)
	assert.Nil(t, review.Slots[0].Response)
	assert.Equal(t, int64(21), review.Slots[1].Question.ID, "same random pick as the previous attempt")
	assert.Equal(t, quiz.QComplete, review.Slots[1].State)
	assert.Equal(t, map[string]string{"answer": "0"}, review.Slots[1].Response)
	assert.Nil(t, review.Slots[1].Fraction, "grades are not carried over")

	_, err = s.StartAttemptBuiltOnLast(ctx, quiz.StartParams{Quiz: q, UserID: userID, Number: 3, At: at(1300)})
	assert.Error(t, err)
}

func TestAttemptEventsAreLogged(t *testing.T) {
	ctx := context.Background()
	s, h := newStore(t)
	a := start(t, s, 1)
	_, err := s.SubmitResponses(ctx, a.ID, []engine.Submission{
		{Slot: 1, Response: map[string]string{"answer": "Paris"}},
	}, at(1010))
	require.NoError(t, err)
	_, err = s.FinishAttempt(ctx, a.ID, at(1100))
	require.NoError(t, err)

	events, err := syncx.NewEventRepo("").Since(ctx, h, 0, 10)
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
		assert.Equal(t, "local", e.SiteID)
	}
	assert.Equal(t, []string{syncx.AttemptStarted, syncx.ResponsesSaved, syncx.AttemptFinished}, types)
	assert.Contains(t, string(events[2].DataJSON), `"sum_grades":1`)
}
