package quiz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-headlessquiz/internal/quiz"
)

func validationCode(t *testing.T, err error) quiz.Code {
	t.Helper()
	require.Error(t, err)
	ve, ok := quiz.AsValidation(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	return ve.Code
}

func TestValidateQuiz(t *testing.T) {
	ctx := context.Background()

	t.Run("missing course module", func(t *testing.T) {
		w := newWorld()
		v := quiz.NewValidator(w, w, quiz.NewResolver(w))
		_, _, err := v.ValidateQuiz(ctx, nil)
		assert.Equal(t, quiz.CodeMissingQuiz, validationCode(t, err))
	})

	t.Run("module is not a quiz", func(t *testing.T) {
		w := newWorld()
		v := quiz.NewValidator(w, w, quiz.NewResolver(w))
		_, _, err := v.ValidateQuiz(ctx, &quiz.CourseModule{ID: 1, ModName: "forum", Instance: 3})
		assert.Equal(t, quiz.CodeNotAQuiz, validationCode(t, err))
	})

	t.Run("quiz row missing", func(t *testing.T) {
		w := newWorld()
		v := quiz.NewValidator(w, w, quiz.NewResolver(w))
		_, _, err := v.ValidateQuiz(ctx, &quiz.CourseModule{ID: 1, ModName: quiz.ModQuiz, Instance: 404})
		assert.Equal(t, quiz.CodeMissingQuiz, validationCode(t, err))
	})

	tests := []struct {
		name      string
		questions []quiz.Question
		want      quiz.Code
	}{
		{
			name: "second page",
			questions: []quiz.Question{
				{ID: 1, Type: quiz.TypeShortAnswer, Text: "a", Slot: 1, Page: 1},
				{ID: 2, Type: quiz.TypeShortAnswer, Text: "b", Slot: 2, Page: 2},
			},
			want: quiz.CodeNotSinglePage,
		},
		{
			name: "page checked before type",
			questions: []quiz.Question{
				{ID: 1, Type: "essay", Text: "a", Slot: 1, Page: 1},
				{ID: 2, Type: quiz.TypeShortAnswer, Text: "b", Slot: 2, Page: 3},
			},
			want: quiz.CodeNotSinglePage,
		},
		{
			name:      "unsupported type",
			questions: []quiz.Question{{ID: 1, Type: "essay", Text: "a", Slot: 1, Page: 1}},
			want:      quiz.CodeInvalidQuestionType,
		},
		{
			name: "type checked before content",
			questions: []quiz.Question{
				{ID: 1, Type: quiz.TypeShortAnswer, Text: "", Slot: 1, Page: 1},
				{ID: 2, Type: "match", Text: "b", Slot: 2, Page: 1},
			},
			want: quiz.CodeInvalidQuestionType,
		},
		{
			name:      "random over empty category",
			questions: []quiz.Question{random(1, 77)},
			want:      quiz.CodeInvalidQuestionType,
		},
		{
			name:      "embedded image",
			questions: []quiz.Question{{ID: 1, Type: quiz.TypeTrueFalse, Text: `<img src="a.png">`, Slot: 1, Page: 1}},
			want:      quiz.CodeInvalidQuestionContent,
		},
		{
			name:      "attached file",
			questions: []quiz.Question{{ID: 1, Type: quiz.TypeTrueFalse, Text: "@@PLUGINFILE@@/a.mp3", Slot: 1, Page: 1}},
			want:      quiz.CodeInvalidQuestionContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld()
			seedQuiz(w)
			w.questions[3] = tt.questions
			v := quiz.NewValidator(w, w, quiz.NewResolver(w))
			_, _, err := v.ValidateQuiz(ctx, &quiz.CourseModule{ID: 30, CourseID: 7, ModName: quiz.ModQuiz, Instance: 3})
			assert.Equal(t, tt.want, validationCode(t, err))
		})
	}

	t.Run("valid quiz returns quiz and questions", func(t *testing.T) {
		w := newWorld()
		seedQuiz(w)
		w.categories[8] = []quiz.Question{direct(40, quiz.TypeMultiChoice, "pick one")}
		rq := random(41, 8)
		rq.Slot = 2
		w.questions[3] = append(w.questions[3], rq)
		v := quiz.NewValidator(w, w, quiz.NewResolver(w))

		q, questions, err := v.ValidateQuiz(ctx, &quiz.CourseModule{ID: 30, CourseID: 7, ModName: quiz.ModQuiz, Instance: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(3), q.ID)
		assert.Equal(t, int64(30), q.CourseModuleID)
		assert.Len(t, questions, 2)
	})
}

func TestValidateUser(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	seedQuiz(w)
	w.users[6] = quiz.User{ID: 6}
	v := quiz.NewValidator(w, w, quiz.NewResolver(w))

	assert.Equal(t, quiz.CodeMissingUser, validationCode(t, v.ValidateUser(ctx, nil, 7)))

	u6 := w.users[6]
	assert.Equal(t, quiz.CodeUserNotEnrolled, validationCode(t, v.ValidateUser(ctx, &u6, 7)))

	u5 := w.users[5]
	assert.NoError(t, v.ValidateUser(ctx, &u5, 7))
	assert.Equal(t, quiz.CodeUserNotEnrolled, validationCode(t, v.ValidateUser(ctx, &u5, 8)))
}
