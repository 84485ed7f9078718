package quiz

import (
	"context"
	"time"
)

// The interfaces below are the only way the headless core reaches the
// quiz engine, question bank, gradebook and identity store. Lookups return
// ErrNotFound when the row does not exist.

type CourseModules interface {
	GetCourseModule(ctx context.Context, cmid int64) (CourseModule, error)
}

type Quizzes interface {
	GetQuiz(ctx context.Context, quizID int64) (Quiz, error)
	// LoadQuestions returns the quiz's questions in slot order.
	LoadQuestions(ctx context.Context, quizID int64) ([]Question, error)
}

type QuestionBank interface {
	CategoryQuestions(ctx context.Context, categoryID int64, includeSubcategories bool) ([]Question, error)
}

type Directory interface {
	GetUser(ctx context.Context, userID int64) (User, error)
	IsEnrolled(ctx context.Context, userID, courseID int64) (bool, error)
}

type AttemptEngine interface {
	// ListAttempts returns every attempt of the user at the quiz, ordered by attempt number.
	ListAttempts(ctx context.Context, quizID, userID int64) ([]Attempt, error)
	StartNewAttempt(ctx context.Context, p StartParams) (Attempt, error)
	StartAttemptBuiltOnLast(ctx context.Context, p StartParams) (Attempt, error)
	FinishAttempt(ctx context.Context, attemptID int64, at time.Time) (Attempt, error)
	AbandonAttempt(ctx context.Context, attemptID int64, at time.Time) (Attempt, error)
	Review(ctx context.Context, attemptID int64) (AttemptReview, error)
}

type Gradebook interface {
	// GradeItem returns nil when the quiz has no grade item.
	GradeItem(ctx context.Context, courseID, quizID int64) (*GradeItem, error)
}

type Renderer interface {
	RenderQuestion(ctx context.Context, s SlotReview, opts DisplayOptions) (string, error)
	RenderFeedback(ctx context.Context, s SlotReview, opts DisplayOptions) (string, error)
}
