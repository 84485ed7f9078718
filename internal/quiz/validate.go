package quiz

import (
	"context"

	"github.com/pkg/errors"
)

// Validator decides whether a course module can be served as a headless
// quiz and whether a user may take it. It never mutates anything.
type Validator struct {
	quizzes  Quizzes
	users    Directory
	resolver *Resolver
	content  *ContentValidator
}

func NewValidator(quizzes Quizzes, users Directory, resolver *Resolver) *Validator {
	return &Validator{
		quizzes:  quizzes,
		users:    users,
		resolver: resolver,
		content:  NewContentValidator(resolver),
	}
}

// ValidateQuiz checks, in order: existence, module type, single page,
// question types, question content. The first failure wins. On success the
// quiz and its questions are returned so callers do not load them twice.
func (v *Validator) ValidateQuiz(ctx context.Context, cm *CourseModule) (Quiz, []Question, error) {
	if cm == nil {
		return Quiz{}, nil, invalid(CodeMissingQuiz)
	}
	if cm.ModName != ModQuiz {
		return Quiz{}, nil, invalid(CodeNotAQuiz)
	}

	q, err := v.quizzes.GetQuiz(ctx, cm.Instance)
	if errors.Is(err, ErrNotFound) {
		return Quiz{}, nil, invalid(CodeMissingQuiz)
	}
	if err != nil {
		return Quiz{}, nil, errors.Wrapf(err, "load quiz %d", cm.Instance)
	}
	q.CourseModuleID = cm.ID
	if q.CourseID == 0 {
		q.CourseID = cm.CourseID
	}

	questions, err := v.quizzes.LoadQuestions(ctx, q.ID)
	if err != nil {
		return Quiz{}, nil, errors.Wrapf(err, "load questions of quiz %d", q.ID)
	}

	for _, qq := range questions {
		if qq.Page != 1 {
			return Quiz{}, nil, invalid(CodeNotSinglePage)
		}
	}
	for _, qq := range questions {
		ok, err := v.resolver.IsSupported(ctx, qq)
		if err != nil {
			return Quiz{}, nil, err
		}
		if !ok {
			return Quiz{}, nil, invalid(CodeInvalidQuestionType)
		}
	}
	for _, qq := range questions {
		bad, err := v.content.HasInvalidContent(ctx, qq)
		if err != nil {
			return Quiz{}, nil, err
		}
		if bad {
			return Quiz{}, nil, invalid(CodeInvalidQuestionContent)
		}
	}
	return q, questions, nil
}

// ValidateUser checks that the user exists, then that it is enrolled in the course.
func (v *Validator) ValidateUser(ctx context.Context, u *User, courseID int64) error {
	if u == nil {
		return invalid(CodeMissingUser)
	}
	ok, err := v.users.IsEnrolled(ctx, u.ID, courseID)
	if err != nil {
		return errors.Wrapf(err, "check enrolment of user %d", u.ID)
	}
	if !ok {
		return invalid(CodeUserNotEnrolled)
	}
	return nil
}
