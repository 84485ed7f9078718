package quiz

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrEmptyPool is returned when a random question's category holds no candidates.
	ErrEmptyPool = errors.New("random question has no candidate questions")
)

// Error types of the response envelope.
const (
	ErrorValidation = "validationerr"
	ErrorUnknown    = "unknownerr"
)

// Code names a validation rule. Each code maps to one message in the catalogue.
type Code string

const (
	CodeMissingQuiz            Code = "missing_quiz"
	CodeNotAQuiz               Code = "not_a_quiz"
	CodeNotSinglePage          Code = "not_single_page"
	CodeInvalidQuestionType    Code = "invalid_question_type"
	CodeInvalidQuestionContent Code = "invalid_question_content"
	CodeMissingUser            Code = "missing_user"
	CodeUserNotEnrolled        Code = "user_not_enrolled"
)

// ValidationError is an expected, caller-correctable rejection of a request.
type ValidationError struct {
	Code Code
}

func (e *ValidationError) Error() string { return fmt.Sprintf("validation failed: %s", e.Code) }

func invalid(c Code) error { return &ValidationError{Code: c} }

// AsValidation reports whether err is a validation failure and returns it.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
