package quiz

import (
	"encoding/json"
	"time"
)

// ModQuiz is the module name a course module must carry to be served.
const ModQuiz = "quiz"

// Question type names, as stored by the question bank.
const (
	TypeShortAnswer = "shortanswer"
	TypeTrueFalse   = "truefalse"
	TypeMultiChoice = "multichoice"
	TypeRandom      = "random"
	TypeDescription = "description"
)

// SupportedTypes is the allow-list of question types a headless quiz may contain.
var SupportedTypes = []string{TypeShortAnswer, TypeTrueFalse, TypeMultiChoice, TypeRandom}

type CourseModule struct {
	ID       int64
	CourseID int64
	ModName  string // "quiz", "page", "forum", ...
	Instance int64  // id of the activity row (quizzes.id for a quiz)
}

type GradeMethod string

const (
	GradeHighest GradeMethod = "highest"
	GradeAverage GradeMethod = "average"
	GradeFirst   GradeMethod = "first"
	GradeLast    GradeMethod = "last"
)

// FeedbackBand is overall feedback shown when Min <= grade < Max.
type FeedbackBand struct {
	Text string
	Min  float64
	Max  float64
}

type Quiz struct {
	ID             int64
	CourseModuleID int64
	CourseID       int64
	Name           string
	Grade          float64 // maximum grade on the quiz scale
	SumGrades      float64 // sum of slot max marks
	GradeMethod    GradeMethod
	AttemptOnLast  bool // build each new attempt on the last one
	Feedback       []FeedbackBand
}

// RandomFilter selects the candidate pool of a random question.
type RandomFilter struct {
	CategoryID           int64
	IncludeSubcategories bool
}

// Question is either direct content or, when Random is set, an indirection
// that resolves to one concrete question of a category at attempt time.
type Question struct {
	ID      int64
	Name    string
	Text    string
	Type    string
	Slot    int
	Page    int
	Options json.RawMessage
	Random  *RandomFilter
}

func (q Question) IsRandom() bool { return q.Type == TypeRandom }

type User struct {
	ID       int64
	Username string
}

type AttemptState string

const (
	StateInProgress AttemptState = "inprogress"
	StateFinished   AttemptState = "finished"
	StateAbandoned  AttemptState = "abandoned"
)

func (s AttemptState) Terminal() bool { return s == StateFinished || s == StateAbandoned }

type Attempt struct {
	ID           int64
	QuizID       int64
	UserID       int64
	Number       int
	State        AttemptState
	TimeStart    int64
	TimeFinish   int64
	TimeModified int64
	SumGrades    *float64 // nil until the attempt has been graded
}

// QuestionState is the marking state of one slot of an attempt.
type QuestionState string

const (
	QTodo          QuestionState = "todo"
	QInvalid       QuestionState = "invalid"
	QComplete      QuestionState = "complete"
	QNeedsGrading  QuestionState = "needsgrading"
	QFinished      QuestionState = "finished"
	QGaveUp        QuestionState = "gaveup"
	QGradedWrong   QuestionState = "gradedwrong"
	QGradedPartial QuestionState = "gradedpartial"
	QGradedRight   QuestionState = "gradedright"
)

func (s QuestionState) IsGraded() bool {
	switch s {
	case QGradedWrong, QGradedPartial, QGradedRight:
		return true
	}
	return false
}

func (s QuestionState) IsFinished() bool {
	switch s {
	case QTodo, QInvalid, QComplete:
		return false
	}
	return true
}

// Status is the human readable summary of the state shown next to a question.
func (s QuestionState) Status(showCorrectness bool) string {
	if s.IsGraded() && !showCorrectness {
		return "Complete"
	}
	switch s {
	case QTodo:
		return "Not yet answered"
	case QInvalid:
		return "Incomplete answer"
	case QComplete:
		return "Answer saved"
	case QNeedsGrading:
		return "Requires grading"
	case QFinished:
		return "Complete"
	case QGaveUp:
		return "Not answered"
	case QGradedWrong:
		return "Incorrect"
	case QGradedPartial:
		return "Partially correct"
	case QGradedRight:
		return "Correct"
	}
	return string(s)
}

// StateForFraction maps an automatic grade to the graded state it implies.
func StateForFraction(fraction float64) QuestionState {
	switch {
	case fraction >= 0.9999999:
		return QGradedRight
	case fraction <= 0.0000001:
		return QGradedWrong
	default:
		return QGradedPartial
	}
}

// SlotReview is the question engine's view of one slot of an attempt.
type SlotReview struct {
	Slot          int
	Question      Question // the concrete question presented in this slot
	Real          bool     // false for information items such as descriptions
	State         QuestionState
	Fraction      *float64
	MaxMark       float64
	Response      map[string]string // last submitted data, nil when nothing was submitted
	SequenceCheck int
	Feedback      string // grader's note on the answer given, set once graded
}

// Mark is the fraction scaled to the slot's max mark, nil while ungraded.
func (s SlotReview) Mark() *float64 {
	if s.Fraction == nil {
		return nil
	}
	m := *s.Fraction * s.MaxMark
	return &m
}

type AttemptReview struct {
	Attempt Attempt
	Slots   []SlotReview
}

// StartParams describe an attempt the engine is asked to create.
type StartParams struct {
	Quiz     Quiz
	UserID   int64
	Number   int
	Previous *Attempt // set when building on the last attempt
	At       time.Time
}

type GradeItem struct {
	GradeMax  float64
	GradePass float64
}

// DisplayOptions control what rendering reveals.
type DisplayOptions struct {
	Correctness bool
	Marks       bool
	Feedback    bool
}

// ReviewOptions is what a headless client is shown for its own attempt.
var ReviewOptions = DisplayOptions{Correctness: true, Marks: true, Feedback: true}
