package quiz

// Envelope is the single response shape of the headless API. Exactly one of
// Error and Data is set.
type Envelope struct {
	Error *ErrorBody `json:"error"`
	Data  *Data      `json:"data"`
}

type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Data struct {
	User    UserData    `json:"user"`
	Quiz    QuizData    `json:"quiz"`
	Attempt AttemptData `json:"attempt"`
}

type UserData struct {
	ID int64 `json:"id"`
}

type QuizData struct {
	ID          int64          `json:"id"`
	CMID        int64          `json:"cmid"`
	Name        string         `json:"name"`
	GradeToPass *float64       `json:"gradetopass"`
	BestGrade   *float64       `json:"bestgrade"`
	MaxGrade    *float64       `json:"maxgrade"`
	Questions   []QuestionData `json:"questions"`
}

type QuestionData struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	QuestionText string  `json:"questiontext"`
	Type         string  `json:"type"`
	Slot         int     `json:"slot"`
	Options      *string `json:"options"` // JSON encoded type-specific options
}

type AttemptData struct {
	ID           int64          `json:"id"`
	State        string         `json:"state"`
	Feedback     *string        `json:"feedback"`
	SumMarks     float64        `json:"summarks"`
	ScaledGrade  float64        `json:"scaledgrade"`
	Passed       *bool          `json:"passed"`
	TimeStart    int64          `json:"timestart"`
	TimeModified int64          `json:"timemodified"`
	Number       int            `json:"number"`
	Responses    []ResponseData `json:"responses"`
}

type ResponseData struct {
	QuestionID    int64    `json:"questionid"`
	State         *string  `json:"state"`
	Status        *string  `json:"status"`
	Mark          *float64 `json:"mark"`
	Data          *string  `json:"data"` // JSON encoded last submitted response
	Slot          int      `json:"slot"`
	SequenceCheck int      `json:"sequencecheck"`
	HTML          string   `json:"html"`
	Feedback      string   `json:"feedback"`
}

func validationEnvelope(msg string) Envelope {
	return Envelope{Error: &ErrorBody{Type: ErrorValidation, Message: msg}}
}

func unknownEnvelope(msg string) Envelope {
	return Envelope{Error: &ErrorBody{Type: ErrorUnknown, Message: msg}}
}
