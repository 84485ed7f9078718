package quiz_test

import (
	"context"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-headlessquiz/internal/quiz"
)

/* ---------------- In-memory fakes for the collaborator interfaces ---------------- */

type world struct {
	modules    map[int64]quiz.CourseModule
	quizzes    map[int64]quiz.Quiz
	questions  map[int64][]quiz.Question // quiz id -> slots
	categories map[int64][]quiz.Question
	users      map[int64]quiz.User
	enrolled   map[string]bool
	gradeItem  *quiz.GradeItem

	attempts []quiz.Attempt
	slots    map[int64][]quiz.SlotReview // attempt id -> slots
	nextID   int64

	newStarts, builtStarts, finishes, abandons int
	categoryLoads                              int

	startErr    error
	categoryErr error
	renderErr   error
}

func newWorld() *world {
	return &world{
		modules:    map[int64]quiz.CourseModule{},
		quizzes:    map[int64]quiz.Quiz{},
		questions:  map[int64][]quiz.Question{},
		categories: map[int64][]quiz.Question{},
		users:      map[int64]quiz.User{},
		enrolled:   map[string]bool{},
		slots:      map[int64][]quiz.SlotReview{},
		nextID:     100,
	}
}

func enrolKey(userID, courseID int64) string { return fmt.Sprintf("%d|%d", userID, courseID) }

// seedQuiz sets up course 7, quiz 3 behind course module 30, one enrolled user 5
// and a single short-answer question.
func seedQuiz(w *world) {
	w.modules[30] = quiz.CourseModule{ID: 30, CourseID: 7, ModName: quiz.ModQuiz, Instance: 3}
	w.quizzes[3] = quiz.Quiz{ID: 3, CourseID: 7, Name: "Headless quiz", Grade: 100, SumGrades: 1, GradeMethod: quiz.GradeHighest}
	w.questions[3] = []quiz.Question{
		{ID: 11, Name: "Q1", Text: "What is the capital of France?", Type: quiz.TypeShortAnswer, Slot: 1, Page: 1,
			Options: []byte(`{"usecase":false}`)},
	}
	w.users[5] = quiz.User{ID: 5, Username: "student"}
	w.enrolled[enrolKey(5, 7)] = true
	w.gradeItem = &quiz.GradeItem{GradeMax: 100, GradePass: 50}
}

func (w *world) GetCourseModule(_ context.Context, cmid int64) (quiz.CourseModule, error) {
	cm, ok := w.modules[cmid]
	if !ok {
		return quiz.CourseModule{}, quiz.ErrNotFound
	}
	return cm, nil
}

func (w *world) GetQuiz(_ context.Context, id int64) (quiz.Quiz, error) {
	q, ok := w.quizzes[id]
	if !ok {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	return q, nil
}

func (w *world) LoadQuestions(_ context.Context, quizID int64) ([]quiz.Question, error) {
	return append([]quiz.Question(nil), w.questions[quizID]...), nil
}

func (w *world) CategoryQuestions(_ context.Context, categoryID int64, _ bool) ([]quiz.Question, error) {
	w.categoryLoads++
	if w.categoryErr != nil {
		return nil, w.categoryErr
	}
	return w.categories[categoryID], nil
}

func (w *world) GetUser(_ context.Context, id int64) (quiz.User, error) {
	u, ok := w.users[id]
	if !ok {
		return quiz.User{}, quiz.ErrNotFound
	}
	return u, nil
}

func (w *world) IsEnrolled(_ context.Context, userID, courseID int64) (bool, error) {
	return w.enrolled[enrolKey(userID, courseID)], nil
}

func (w *world) GradeItem(context.Context, int64, int64) (*quiz.GradeItem, error) {
	return w.gradeItem, nil
}

func (w *world) ListAttempts(_ context.Context, quizID, userID int64) ([]quiz.Attempt, error) {
	var out []quiz.Attempt
	for _, a := range w.attempts {
		if a.QuizID == quizID && a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (w *world) insert(p quiz.StartParams) quiz.Attempt {
	w.nextID++
	a := quiz.Attempt{
		ID:           w.nextID,
		QuizID:       p.Quiz.ID,
		UserID:       p.UserID,
		Number:       p.Number,
		State:        quiz.StateInProgress,
		TimeStart:    p.At.Unix(),
		TimeModified: p.At.Unix(),
	}
	w.attempts = append(w.attempts, a)
	return a
}

func (w *world) StartNewAttempt(_ context.Context, p quiz.StartParams) (quiz.Attempt, error) {
	w.newStarts++
	if w.startErr != nil {
		return quiz.Attempt{}, w.startErr
	}
	a := w.insert(p)
	var slots []quiz.SlotReview
	for _, q := range w.questions[p.Quiz.ID] {
		shown := q
		if q.IsRandom() && q.Random != nil && len(w.categories[q.Random.CategoryID]) > 0 {
			shown = w.categories[q.Random.CategoryID][0]
			shown.Slot, shown.Page = q.Slot, q.Page
		}
		slots = append(slots, quiz.SlotReview{Slot: q.Slot, Question: shown, Real: true, State: quiz.QTodo, MaxMark: 1})
	}
	w.slots[a.ID] = slots
	return a, nil
}

func (w *world) StartAttemptBuiltOnLast(_ context.Context, p quiz.StartParams) (quiz.Attempt, error) {
	w.builtStarts++
	if w.startErr != nil {
		return quiz.Attempt{}, w.startErr
	}
	a := w.insert(p)
	var slots []quiz.SlotReview
	for _, prev := range w.slots[p.Previous.ID] {
		s := quiz.SlotReview{Slot: prev.Slot, Question: prev.Question, Real: prev.Real, State: quiz.QTodo, MaxMark: prev.MaxMark}
		if len(prev.Response) > 0 {
			s.Response = prev.Response
			s.State = quiz.QComplete
		}
		slots = append(slots, s)
	}
	w.slots[a.ID] = slots
	return a, nil
}

func (w *world) find(id int64) (*quiz.Attempt, error) {
	for i := range w.attempts {
		if w.attempts[i].ID == id {
			return &w.attempts[i], nil
		}
	}
	return nil, fmt.Errorf("attempt %d not found", id)
}

// submit stores a response for a slot of an in-progress attempt.
func (w *world) submit(attemptID int64, slot int, resp map[string]string) {
	for i := range w.slots[attemptID] {
		s := &w.slots[attemptID][i]
		if s.Slot == slot {
			s.Response = resp
			s.State = quiz.QComplete
			s.SequenceCheck++
		}
	}
}

// FinishAttempt marks every answered slot wrong, which is all the tests need.
func (w *world) FinishAttempt(_ context.Context, id int64, at time.Time) (quiz.Attempt, error) {
	w.finishes++
	a, err := w.find(id)
	if err != nil {
		return quiz.Attempt{}, err
	}
	sum := 0.0
	for i := range w.slots[id] {
		s := &w.slots[id][i]
		zero := 0.0
		s.Fraction = &zero
		if len(s.Response) == 0 {
			s.State = quiz.QGaveUp
		} else {
			s.State = quiz.QGradedWrong
		}
		sum += *s.Mark()
	}
	a.State = quiz.StateFinished
	a.SumGrades = &sum
	a.TimeFinish, a.TimeModified = at.Unix(), at.Unix()
	return *a, nil
}

func (w *world) AbandonAttempt(_ context.Context, id int64, at time.Time) (quiz.Attempt, error) {
	w.abandons++
	a, err := w.find(id)
	if err != nil {
		return quiz.Attempt{}, err
	}
	a.State = quiz.StateAbandoned
	a.TimeModified = at.Unix()
	return *a, nil
}

func (w *world) Review(_ context.Context, id int64) (quiz.AttemptReview, error) {
	a, err := w.find(id)
	if err != nil {
		return quiz.AttemptReview{}, err
	}
	return quiz.AttemptReview{Attempt: *a, Slots: w.slots[id]}, nil
}

func (w *world) RenderQuestion(_ context.Context, s quiz.SlotReview, _ quiz.DisplayOptions) (string, error) {
	if w.renderErr != nil {
		return "", w.renderErr
	}
	return fmt.Sprintf("<div class=\"que\" id=\"q%d\">%s</div>", s.Slot, s.Question.Text), nil
}

func (w *world) RenderFeedback(_ context.Context, s quiz.SlotReview, _ quiz.DisplayOptions) (string, error) {
	if s.State.IsGraded() {
		return "<div class=\"feedback\">" + s.State.Status(true) + "</div>", nil
	}
	return "", nil
}

func (w *world) deps() quiz.Deps {
	return quiz.Deps{
		Modules:   w,
		Quizzes:   w,
		Questions: w,
		Users:     w,
		Attempts:  w,
		Grades:    w,
		Renderer:  w,
	}
}

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}
