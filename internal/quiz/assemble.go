package quiz

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// Assembler builds the read-only snapshot of quiz, attempt and per-slot
// state returned to a headless client.
type Assembler struct {
	engine   AttemptEngine
	grades   Gradebook
	renderer Renderer
}

func NewAssembler(engine AttemptEngine, grades Gradebook, renderer Renderer) *Assembler {
	return &Assembler{engine: engine, grades: grades, renderer: renderer}
}

type gradeData struct {
	toPass *float64
	best   *float64
	max    *float64
}

func (a *Assembler) Assemble(ctx context.Context, q Quiz, u User, attempt Attempt, questions []Question) (*Data, error) {
	review, err := a.engine.Review(ctx, attempt.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "review attempt %d", attempt.ID)
	}
	responses, err := a.responses(ctx, review)
	if err != nil {
		return nil, err
	}
	gd, err := a.gradeData(ctx, q, u)
	if err != nil {
		return nil, err
	}

	sumMarks := 0.0
	if review.Attempt.SumGrades != nil {
		sumMarks = *review.Attempt.SumGrades
	}
	scaled := 0.0
	if g := Rescale(review.Attempt.SumGrades, q); g != nil {
		scaled = *g
	}
	var passed *bool
	if gd.toPass != nil {
		p := scaled >= *gd.toPass
		passed = &p
	}

	return &Data{
		User: UserData{ID: u.ID},
		Quiz: QuizData{
			ID:          q.ID,
			CMID:        q.CourseModuleID,
			Name:        q.Name,
			GradeToPass: gd.toPass,
			BestGrade:   gd.best,
			MaxGrade:    gd.max,
			Questions:   presentedQuestions(questions, review.Slots),
		},
		Attempt: AttemptData{
			ID:           attempt.ID,
			State:        string(attempt.State),
			Feedback:     OverallFeedback(q, scaled),
			SumMarks:     sumMarks,
			ScaledGrade:  scaled,
			Passed:       passed,
			TimeStart:    attempt.TimeStart,
			TimeModified: attempt.TimeModified,
			Number:       attempt.Number,
			Responses:    responses,
		},
	}, nil
}

func (a *Assembler) responses(ctx context.Context, review AttemptReview) ([]ResponseData, error) {
	out := make([]ResponseData, 0, len(review.Slots))
	for _, s := range review.Slots {
		r := ResponseData{
			QuestionID:    s.Question.ID,
			Slot:          s.Slot,
			SequenceCheck: s.SequenceCheck,
			Mark:          s.Mark(),
		}
		if len(s.Response) > 0 {
			buf, err := json.Marshal(s.Response)
			if err != nil {
				return nil, errors.Wrapf(err, "encode response of slot %d", s.Slot)
			}
			data := string(buf)
			r.Data = &data
		}
		if s.Real {
			state := string(s.State)
			status := s.State.Status(ReviewOptions.Correctness)
			r.State, r.Status = &state, &status
		}

		var err error
		if r.HTML, err = a.renderer.RenderQuestion(ctx, s, ReviewOptions); err != nil {
			return nil, errors.Wrapf(err, "render slot %d", s.Slot)
		}
		if r.Feedback, err = a.renderer.RenderFeedback(ctx, s, ReviewOptions); err != nil {
			return nil, errors.Wrapf(err, "render feedback of slot %d", s.Slot)
		}
		out = append(out, r)
	}
	return out, nil
}

// gradeData recomputes the best grade from raw attempts rather than trusting
// a cached gradebook value.
func (a *Assembler) gradeData(ctx context.Context, q Quiz, u User) (gradeData, error) {
	var gd gradeData
	item, err := a.grades.GradeItem(ctx, q.CourseID, q.ID)
	if err != nil {
		return gd, errors.Wrap(err, "load grade item")
	}
	if item != nil {
		gm := item.GradeMax
		gd.max = &gm
		if item.GradePass > 0 {
			pass := item.GradePass
			gd.toPass = &pass
		}
	}
	attempts, err := a.engine.ListAttempts(ctx, q.ID, u.ID)
	if err != nil {
		return gd, errors.Wrap(err, "list attempts for best grade")
	}
	gd.best = Rescale(BestGrade(q, attempts), q)
	return gd, nil
}

// presentedQuestions lists the quiz questions, replacing each random
// question with the concrete question the attempt shows in its slot.
func presentedQuestions(questions []Question, slots []SlotReview) []QuestionData {
	bySlot := make(map[int]Question, len(slots))
	for _, s := range slots {
		bySlot[s.Slot] = s.Question
	}
	out := make([]QuestionData, 0, len(questions))
	for _, q := range questions {
		shown := q
		if q.IsRandom() {
			if concrete, ok := bySlot[q.Slot]; ok {
				shown = concrete
			}
		}
		out = append(out, QuestionData{
			ID:           shown.ID,
			Name:         shown.Name,
			QuestionText: shown.Text,
			Type:         shown.Type,
			Slot:         q.Slot,
			Options:      optionsJSON(shown.Options),
		})
	}
	return out
}

func optionsJSON(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}
