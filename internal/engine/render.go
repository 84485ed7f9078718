package engine

import (
	"context"
	"html/template"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-headlessquiz/internal/quiz"
)

var _ quiz.Renderer = (*HTMLRenderer)(nil)

var (
	questionTmpl = template.Must(template.New("question").Parse(
		`<div id="question-{{.Slot}}" class="que {{.Type}}{{if .State}} {{.State}}{{end}}">` +
			`<div class="info"><h3 class="no">Question <span class="qno">{{.Slot}}</span></h3>` +
			`{{if .Status}}<div class="state">{{.Status}}</div>{{end}}` +
			`{{if .Mark}}<div class="grade">Mark {{.Mark}} out of {{.MaxMark}}</div>` +
			`{{else if .MaxMark}}<div class="grade">Marked out of {{.MaxMark}}</div>{{end}}</div>` +
			`<div class="content"><div class="qtext">{{.Text}}</div>` +
			`{{if .Answer}}<div class="answer">{{.Answer}}</div>{{end}}</div></div>`))

	feedbackTmpl = template.Must(template.New("feedback").Parse(
		`<div class="outcome"><div class="feedback">{{.Status}}</div>` +
			`{{if .Comment}}<div class="specificfeedback">{{.Comment}}</div>{{end}}` +
			`{{if .Mark}}<div class="grade">Mark {{.Mark}} out of {{.MaxMark}}</div>{{end}}</div>`))
)

type slotView struct {
	Slot    int
	Type    string
	State   string
	Status  string
	Mark    string
	MaxMark string
	Text    template.HTML // validated question text
	Answer  string
	Comment string
}

// HTMLRenderer renders each slot as a question block and an outcome block.
type HTMLRenderer struct{}

func NewHTMLRenderer() *HTMLRenderer { return &HTMLRenderer{} }

func view(s quiz.SlotReview, opts quiz.DisplayOptions) slotView {
	v := slotView{
		Slot: s.Slot,
		Type: s.Question.Type,
		Text: template.HTML(s.Question.Text),
	}
	if s.Real {
		v.State = string(s.State)
		v.Status = s.State.Status(opts.Correctness)
		if opts.Feedback {
			v.Comment = s.Feedback
		}
		if opts.Marks {
			v.MaxMark = formatMark(s.MaxMark)
			if m := s.Mark(); m != nil {
				v.Mark = formatMark(*m)
			}
		}
	}
	if a := s.Response["answer"]; a != "" {
		v.Answer = a
	}
	return v
}

func (HTMLRenderer) RenderQuestion(_ context.Context, s quiz.SlotReview, opts quiz.DisplayOptions) (string, error) {
	var b strings.Builder
	if err := questionTmpl.Execute(&b, view(s, opts)); err != nil {
		return "", errors.Wrapf(err, "render question in slot %d", s.Slot)
	}
	return b.String(), nil
}

// RenderFeedback is empty until the slot has reached a finished state.
func (HTMLRenderer) RenderFeedback(_ context.Context, s quiz.SlotReview, opts quiz.DisplayOptions) (string, error) {
	if !opts.Feedback || !s.Real || !s.State.IsFinished() {
		return "", nil
	}
	var b strings.Builder
	if err := feedbackTmpl.Execute(&b, view(s, opts)); err != nil {
		return "", errors.Wrapf(err, "render feedback in slot %d", s.Slot)
	}
	return b.String(), nil
}

func formatMark(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
