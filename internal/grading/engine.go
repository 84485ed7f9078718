package grading

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidResponse is returned when a response cannot be read for the
// question's type.
var ErrInvalidResponse = errors.New("invalid response")

// Answer is one graded answer of a question. For shortanswer it is a pattern
// where * matches anything; for truefalse "true" or "false"; for
// multichoice a choice id.
type Answer struct {
	Answer   string  `json:"answer"`
	Fraction float64 `json:"fraction"`
	Feedback string  `json:"feedback,omitempty"`
}

// Q is a minimal view of a question needed for grading.
type Q struct {
	Type    string
	Answers []Answer
	UseCase bool // shortanswer: case sensitive matching
	Single  bool // multichoice: one answer only
}

// Result is the outcome of grading a single question response.
type Result struct {
	Fraction    float64  // 0..1
	NeedsManual bool     // true if no strategy can grade the question
	Feedback    []string // optional notes
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, response map[string]string) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response map[string]string) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response map[string]string) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{NeedsManual: true, Feedback: []string{"no strategy available"}}, nil
	}
	return s.Grade(ctx, q, response)
}

// Engine options

type Option func(*config)

type config struct {
	MaxEditDistance   int  // shortanswer fuzzy matching, 0 disables it
	AllowPartialMulti bool // partial credit for multichoice with several answers
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }
func WithPartialMulti(b bool) Option   { return func(c *config) { c.AllowPartialMulti = b } }

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{AllowPartialMulti: true}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			"shortanswer": shortAnswerStrategy{maxEdit: cfg.MaxEditDistance},
			"truefalse":   trueFalseStrategy{},
			"multichoice": multiChoiceStrategy{allowPartial: cfg.AllowPartialMulti},
		},
	}
}

// --- Strategies ---

type shortAnswerStrategy struct{ maxEdit int }

func (s shortAnswerStrategy) Grade(_ context.Context, q Q, response map[string]string) (Result, error) {
	var res Result
	resp := normalize(response["answer"], !q.UseCase)
	if resp == "" {
		return res, errors.Wrap(ErrInvalidResponse, "empty answer")
	}

	// first matching answer wins
	for _, a := range q.Answers {
		if wildcardMatch(a.Answer, resp, !q.UseCase) {
			res.Fraction = a.Fraction
			if a.Feedback != "" {
				res.Feedback = append(res.Feedback, a.Feedback)
			}
			return res, nil
		}
	}
	if s.maxEdit > 0 {
		for _, a := range q.Answers {
			if a.Fraction <= 0 || strings.Contains(a.Answer, "*") {
				continue
			}
			if levenshtein(normalize(a.Answer, !q.UseCase), resp) <= s.maxEdit {
				res.Fraction = a.Fraction * 0.5
				res.Feedback = append(res.Feedback, "close match (fuzzy)")
				return res, nil
			}
		}
	}
	return res, nil
}

type trueFalseStrategy struct{}

func (trueFalseStrategy) Grade(_ context.Context, q Q, response map[string]string) (Result, error) {
	var res Result
	var given string
	switch strings.ToLower(strings.TrimSpace(response["answer"])) {
	case "1", "true":
		given = "true"
	case "0", "false":
		given = "false"
	default:
		return res, errors.Wrapf(ErrInvalidResponse, "truefalse answer %q", response["answer"])
	}
	for _, a := range q.Answers {
		if strings.EqualFold(a.Answer, given) {
			res.Fraction = a.Fraction
			if a.Feedback != "" {
				res.Feedback = append(res.Feedback, a.Feedback)
			}
			break
		}
	}
	return res, nil
}

type multiChoiceStrategy struct{ allowPartial bool }

func (s multiChoiceStrategy) Grade(_ context.Context, q Q, response map[string]string) (Result, error) {
	var res Result
	chosen := splitChoices(response["answer"])
	if len(chosen) == 0 {
		return res, errors.Wrap(ErrInvalidResponse, "no choice selected")
	}
	if q.Single && len(chosen) > 1 {
		return res, errors.Wrap(ErrInvalidResponse, "several choices for a single answer question")
	}

	fractions := make(map[string]Answer, len(q.Answers))
	for _, a := range q.Answers {
		fractions[a.Answer] = a
	}
	total := 0.0
	for c := range toSet(chosen) {
		a := fractions[c]
		total += a.Fraction
		if a.Feedback != "" {
			res.Feedback = append(res.Feedback, a.Feedback)
		}
	}
	switch {
	case total < 0:
		total = 0
	case total > 1:
		total = 1
	}
	if !q.Single && !s.allowPartial && total < 0.9999999 {
		total = 0
	}
	res.Fraction = total
	return res, nil
}

// helpers

func splitChoices(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}
