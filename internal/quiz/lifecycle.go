package quiz

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// CloseState is what an in-progress attempt becomes when a new one is forced.
type CloseState string

const (
	CloseAbandon CloseState = "abandoned"
	CloseFinish  CloseState = "finished"
)

func ParseCloseState(s string) (CloseState, error) {
	switch CloseState(s) {
	case "", CloseAbandon:
		return CloseAbandon, nil
	case CloseFinish:
		return CloseFinish, nil
	}
	return "", errors.Errorf("unknown close state %q", s)
}

// Lifecycle finds, reuses, closes and starts attempts for one user at one quiz.
//
//	latest       forceNew  action
//	none         any       start attempt 1
//	inprogress   false     return it
//	inprogress   true      close it, start max+1
//	terminal     false     return it
//	terminal     true      start max+1
type Lifecycle struct {
	engine AttemptEngine
	close  CloseState
	now    func() time.Time
}

type LifecycleOption func(*Lifecycle)

func WithCloseState(s CloseState) LifecycleOption { return func(l *Lifecycle) { l.close = s } }
func WithClock(now func() time.Time) LifecycleOption {
	return func(l *Lifecycle) { l.now = now }
}

func NewLifecycle(engine AttemptEngine, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{engine: engine, close: CloseAbandon, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LatestAttempt returns the attempt with the latest start time, or nil.
// Equal start times keep the engine's order, so the later listed one wins.
func LatestAttempt(attempts []Attempt) *Attempt {
	if len(attempts) == 0 {
		return nil
	}
	sorted := make([]Attempt, len(attempts))
	copy(sorted, attempts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TimeStart < sorted[j].TimeStart })
	latest := sorted[len(sorted)-1]
	return &latest
}

func maxNumber(attempts []Attempt) int {
	n := 0
	for _, a := range attempts {
		if a.Number > n {
			n = a.Number
		}
	}
	return n
}

func (l *Lifecycle) GetOrCreateAttempt(ctx context.Context, u User, q Quiz, forceNew bool) (Attempt, error) {
	all, err := l.engine.ListAttempts(ctx, q.ID, u.ID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "list attempts")
	}
	latest := LatestAttempt(all)
	if latest != nil && !forceNew {
		return *latest, nil
	}

	now := l.now()
	if latest != nil && latest.State == StateInProgress {
		closed, err := l.closeAttempt(ctx, *latest, now)
		if err != nil {
			return Attempt{}, err
		}
		latest = &closed
	}

	p := StartParams{Quiz: q, UserID: u.ID, Number: maxNumber(all) + 1, At: now}
	var a Attempt
	if q.AttemptOnLast && latest != nil {
		p.Previous = latest
		a, err = l.engine.StartAttemptBuiltOnLast(ctx, p)
	} else {
		a, err = l.engine.StartNewAttempt(ctx, p)
	}
	if err != nil {
		return Attempt{}, errors.Wrapf(err, "start attempt %d", p.Number)
	}
	log.Info().Int64("quiz_id", q.ID).Int64("user_id", u.ID).Int64("attempt_id", a.ID).
		Int("number", a.Number).Bool("built_on_last", p.Previous != nil).Msg("attempt started")
	return a, nil
}

func (l *Lifecycle) closeAttempt(ctx context.Context, a Attempt, at time.Time) (Attempt, error) {
	var (
		closed Attempt
		err    error
	)
	switch l.close {
	case CloseFinish:
		closed, err = l.engine.FinishAttempt(ctx, a.ID, at)
	default:
		closed, err = l.engine.AbandonAttempt(ctx, a.ID, at)
	}
	if err != nil {
		return Attempt{}, errors.Wrapf(err, "close attempt %d", a.ID)
	}
	log.Info().Int64("attempt_id", a.ID).Str("state", string(closed.State)).Msg("in-progress attempt closed")
	return closed, nil
}
