package quiz

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Deps are the external subsystems the headless API is composed over.
type Deps struct {
	Modules   CourseModules
	Quizzes   Quizzes
	Questions QuestionBank
	Users     Directory
	Attempts  AttemptEngine
	Grades    Gradebook
	Renderer  Renderer
}

// Request is one headless quiz call. Lang is an Accept-Language value used
// to localise validation messages.
type Request struct {
	CourseModuleID int64
	UserID         int64
	ForceNew       bool
	Lang           string
}

type API struct {
	modules   CourseModules
	users     Directory
	validator *Validator
	lifecycle *Lifecycle
	assembler *Assembler
}

func NewAPI(d Deps, opts ...LifecycleOption) *API {
	resolver := NewResolver(d.Questions)
	return &API{
		modules:   d.Modules,
		users:     d.Users,
		validator: NewValidator(d.Quizzes, d.Users, resolver),
		lifecycle: NewLifecycle(d.Attempts, opts...),
		assembler: NewAssembler(d.Attempts, d.Grades, d.Renderer),
	}
}

// GetHeadlessQuiz validates the quiz and user, resolves or starts the
// attempt and returns the snapshot. It always returns a well-formed envelope.
func (a *API) GetHeadlessQuiz(ctx context.Context, req Request) (env Envelope) {
	logger := log.With().Int64("cmid", req.CourseModuleID).Int64("user_id", req.UserID).
		Bool("force_new", req.ForceNew).Logger()

	defer func() {
		if p := recover(); p != nil {
			logger.Error().Interface("panic", p).Msg("headless quiz panicked")
			env = unknownEnvelope(fmt.Sprint(p))
		}
	}()

	data, err := a.get(ctx, req)
	if err != nil {
		if ve, ok := AsValidation(err); ok {
			logger.Debug().Str("code", string(ve.Code)).Msg("headless quiz rejected")
			return validationEnvelope(Message(ve.Code, req.Lang))
		}
		logger.Error().Err(err).Msg("headless quiz failed")
		return unknownEnvelope(errors.Cause(err).Error())
	}
	return Envelope{Data: data}
}

func (a *API) get(ctx context.Context, req Request) (*Data, error) {
	cm, err := a.courseModule(ctx, req.CourseModuleID)
	if err != nil {
		return nil, err
	}
	q, questions, err := a.validator.ValidateQuiz(ctx, cm)
	if err != nil {
		return nil, err
	}

	u, err := a.user(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := a.validator.ValidateUser(ctx, u, q.CourseID); err != nil {
		return nil, err
	}

	attempt, err := a.lifecycle.GetOrCreateAttempt(ctx, *u, q, req.ForceNew)
	if err != nil {
		return nil, err
	}
	return a.assembler.Assemble(ctx, q, *u, attempt, questions)
}

func (a *API) courseModule(ctx context.Context, cmid int64) (*CourseModule, error) {
	cm, err := a.modules.GetCourseModule(ctx, cmid)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load course module %d", cmid)
	}
	return &cm, nil
}

func (a *API) user(ctx context.Context, id int64) (*User, error) {
	u, err := a.users.GetUser(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load user %d", id)
	}
	return &u, nil
}
