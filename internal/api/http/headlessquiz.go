package http

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	auth "github.com/mind-engage/mindengage-headlessquiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-headlessquiz/internal/quiz"
	"github.com/mind-engage/mindengage-headlessquiz/internal/rbac"
)

var validate = newValidator()

// newValidator reports fields by their query parameter name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string { return f.Tag.Get("param") })
	return v
}

type HeadlessQuizzer interface {
	GetHeadlessQuiz(ctx context.Context, req quiz.Request) quiz.Envelope
}

type headlessQuizParams struct {
	CMID     int64 `param:"cmid" validate:"required,gt=0"`
	UserID   int64 `param:"user_id" validate:"gte=0"`
	ForceNew bool  `param:"forcenew"`
}

// GET /api/headlessquiz?cmid=...&forcenew=1&user_id=...
// user_id is honoured only for roles with headlessquiz:view-any; everyone
// else gets their own view. The response is always the JSON envelope.
func HeadlessQuizHandler(api HeadlessQuizzer, defaultLang string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, bad := parseHeadlessQuiz(r)
		if bad != "" {
			writeEnvelope(w, http.StatusBadRequest, invalidParam(bad))
			return
		}

		sub, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		switch {
		case p.UserID == 0:
			p.UserID = sub
		case p.UserID != sub && !rbac.Can(rbac.RoleFromContext(r.Context()), rbac.PermViewAny):
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		lang := r.Header.Get("Accept-Language")
		if lang == "" {
			lang = defaultLang
		}
		env := api.GetHeadlessQuiz(r.Context(), quiz.Request{
			CourseModuleID: p.CMID,
			UserID:         p.UserID,
			ForceNew:       p.ForceNew,
			Lang:           lang,
		})
		writeEnvelope(w, http.StatusOK, env)
	}
}

// parseHeadlessQuiz returns the name of the first bad parameter, if any.
func parseHeadlessQuiz(r *http.Request) (headlessQuizParams, string) {
	q := r.URL.Query()
	var p headlessQuizParams
	var err error

	if p.CMID, err = strconv.ParseInt(strings.TrimSpace(q.Get("cmid")), 10, 64); err != nil {
		return p, "cmid"
	}
	if v := strings.TrimSpace(q.Get("user_id")); v != "" {
		if p.UserID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return p, "user_id"
		}
	}
	if v := strings.TrimSpace(q.Get("forcenew")); v != "" {
		if p.ForceNew, err = strconv.ParseBool(v); err != nil {
			return p, "forcenew"
		}
	}
	if err := validate.Struct(p); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return p, ve[0].Field()
		}
		return p, "request"
	}
	return p, ""
}

func invalidParam(name string) quiz.Envelope {
	return quiz.Envelope{Error: &quiz.ErrorBody{Type: quiz.ErrorValidation, Message: "Invalid parameter value detected: " + name}}
}

func writeEnvelope(w http.ResponseWriter, status int, env quiz.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
