package engine

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-headlessquiz/internal/db"
	"github.com/mind-engage/mindengage-headlessquiz/internal/quiz"
)

func (s *Store) GetCourseModule(ctx context.Context, cmid int64) (quiz.CourseModule, error) {
	var cm quiz.CourseModule
	err := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, modname, instance FROM course_modules WHERE id=$1`, cmid).
		Scan(&cm.ID, &cm.CourseID, &cm.ModName, &cm.Instance)
	if errors.Is(err, sql.ErrNoRows) {
		return cm, quiz.ErrNotFound
	}
	return cm, errors.Wrapf(err, "get course module %d", cmid)
}

// GetQuiz loads the quiz with its overall feedback bands. SumGrades is the
// sum of the slots' max marks.
func (s *Store) GetQuiz(ctx context.Context, quizID int64) (quiz.Quiz, error) {
	var (
		q      quiz.Quiz
		method string
		onLast int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT q.id, q.course_id, q.name, q.grade, q.grade_method, q.attempt_on_last,
		       COALESCE((SELECT SUM(max_mark) FROM quiz_slots WHERE quiz_id = q.id), 0)
		FROM quizzes q WHERE q.id=$1`, quizID).
		Scan(&q.ID, &q.CourseID, &q.Name, &q.Grade, &method, &onLast, &q.SumGrades)
	if errors.Is(err, sql.ErrNoRows) {
		return q, quiz.ErrNotFound
	}
	if err != nil {
		return q, errors.Wrapf(err, "get quiz %d", quizID)
	}
	q.GradeMethod = quiz.GradeMethod(method)
	q.AttemptOnLast = onLast != 0

	rows, err := s.db.QueryContext(ctx,
		`SELECT text, min_grade, max_grade FROM quiz_feedback WHERE quiz_id=$1 ORDER BY min_grade DESC`, quizID)
	if err != nil {
		return q, errors.Wrapf(err, "feedback of quiz %d", quizID)
	}
	defer rows.Close()
	for rows.Next() {
		var b quiz.FeedbackBand
		if err := rows.Scan(&b.Text, &b.Min, &b.Max); err != nil {
			return q, errors.Wrap(err, "scan feedback")
		}
		q.Feedback = append(q.Feedback, b)
	}
	return q, errors.Wrap(rows.Err(), "read feedback")
}

type slotRow struct {
	question quiz.Question
	maxMark  float64
}

func (s *Store) loadSlots(ctx context.Context, quizID int64) ([]slotRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.slot, s.page, s.max_mark, `+questionCols+`
		FROM quiz_slots s JOIN questions q ON q.id = s.question_id
		WHERE s.quiz_id=$1 ORDER BY s.slot`, quizID)
	if err != nil {
		return nil, errors.Wrapf(err, "slots of quiz %d", quizID)
	}
	defer rows.Close()

	var out []slotRow
	for rows.Next() {
		var (
			r          questionRow
			slot, page int
			maxMark    float64
		)
		if err := rows.Scan(append([]any{&slot, &page, &maxMark}, r.dest()...)...); err != nil {
			return nil, errors.Wrap(err, "scan slot")
		}
		q := r.question()
		q.Slot, q.Page = slot, page
		out = append(out, slotRow{question: q, maxMark: maxMark})
	}
	return out, errors.Wrap(rows.Err(), "read slots")
}

func (s *Store) LoadQuestions(ctx context.Context, quizID int64) ([]quiz.Question, error) {
	slots, err := s.loadSlots(ctx, quizID)
	if err != nil {
		return nil, err
	}
	out := make([]quiz.Question, len(slots))
	for i, sl := range slots {
		out[i] = sl.question
	}
	return out, nil
}

func (s *Store) CategoryQuestions(ctx context.Context, categoryID int64, includeSubcategories bool) ([]quiz.Question, error) {
	ids := []int64{categoryID}
	if includeSubcategories {
		var err error
		if ids, err = s.categoryTree(ctx, categoryID); err != nil {
			return nil, err
		}
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionCols+` FROM questions q
		 WHERE q.category_id IN (`+db.Placeholders(1, len(ids))+`) ORDER BY q.id`, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "questions of category %d", categoryID)
	}
	defer rows.Close()

	var out []quiz.Question
	for rows.Next() {
		var r questionRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, errors.Wrap(err, "scan question")
		}
		out = append(out, r.question())
	}
	return out, errors.Wrap(rows.Err(), "read questions")
}

// categoryTree returns root and all its descendants, breadth first.
func (s *Store) categoryTree(ctx context.Context, root int64) ([]int64, error) {
	seen := map[int64]bool{root: true}
	out := []int64{root}
	for queue := []int64{root}; len(queue) > 0; {
		parent := queue[0]
		queue = queue[1:]
		children, err := s.childCategories(ctx, parent)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
				queue = append(queue, c)
			}
		}
	}
	return out, nil
}

func (s *Store) childCategories(ctx context.Context, parent int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM question_categories WHERE parent_id=$1 ORDER BY id`, parent)
	if err != nil {
		return nil, errors.Wrapf(err, "subcategories of %d", parent)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan category")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// GetUser returns ErrNotFound for deleted users too.
func (s *Store) GetUser(ctx context.Context, userID int64) (quiz.User, error) {
	var u quiz.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username FROM users WHERE id=$1 AND deleted=0`, userID).Scan(&u.ID, &u.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return u, quiz.ErrNotFound
	}
	return u, errors.Wrapf(err, "get user %d", userID)
}

func (s *Store) IsEnrolled(ctx context.Context, userID, courseID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrolments WHERE user_id=$1 AND course_id=$2`, userID, courseID).Scan(&n)
	if err != nil {
		return false, errors.Wrapf(err, "enrolment of user %d in course %d", userID, courseID)
	}
	return n > 0, nil
}

func (s *Store) GradeItem(ctx context.Context, courseID, quizID int64) (*quiz.GradeItem, error) {
	var gi quiz.GradeItem
	err := s.db.QueryRowContext(ctx,
		`SELECT grade_max, grade_pass FROM grade_items WHERE course_id=$1 AND quiz_id=$2`, courseID, quizID).
		Scan(&gi.GradeMax, &gi.GradePass)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "grade item of quiz %d", quizID)
	}
	return &gi, nil
}

// Credentials is what token issuance needs to know about a user.
type Credentials struct {
	UserID       int64
	PasswordHash string
	Role         string
}

func (s *Store) Credentials(ctx context.Context, username string) (Credentials, error) {
	var c Credentials
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash, role FROM users WHERE username=$1 AND deleted=0`, username).
		Scan(&c.UserID, &c.PasswordHash, &c.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return c, quiz.ErrNotFound
	}
	return c, errors.Wrapf(err, "credentials of %q", username)
}
