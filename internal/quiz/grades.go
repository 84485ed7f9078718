package quiz

// Rescale converts a raw mark sum to the quiz's grading scale without
// rounding. A nil raw sum stays nil; a quiz without marks scales to zero.
func Rescale(raw *float64, q Quiz) *float64 {
	if raw == nil {
		return nil
	}
	g := 0.0
	if q.SumGrades >= 0.000005 {
		g = *raw * q.Grade / q.SumGrades
	}
	return &g
}

// BestGrade recomputes the user's raw best mark sum from the finished
// attempts according to the quiz's grade method. nil when nothing is graded.
func BestGrade(q Quiz, attempts []Attempt) *float64 {
	graded := make([]float64, 0, len(attempts))
	for _, a := range attempts {
		if a.State == StateFinished && a.SumGrades != nil {
			graded = append(graded, *a.SumGrades)
		}
	}
	if len(graded) == 0 {
		return nil
	}

	var best float64
	switch q.GradeMethod {
	case GradeAverage:
		for _, g := range graded {
			best += g
		}
		best /= float64(len(graded))
	case GradeFirst:
		best = graded[0]
	case GradeLast:
		best = graded[len(graded)-1]
	default:
		best = graded[0]
		for _, g := range graded[1:] {
			if g > best {
				best = g
			}
		}
	}
	return &best
}

// OverallFeedback returns the text of the band containing grade.
func OverallFeedback(q Quiz, grade float64) *string {
	for _, b := range q.Feedback {
		if b.Min <= grade && grade < b.Max {
			t := b.Text
			return &t
		}
	}
	return nil
}
