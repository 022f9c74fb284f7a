package grading

import (
	"math"

	"github.com/damitheswitch/exam-master/internal/exam"
)

// Result is the outcome of grading a single question response.
type Result struct {
	Points    int // points awarded
	MaxPoints int // the question's max points
}

// Strategy grades a single question. Awarding is all-or-nothing: either the
// response matches the correct-option set exactly, or no points.
type Strategy interface {
	Grade(q exam.Question, response any) Result
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(q exam.Question, response any) Result
}

type defaultGrader struct {
	strategies map[exam.QuestionType]Strategy
}

func (g *defaultGrader) Grade(q exam.Question, response any) Result {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.PointsOrDefault()}
	}
	return s.Grade(q, response)
}

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[exam.QuestionType]Strategy{
			exam.SingleChoice:   singleChoiceStrategy{},
			exam.MultipleChoice: multipleChoiceStrategy{},
		},
	}
}

// Score computes the score record for a full question set. It is a pure
// function of its inputs: no clock, no store, so results can be recomputed
// for audit and always agree with the original grading.
func Score(questions []exam.Question, answers map[string]any) exam.ScoreData {
	g := NewDefaultGrader()
	var sd exam.ScoreData
	for _, q := range questions {
		res := g.Grade(q, answers[q.ID])
		sd.Score += res.Points
		sd.TotalPossibleScore += res.MaxPoints
	}
	if sd.TotalPossibleScore > 0 {
		sd.Percentage = int(math.Round(100 * float64(sd.Score) / float64(sd.TotalPossibleScore)))
	}
	return sd
}

// --- strategies ---

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(q exam.Question, response any) Result {
	res := Result{MaxPoints: q.PointsOrDefault()}
	ans, ok := response.(string)
	if !ok || ans == "" {
		return res
	}
	for _, correct := range q.CorrectTexts() {
		if ans == correct {
			res.Points = res.MaxPoints
			return res
		}
	}
	return res
}

type multipleChoiceStrategy struct{}

func (multipleChoiceStrategy) Grade(q exam.Question, response any) Result {
	res := Result{MaxPoints: q.PointsOrDefault()}
	ans, ok := toStringSlice(response)
	if !ok || len(ans) == 0 {
		return res
	}
	if setEqual(toSet(ans), toSet(q.CorrectTexts())) {
		res.Points = res.MaxPoints
	}
	return res
}

// --- helpers ---

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
