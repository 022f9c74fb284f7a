package exam

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingText        = errors.New("question text is required")
	ErrMissingSubject     = errors.New("subject is required")
	ErrBadQuestionType    = errors.New("type must be single-choice or multiple-choice")
	ErrTooFewOptions      = errors.New("a question must have at least two options")
	ErrNoCorrectOption    = errors.New("at least one option must be marked correct")
	ErrMultipleCorrect    = errors.New("a single-choice question allows exactly one correct option")
	ErrEmptyOptionText    = errors.New("option text must not be empty")
	ErrMissingTitle       = errors.New("exam title is required")
	ErrBadDuration        = errors.New("duration must be a positive number of minutes")
	ErrNoQuestionsChosen  = errors.New("an exam must select at least one question")
	ErrMissingSchedule    = errors.New("scheduled date/time is required")
)

// ValidateQuestion enforces the question-bank invariants. It mutates nothing;
// callers normalize (trim, default points) before persisting.
func ValidateQuestion(q Question) error {
	if strings.TrimSpace(q.Text) == "" {
		return ErrMissingText
	}
	if strings.TrimSpace(q.Subject) == "" {
		return ErrMissingSubject
	}
	if q.Type != SingleChoice && q.Type != MultipleChoice {
		return ErrBadQuestionType
	}
	if len(q.Options) < 2 {
		return ErrTooFewOptions
	}
	correct := 0
	for _, o := range q.Options {
		if strings.TrimSpace(o.Text) == "" {
			return ErrEmptyOptionText
		}
		if o.IsCorrect {
			correct++
		}
	}
	if correct == 0 {
		return ErrNoCorrectOption
	}
	if q.Type == SingleChoice && correct != 1 {
		return ErrMultipleCorrect
	}
	return nil
}

// ValidateExam checks the exam record itself. Referenced question ids are
// verified against the bank by the caller, which owns store access.
func ValidateExam(e Exam) error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrMissingTitle
	}
	if strings.TrimSpace(e.Subject) == "" {
		return ErrMissingSubject
	}
	if e.Duration <= 0 {
		return ErrBadDuration
	}
	if e.ScheduledAt.IsZero() {
		return ErrMissingSchedule
	}
	if len(e.QuestionIDs) == 0 {
		return ErrNoQuestionsChosen
	}
	return nil
}

// UnknownQuestionError reports an exam referencing a question id that is not
// in the bank.
type UnknownQuestionError struct{ ID string }

func (e *UnknownQuestionError) Error() string {
	return fmt.Sprintf("unknown question id %q", e.ID)
}
