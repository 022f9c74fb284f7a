package exam

import (
	"encoding/json"
	"time"
)

// Role is a user's access level.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func ValidRole(r Role) bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleStudent
}

// User is an account record. PasswordHash is a bcrypt hash; plaintext
// passwords are never persisted.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash,omitempty"`
	Role         Role   `json:"role"`
	CreatedAt    int64  `json:"createdAt,omitempty"`
}

// Public returns the user without credential material, for API responses.
func (u User) Public() map[string]any {
	return map[string]any{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}
}

type QuestionType string

const (
	SingleChoice   QuestionType = "single-choice"
	MultipleChoice QuestionType = "multiple-choice"
)

type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type Question struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Subject  string       `json:"subject"`
	Type     QuestionType `json:"type"`
	Options  []Option     `json:"options"`
	Points   int          `json:"points"`
	AuthorID string       `json:"authorId"`
}

// PointsOrDefault treats unset/invalid points as 1.
func (q Question) PointsOrDefault() int {
	if q.Points < 1 {
		return 1
	}
	return q.Points
}

// CorrectTexts returns the texts of all options flagged correct.
func (q Question) CorrectTexts() []string {
	var out []string
	for _, o := range q.Options {
		if o.IsCorrect {
			out = append(out, o.Text)
		}
	}
	return out
}

// HasOption reports whether text matches one of the question's options.
func (q Question) HasOption(text string) bool {
	for _, o := range q.Options {
		if o.Text == text {
			return true
		}
	}
	return false
}

// Sanitized returns a copy safe to serve to students: correct-answer flags
// are stripped, option order preserved.
func (q Question) Sanitized() Question {
	opts := make([]Option, len(q.Options))
	for i, o := range q.Options {
		opts[i] = Option{Text: o.Text}
	}
	q.Options = opts
	return q
}

type Exam struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Subject     string    `json:"subject"`
	Duration    int       `json:"duration"` // minutes
	ScheduledAt time.Time `json:"scheduledDateTime"`
	QuestionIDs []string  `json:"selectedQuestionIds"`
	Published   bool      `json:"published"`
	AuthorID    string    `json:"authorId"`
}

type ScoreData struct {
	Score              int `json:"score"`
	TotalPossibleScore int `json:"totalPossibleScore"`
	Percentage         int `json:"percentage"`
}

// Submission is the immutable record of one student's single attempt at one
// exam. Answers maps question id to a selected option text (single-choice)
// or a list of texts (multiple-choice), mirroring the persisted wire shape.
type Submission struct {
	ID             string         `json:"id"`
	ExamID         string         `json:"examId"`
	StudentID      string         `json:"studentId"`
	StudentName    string         `json:"studentName"`
	Answers        map[string]any `json:"answers"`
	SubmittedAt    time.Time      `json:"submittedAt"`
	TimeSpent      int            `json:"timeSpent"` // seconds
	TabSwitchCount int            `json:"tabSwitchCount"`
	ScoreData      ScoreData      `json:"scoreData"`
	ExamTitle      string         `json:"examTitle,omitempty"`
}

// submissionAliases carries the legacy field names older records used, so
// reports over old data keep working.
type submissionAliases struct {
	ID             string         `json:"id"`
	ExamID         string         `json:"examId"`
	StudentID      string         `json:"studentId"`
	StudentName    string         `json:"studentName"`
	Answers        map[string]any `json:"answers"`
	SubmittedAt    time.Time      `json:"submittedAt"`
	TimeSpent      int            `json:"timeSpent"`
	TabSwitchCount *int           `json:"tabSwitchCount"`
	TabSwitches    *int           `json:"tabSwitches"`
	ScoreData      *ScoreData     `json:"scoreData"`
	Score          *int           `json:"score"`
	ExamTitle      string         `json:"examTitle"`
}

func (s *Submission) UnmarshalJSON(data []byte) error {
	var a submissionAliases
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	s.ID = a.ID
	s.ExamID = a.ExamID
	s.StudentID = a.StudentID
	s.StudentName = a.StudentName
	s.Answers = a.Answers
	s.SubmittedAt = a.SubmittedAt
	s.TimeSpent = a.TimeSpent
	s.ExamTitle = a.ExamTitle
	switch {
	case a.TabSwitchCount != nil:
		s.TabSwitchCount = *a.TabSwitchCount
	case a.TabSwitches != nil:
		s.TabSwitchCount = *a.TabSwitches
	}
	switch {
	case a.ScoreData != nil:
		s.ScoreData = *a.ScoreData
	case a.Score != nil:
		s.ScoreData = ScoreData{Percentage: *a.Score}
	}
	return nil
}
