package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/damitheswitch/exam-master/internal/exam"
)

// SQLStore implements Store over database/sql. The same statements run on
// sqlite (modernc) and postgres (pgx stdlib); both accept $N placeholders.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

// --- users ---

func (s *SQLStore) PutUser(ctx context.Context, u exam.User) error {
	if u.CreatedAt == 0 {
		u.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id,name,email,password_hash,role,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, email=EXCLUDED.email,
		   password_hash=EXCLUDED.password_hash, role=EXCLUDED.role`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (exam.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id,name,email,password_hash,role,created_at FROM users WHERE id=$1`, id))
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (exam.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id,name,email,password_hash,role,created_at FROM users WHERE email=$1`, email))
}

func (s *SQLStore) scanUser(row *sql.Row) (exam.User, error) {
	var u exam.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return exam.User{}, ErrNotFound
	}
	if err != nil {
		return exam.User{}, err
	}
	u.Role = exam.Role(role)
	return u, nil
}

func (s *SQLStore) ListUsers(ctx context.Context, role exam.Role) ([]exam.User, error) {
	q := `SELECT id,name,email,password_hash,role,created_at FROM users ORDER BY name`
	args := []any{}
	if role != "" {
		q = `SELECT id,name,email,password_hash,role,created_at FROM users WHERE role=$1 ORDER BY name`
		args = append(args, string(role))
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []exam.User
	for rows.Next() {
		var u exam.User
		var r string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &r, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = exam.Role(r)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// --- questions ---

func (s *SQLStore) PutQuestion(ctx context.Context, q exam.Question) error {
	oj, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO questions (id,text,subject,type,options_json,points,author_id)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (id) DO UPDATE SET text=EXCLUDED.text, subject=EXCLUDED.subject,
		   type=EXCLUDED.type, options_json=EXCLUDED.options_json,
		   points=EXCLUDED.points, author_id=EXCLUDED.author_id`,
		q.ID, q.Text, q.Subject, string(q.Type), string(oj), q.PointsOrDefault(), q.AuthorID)
	return err
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (exam.Question, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,text,subject,type,options_json,points,author_id FROM questions WHERE id=$1`, id)
	var q exam.Question
	var typ, oj string
	err := row.Scan(&q.ID, &q.Text, &q.Subject, &typ, &oj, &q.Points, &q.AuthorID)
	if errors.Is(err, sql.ErrNoRows) {
		return exam.Question{}, ErrNotFound
	}
	if err != nil {
		return exam.Question{}, err
	}
	q.Type = exam.QuestionType(typ)
	if err := json.Unmarshal([]byte(oj), &q.Options); err != nil {
		return exam.Question{}, fmt.Errorf("decode options for question %s: %w", id, err)
	}
	return q, nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, subject string) ([]exam.Question, error) {
	q := `SELECT id,text,subject,type,options_json,points,author_id FROM questions`
	args := []any{}
	if subject != "" {
		q += ` WHERE LOWER(TRIM(subject))=LOWER(TRIM($1))`
		args = append(args, subject)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []exam.Question
	for rows.Next() {
		var item exam.Question
		var typ, oj string
		if err := rows.Scan(&item.ID, &item.Text, &item.Subject, &typ, &oj, &item.Points, &item.AuthorID); err != nil {
			return nil, err
		}
		item.Type = exam.QuestionType(typ)
		if err := json.Unmarshal([]byte(oj), &item.Options); err != nil {
			continue // skip a corrupt row rather than failing the whole bank
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// --- exams ---

func (s *SQLStore) PutExam(ctx context.Context, e exam.Exam) error {
	ij, err := json.Marshal(e.QuestionIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exams (id,title,subject,duration_min,scheduled_at,question_ids_json,published,author_id)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, subject=EXCLUDED.subject,
		   duration_min=EXCLUDED.duration_min, scheduled_at=EXCLUDED.scheduled_at,
		   question_ids_json=EXCLUDED.question_ids_json, published=EXCLUDED.published,
		   author_id=EXCLUDED.author_id`,
		e.ID, e.Title, e.Subject, e.Duration, e.ScheduledAt.Unix(), string(ij), e.Published, e.AuthorID)
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (exam.Exam, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,title,subject,duration_min,scheduled_at,question_ids_json,published,author_id
		 FROM exams WHERE id=$1`, id)
	e, err := scanExam(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return exam.Exam{}, ErrNotFound
	}
	return e, err
}

func (s *SQLStore) ListExams(ctx context.Context, authorID string) ([]exam.Exam, error) {
	q := `SELECT id,title,subject,duration_min,scheduled_at,question_ids_json,published,author_id
	      FROM exams ORDER BY scheduled_at`
	args := []any{}
	if authorID != "" {
		q = `SELECT id,title,subject,duration_min,scheduled_at,question_ids_json,published,author_id
		     FROM exams WHERE author_id=$1 ORDER BY scheduled_at`
		args = append(args, authorID)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []exam.Exam
	for rows.Next() {
		e, err := scanExam(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanExam(scan func(...any) error) (exam.Exam, error) {
	var e exam.Exam
	var scheduled int64
	var ij string
	if err := scan(&e.ID, &e.Title, &e.Subject, &e.Duration, &scheduled, &ij, &e.Published, &e.AuthorID); err != nil {
		return exam.Exam{}, err
	}
	e.ScheduledAt = time.Unix(scheduled, 0).UTC()
	if err := json.Unmarshal([]byte(ij), &e.QuestionIDs); err != nil {
		return exam.Exam{}, fmt.Errorf("decode question ids for exam %s: %w", e.ID, err)
	}
	return e, nil
}

func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// --- submissions ---

func (s *SQLStore) CreateSubmission(ctx context.Context, sub exam.Submission) error {
	aj, err := json.Marshal(sub.Answers)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions
		   (id,exam_id,student_id,student_name,answers_json,submitted_at,time_spent,
		    tab_switch_count,score,total_score,percentage,exam_title)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 ON CONFLICT (exam_id, student_id) DO NOTHING`,
		sub.ID, sub.ExamID, sub.StudentID, sub.StudentName, string(aj), sub.SubmittedAt.Unix(),
		sub.TimeSpent, sub.TabSwitchCount, sub.ScoreData.Score, sub.ScoreData.TotalPossibleScore,
		sub.ScoreData.Percentage, sub.ExamTitle)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicateSubmission
	}
	return nil
}

const submissionCols = `id,exam_id,student_id,student_name,answers_json,submitted_at,time_spent,
	tab_switch_count,score,total_score,percentage,exam_title`

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (exam.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+submissionCols+` FROM submissions WHERE id=$1`, id)
	sub, err := scanSubmission(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return exam.Submission{}, ErrNotFound
	}
	return sub, err
}

func (s *SQLStore) FindSubmission(ctx context.Context, examID, studentID string) (exam.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+submissionCols+` FROM submissions WHERE exam_id=$1 AND student_id=$2`, examID, studentID)
	sub, err := scanSubmission(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return exam.Submission{}, ErrNotFound
	}
	return sub, err
}

func (s *SQLStore) ListSubmissionsByExams(ctx context.Context, examIDs []string) ([]exam.Submission, error) {
	if len(examIDs) == 0 {
		return nil, nil
	}
	ph := make([]string, len(examIDs))
	args := make([]any, len(examIDs))
	for i, id := range examIDs {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionCols+` FROM submissions WHERE exam_id IN (`+strings.Join(ph, ",")+`)
		 ORDER BY submitted_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubmissions(rows)
}

func (s *SQLStore) ListSubmissionsByStudent(ctx context.Context, studentID string) ([]exam.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionCols+` FROM submissions WHERE student_id=$1 ORDER BY submitted_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubmissions(rows)
}

func collectSubmissions(rows *sql.Rows) ([]exam.Submission, error) {
	var out []exam.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func scanSubmission(scan func(...any) error) (exam.Submission, error) {
	var sub exam.Submission
	var aj string
	var submitted int64
	if err := scan(&sub.ID, &sub.ExamID, &sub.StudentID, &sub.StudentName, &aj, &submitted,
		&sub.TimeSpent, &sub.TabSwitchCount, &sub.ScoreData.Score,
		&sub.ScoreData.TotalPossibleScore, &sub.ScoreData.Percentage, &sub.ExamTitle); err != nil {
		return exam.Submission{}, err
	}
	sub.SubmittedAt = time.Unix(submitted, 0).UTC()
	if err := json.Unmarshal([]byte(aj), &sub.Answers); err != nil {
		sub.Answers = map[string]any{}
	}
	return sub, nil
}

// --- helpers ---

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres
}
