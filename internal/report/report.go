package report

import (
	"context"
	"math"
	"sort"

	"github.com/damitheswitch/exam-master/internal/exam"
	"github.com/damitheswitch/exam-master/internal/store"
)

// passThreshold is the percentage at or above which an attempt counts as a
// pass in the summary.
const passThreshold = 60

// Summary aggregates submissions for a teacher's dashboard.
type Summary struct {
	TotalSubmissions   int     `json:"totalSubmissions"`
	AverageScore       int     `json:"averageScore"`       // mean percentage, rounded
	PassRate           int     `json:"passRate"`           // percent of attempts at or above threshold, rounded
	AverageTabSwitches float64 `json:"averageTabSwitches"` // rounded to one decimal
}

// Summarize computes the dashboard numbers from a set of submissions. An
// empty set yields all zeros rather than NaN.
func Summarize(subs []exam.Submission) Summary {
	s := Summary{TotalSubmissions: len(subs)}
	if len(subs) == 0 {
		return s
	}
	var pctSum, passed, switches int
	for _, sub := range subs {
		pct := sub.ScoreData.Percentage
		pctSum += pct
		if pct >= passThreshold {
			passed++
		}
		switches += sub.TabSwitchCount
	}
	n := float64(len(subs))
	s.AverageScore = int(math.Round(float64(pctSum) / n))
	s.PassRate = int(math.Round(100 * float64(passed) / n))
	s.AverageTabSwitches = math.Round(10*float64(switches)/n) / 10
	return s
}

// Service answers performance queries, scoped to what the caller may see.
type Service struct {
	exams store.ExamStore
	subs  store.SubmissionStore
}

func NewService(exams store.ExamStore, subs store.SubmissionStore) *Service {
	return &Service{exams: exams, subs: subs}
}

// Overview is the full performance page payload: the aggregate numbers plus
// the underlying submissions, newest first.
type Overview struct {
	Summary     Summary           `json:"summary"`
	Submissions []exam.Submission `json:"submissions"`
}

// ForAuthor reports on submissions to exams the given teacher authored.
// Admins pass an empty authorID and see everything.
func (s *Service) ForAuthor(ctx context.Context, authorID string) (Overview, error) {
	exams, err := s.exams.ListExams(ctx, authorID)
	if err != nil {
		return Overview{}, err
	}
	ids := make([]string, len(exams))
	titles := make(map[string]string, len(exams))
	for i, e := range exams {
		ids[i] = e.ID
		titles[e.ID] = e.Title
	}
	subs, err := s.subs.ListSubmissionsByExams(ctx, ids)
	if err != nil {
		return Overview{}, err
	}
	for i := range subs {
		if subs[i].ExamTitle == "" {
			subs[i].ExamTitle = titles[subs[i].ExamID]
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].SubmittedAt.After(subs[j].SubmittedAt)
	})
	if subs == nil {
		subs = []exam.Submission{}
	}
	return Overview{Summary: Summarize(subs), Submissions: subs}, nil
}
