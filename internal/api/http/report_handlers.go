package http

import (
	"encoding/json"
	"net/http"

	authmw "github.com/damitheswitch/exam-master/internal/auth/middleware"
	"github.com/damitheswitch/exam-master/internal/rbac"
	"github.com/damitheswitch/exam-master/internal/report"
)

// GET /api/performance/summary
// Teachers see stats for exams they authored; admins see everything.
func PerformanceSummaryHandler(svc *report.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorID := authmw.SubjectFromContext(r.Context())
		if rbac.Allowed(rbac.RoleFromContext(r.Context()), "user:manage") {
			authorID = ""
		}
		overview, err := svc.ForAuthor(r.Context(), authorID)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(overview)
	}
}
