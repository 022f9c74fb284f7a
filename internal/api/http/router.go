package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	authmw "github.com/damitheswitch/exam-master/internal/auth/middleware"
	"github.com/damitheswitch/exam-master/internal/rbac"
	"github.com/damitheswitch/exam-master/internal/report"
	"github.com/damitheswitch/exam-master/internal/session"
	"github.com/damitheswitch/exam-master/internal/store"
)

// Deps bundles what the router needs.
type Deps struct {
	Store       store.Store
	Sessions    *session.Manager
	Auth        *authmw.AuthService
	Reports     *report.Service
	CORSOrigins []string
	Ready       func() error
}

// NewRouter builds the full API surface. Public auth endpoints and health
// probes sit outside the JWT gate; everything else requires a bearer token
// and a role-appropriate permission.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", RegisterHandler(d.Store, d.Auth))
			r.Post("/login", LoginHandler(d.Store, d.Auth))
			r.Post("/refresh", RefreshHandler(d.Store, d.Auth))
			r.Post("/password-reset", PasswordResetHandler(d.Store, d.Auth))
			r.Post("/password-reset/confirm", PasswordResetConfirmHandler(d.Store, d.Auth))
		})

		r.Group(func(r chi.Router) {
			r.Use(authmw.JWTMiddleware(d.Auth))
			r.Use(authmw.AttachRoleFromStore(d.Store))

			r.Get("/profile", ProfileHandler(d.Store))
			r.With(rbac.Require("profile:update")).Put("/profile", UpdateProfileHandler(d.Store))

			r.Route("/questions", func(r chi.Router) {
				r.Use(rbac.Require("question:manage"))
				r.Get("/", ListQuestionsHandler(d.Store))
				r.Post("/", CreateQuestionHandler(d.Store))
				r.Get("/random", RandomQuestionsHandler(d.Store))
				r.Get("/{id}", GetQuestionHandler(d.Store))
				r.Put("/{id}", UpdateQuestionHandler(d.Store))
				r.Delete("/{id}", DeleteQuestionHandler(d.Store))
			})

			r.Route("/exams", func(r chi.Router) {
				r.With(rbac.Require("exam:list-available")).Get("/available", AvailableExamsHandler(d.Store, d.Store))
				r.With(rbac.Require("exam:take")).Post("/take/{id}", TakeExamHandler(d.Sessions, d.Store))

				r.Group(func(r chi.Router) {
					r.Use(rbac.Require("exam:manage"))
					r.Get("/", ListExamsHandler(d.Store))
					r.Post("/", CreateExamHandler(d.Store, d.Store))
					r.Get("/{id}", GetExamHandler(d.Store))
					r.Put("/{id}", UpdateExamHandler(d.Store, d.Store))
					r.Delete("/{id}", DeleteExamHandler(d.Store, d.Sessions))
					r.Post("/{id}/publish", PublishExamHandler(d.Store))
					r.Post("/{id}/unpublish", UnpublishExamHandler(d.Store))
					r.Post("/{id}/questions/random", RandomizeExamQuestionsHandler(d.Store, d.Store))
				})
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Use(rbac.Require("session:interact"))
				r.Get("/{id}", GetSessionHandler(d.Sessions))
				r.Post("/{id}/answer", AnswerHandler(d.Sessions))
				r.Post("/{id}/visibility", VisibilityHandler(d.Sessions))
				r.Post("/{id}/submit", SubmitHandler(d.Sessions))
			})

			r.Route("/submissions", func(r chi.Router) {
				r.With(rbac.Require("submission:view-all")).Get("/", ExamSubmissionsHandler(d.Store, d.Store))
				r.With(rbac.Require("submission:view-own")).Get("/my-results", MyResultsHandler(d.Store))
				r.With(rbac.RequireAny("submission:view-own", "submission:view-all")).
					Get("/result/{id}", ResultHandler(d.Store, d.Store))
			})

			r.With(rbac.Require("performance:view")).Get("/performance/summary", PerformanceSummaryHandler(d.Reports))

			r.Route("/users", func(r chi.Router) {
				r.Use(rbac.Require("user:manage"))
				r.Get("/", ListUsersHandler(d.Store))
				r.Post("/", CreateUserHandler(d.Store))
				r.Put("/{id}", UpdateUserHandler(d.Store))
				r.Delete("/{id}", DeleteUserHandler(d.Store))
			})
		})
	})

	return r
}
