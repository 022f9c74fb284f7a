package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/damitheswitch/exam-master/internal/auth/middleware"
	"github.com/damitheswitch/exam-master/internal/exam"
	"github.com/damitheswitch/exam-master/internal/store"
)

// GET /api/users?role=
func ListUsersHandler(users store.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.ListUsers(r.Context(), exam.Role(r.URL.Query().Get("role")))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		out := make([]map[string]any, 0, len(list))
		for _, u := range list {
			out = append(out, u.Public())
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

// POST /api/users
// Admin-created accounts; unlike self-registration, any role is allowed.
func CreateUserHandler(users store.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if req.Name == "" || req.Email == "" || len(req.Password) < 6 {
			http.Error(w, "name, email and a password of at least 6 characters are required", http.StatusBadRequest)
			return
		}
		if !exam.ValidRole(exam.Role(req.Role)) {
			http.Error(w, "unknown role", http.StatusBadRequest)
			return
		}
		hash, err := authmw.HashPassword(req.Password)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		u := exam.User{
			ID:           uuid.NewString(),
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: hash,
			Role:         exam.Role(req.Role),
			CreatedAt:    time.Now().Unix(),
		}
		if err := users.PutUser(r.Context(), u); err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, u.Public())
	}
}

// PUT /api/users/{id}
// Name, email, role, and optionally a new password.
func UpdateUserHandler(users store.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := users.GetUser(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		var req struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Role     string `json:"role"`
			Password string `json:"password"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if name := strings.TrimSpace(req.Name); name != "" {
			u.Name = name
		}
		if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
			u.Email = email
		}
		if req.Role != "" {
			if !exam.ValidRole(exam.Role(req.Role)) {
				http.Error(w, "unknown role", http.StatusBadRequest)
				return
			}
			u.Role = exam.Role(req.Role)
		}
		if req.Password != "" {
			if len(req.Password) < 6 {
				http.Error(w, "password must be at least 6 characters", http.StatusBadRequest)
				return
			}
			hash, err := authmw.HashPassword(req.Password)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			u.PasswordHash = hash
		}
		if err := users.PutUser(r.Context(), u); err != nil {
			writeDomainErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(u.Public())
	}
}

// DELETE /api/users/{id}
// Admins cannot delete their own account; that path locks everyone out.
func DeleteUserHandler(users store.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == authmw.SubjectFromContext(r.Context()) {
			http.Error(w, "cannot delete your own account", http.StatusForbidden)
			return
		}
		if err := users.DeleteUser(r.Context(), id); err != nil {
			writeDomainErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
