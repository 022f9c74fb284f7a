package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	authmw "github.com/damitheswitch/exam-master/internal/auth/middleware"
	"github.com/damitheswitch/exam-master/internal/exam"
	"github.com/damitheswitch/exam-master/internal/store"
)

type tokenPair struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	User         map[string]any `json:"user"`
}

func issuePair(a *authmw.AuthService, u exam.User) (tokenPair, error) {
	access, err := a.IssueAccess(u.ID, string(u.Role), u.Name)
	if err != nil {
		return tokenPair{}, err
	}
	refresh, err := a.IssueRefresh(u.ID, string(u.Role), u.Name)
	if err != nil {
		return tokenPair{}, err
	}
	return tokenPair{AccessToken: access, RefreshToken: refresh, User: u.Public()}, nil
}

// POST /api/auth/register  { "name", "email", "password", "role" }
// Self-service registration covers students and teachers; admin accounts
// are created by admins through the users API.
func RegisterHandler(users store.UserStore, a *authmw.AuthService) http.HandlerFunc {
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
		role := exam.Role(req.Role)
		if role == "" {
			role = exam.RoleStudent
		}
		if role != exam.RoleStudent && role != exam.RoleTeacher {
			http.Error(w, "role must be student or teacher", http.StatusBadRequest)
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
			Role:         role,
			CreatedAt:    time.Now().Unix(),
		}
		if err := users.PutUser(r.Context(), u); err != nil {
			writeDomainErr(w, err)
			return
		}
		pair, err := issuePair(a, u)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, pair)
	}
}

// POST /api/auth/login  { "email", "password" }
func LoginHandler(users store.UserStore, a *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		u, err := users.GetUserByEmail(r.Context(), strings.TrimSpace(req.Email))
		if errors.Is(err, store.ErrNotFound) || (err == nil && !authmw.CheckPassword(u.PasswordHash, req.Password)) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		pair, err := issuePair(a, u)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(pair)
	}
}

// POST /api/auth/refresh  { "refreshToken" }
func RefreshHandler(users store.UserStore, a *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		c, err := a.ParseRefresh(req.RefreshToken)
		if err != nil {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		// Re-read the user so a revoked account or changed role can't ride
		// an old refresh token.
		u, err := users.GetUser(r.Context(), c.Sub)
		if err != nil {
			http.Error(w, "account no longer exists", http.StatusUnauthorized)
			return
		}
		pair, err := issuePair(a, u)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(pair)
	}
}

// GET /api/profile
func ProfileHandler(users store.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := users.GetUser(r.Context(), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(u.Public())
	}
}

// PUT /api/profile  { "name", "email", "currentPassword", "newPassword" }
// Changing the password requires the current one; name and email do not.
func UpdateProfileHandler(users store.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name            string `json:"name"`
			Email           string `json:"email"`
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		u, err := users.GetUser(r.Context(), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		if name := strings.TrimSpace(req.Name); name != "" {
			u.Name = name
		}
		if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
			u.Email = email
		}
		if req.NewPassword != "" {
			if !authmw.CheckPassword(u.PasswordHash, req.CurrentPassword) {
				http.Error(w, "current password is wrong", http.StatusForbidden)
				return
			}
			if len(req.NewPassword) < 6 {
				http.Error(w, "password must be at least 6 characters", http.StatusBadRequest)
				return
			}
			hash, err := authmw.HashPassword(req.NewPassword)
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

// POST /api/auth/password-reset  { "email" }
// There is no mailer: when the account exists the short-lived reset token
// comes back in the 202 body for out-of-band delivery. Unknown emails still
// get a bare 202.
func PasswordResetHandler(users store.UserStore, a *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		resp := map[string]string{"status": "accepted"}
		if u, err := users.GetUserByEmail(r.Context(), strings.TrimSpace(req.Email)); err == nil {
			if tok, err := a.IssueReset(u.ID); err == nil {
				resp["resetToken"] = tok
			}
		}
		writeJSON(w, http.StatusAccepted, resp)
	}
}

// POST /api/auth/password-reset/confirm  { "token", "newPassword" }
func PasswordResetConfirmHandler(users store.UserStore, a *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token       string `json:"token"`
			NewPassword string `json:"newPassword"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		c, err := a.ParseReset(req.Token)
		if err != nil {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		if len(req.NewPassword) < 6 {
			http.Error(w, "password must be at least 6 characters", http.StatusBadRequest)
			return
		}
		u, err := users.GetUser(r.Context(), c.Sub)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		hash, err := authmw.HashPassword(req.NewPassword)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		u.PasswordHash = hash
		if err := users.PutUser(r.Context(), u); err != nil {
			writeDomainErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
