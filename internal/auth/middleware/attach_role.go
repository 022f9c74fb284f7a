package auth

import (
	"errors"
	"net/http"

	"github.com/damitheswitch/exam-master/internal/rbac"
	"github.com/damitheswitch/exam-master/internal/store"
)

// AttachRoleFromStore replaces the token's claimed role with the role on
// record, so a role change takes effect without waiting for tokens to
// expire. A user deleted since the token was issued is rejected here.
func AttachRoleFromStore(users store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)
			u, err := users.GetUser(ctx, sub)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, string(u.Role))))
			case errors.Is(err, store.ErrNotFound):
				http.Error(w, "account no longer exists", http.StatusUnauthorized)
			default:
				http.Error(w, "lookup user", http.StatusInternalServerError)
			}
		})
	}
}
