package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/damitheswitch/exam-master/internal/rbac"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenTypeReset   = "reset"
)

// AuthService signs and verifies the HMAC tokens the API runs on: short
// access tokens, longer refresh tokens, and single-purpose reset tokens.
type AuthService struct {
	hmac       []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(secret string, accessTTL, refreshTTL time.Duration) *AuthService {
	if accessTTL <= 0 {
		accessTTL = 8 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &AuthService{hmac: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

type Claims struct {
	Sub       string `json:"sub"`
	Role      string `json:"role"`
	Name      string `json:"name,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

func (a *AuthService) issue(sub, role, name, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub:       sub,
		Role:      role,
		Name:      name,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "exam-master",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

func (a *AuthService) IssueAccess(sub, role, name string) (string, error) {
	return a.issue(sub, role, name, tokenTypeAccess, a.accessTTL)
}

func (a *AuthService) IssueRefresh(sub, role, name string) (string, error) {
	return a.issue(sub, role, name, tokenTypeRefresh, a.refreshTTL)
}

// IssueReset mints a short-lived token good only for completing a password
// reset.
func (a *AuthService) IssueReset(sub string) (string, error) {
	return a.issue(sub, "", "", tokenTypeReset, 15*time.Minute)
}

func (a *AuthService) parse(tokenStr, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.hmac, nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if c.TokenType != wantType {
		return nil, fmt.Errorf("token is not a %s token", wantType)
	}
	return c, nil
}

func (a *AuthService) ParseAccess(tokenStr string) (*Claims, error) {
	return a.parse(tokenStr, tokenTypeAccess)
}

func (a *AuthService) ParseRefresh(tokenStr string) (*Claims, error) {
	return a.parse(tokenStr, tokenTypeRefresh)
}

func (a *AuthService) ParseReset(tokenStr string) (*Claims, error) {
	return a.parse(tokenStr, tokenTypeReset)
}

// JWTMiddleware authenticates requests by bearer token and stashes the
// subject and claimed role in the request context. The role may still be
// overridden downstream by AttachRoleFromStore.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := a.ParseAccess(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ctx := WithSubject(r.Context(), c.Sub)
			ctx = rbac.WithRole(ctx, c.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
