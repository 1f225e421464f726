package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/quiztab/internal/rbac"
)

var ErrBadCredentials = errors.New("invalid credentials")

// LocalUser is one configured login. Hash is a bcrypt hash.
type LocalUser struct {
	Name string
	Role string
	Hash string
}

// ParseLocalUsers reads "user:role:bcrypt-hash" entries.
func ParseLocalUsers(entries []string) ([]LocalUser, error) {
	out := make([]LocalUser, 0, len(entries))
	for _, e := range entries {
		parts := strings.SplitN(e, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("local user %q: want user:role:hash", strings.SplitN(e, ":", 2)[0])
		}
		out = append(out, LocalUser{Name: parts[0], Role: parts[1], Hash: parts[2]})
	}
	return out, nil
}

type AuthService struct {
	hmac  []byte
	ttl   time.Duration
	users map[string]LocalUser
	now   func() time.Time
}

func NewAuthService(secret string, users []LocalUser) *AuthService {
	m := make(map[string]LocalUser, len(users))
	for _, u := range users {
		m[u.Name] = u
	}
	return &AuthService{hmac: []byte(secret), ttl: 8 * time.Hour, users: m, now: time.Now}
}

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"` // learner|author|admin
	jwt.RegisteredClaims
}

func (a *AuthService) IssueJWT(sub, role string) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.ttl)
	claims := &Claims{
		Sub:  sub,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "quiztab",
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(a.hmac)
	return s, exp, err
}

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.Sub == "" {
		return nil, errors.New("invalid token claims")
	}
	return c, nil
}

// Login checks a password against the configured users and issues a token.
func (a *AuthService) Login(username, password string) (string, LocalUser, time.Time, error) {
	u, ok := a.users[username]
	if !ok {
		return "", LocalUser{}, time.Time{}, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return "", LocalUser{}, time.Time{}, ErrBadCredentials
	}
	tok, exp, err := a.IssueJWT(u.Name, u.Role)
	return tok, u, exp, err
}

// LoginResponse is the body of a successful POST /auth/login.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	User        string    `json:"user"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// POST /auth/login  { "username": "...", "password": "..." }
func LoginHandler(a *AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		tok, u, exp, err := a.Login(req.Username, req.Password)
		if errors.Is(err, ErrBadCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(LoginResponse{AccessToken: tok, User: u.Name, Role: u.Role, ExpiresAt: exp})
	}
}

// JWTMiddleware verifies the bearer token and puts subject and role in the context.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
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

type ctxKey string

const ctxKeySub ctxKey = "sub"

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySub, sub)
}

func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeySub).(string)
	return s
}
