package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/quiztab/internal/rbac"
)

func newService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	users, err := ParseLocalUsers([]string{"ana:learner:" + string(hash)})
	require.NoError(t, err)
	return NewAuthService("test-secret", users)
}

func TestParseLocalUsers(t *testing.T) {
	users, err := ParseLocalUsers([]string{"ana:author:$2a$04$abc:def"})
	require.NoError(t, err)
	assert.Equal(t, LocalUser{Name: "ana", Role: "author", Hash: "$2a$04$abc:def"}, users[0])

	_, err = ParseLocalUsers([]string{"ana:author"})
	assert.Error(t, err)
}

func TestLoginHandler(t *testing.T) {
	a := newService(t)
	h := LoginHandler(a)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"ana","password":"pw"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var out LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "learner", out.Role)

	c, err := a.Parse(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ana", c.Sub)

	for _, body := range []string{`{"username":"ana","password":"nope"}`, `{"username":"bob","password":"pw"}`} {
		rec = httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, body)
	}
}

func TestJWTMiddleware(t *testing.T) {
	a := newService(t)
	tok, _, err := a.IssueJWT("ana", "author")
	require.NoError(t, err)

	var sub, role string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub = SubjectFromContext(r.Context())
		role = rbac.RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ana", sub)
	assert.Equal(t, "author", role)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := NewAuthService("other-secret", nil)
	forged, _, err := other.IssueJWT("ana", "admin")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExpiredToken(t *testing.T) {
	a := newService(t)
	a.now = func() time.Time { return time.Now().Add(-9 * time.Hour) }
	tok, _, err := a.IssueJWT("ana", "learner")
	require.NoError(t, err)
	a.now = time.Now
	_, err = a.Parse(tok)
	assert.Error(t, err)
}
