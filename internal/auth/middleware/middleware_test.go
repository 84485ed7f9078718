package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-headlessquiz/internal/engine"
	"github.com/mind-engage/mindengage-headlessquiz/internal/quiz"
	"github.com/mind-engage/mindengage-headlessquiz/internal/rbac"
)

type fakeCreds map[string]engine.Credentials

func (f fakeCreds) Credentials(_ context.Context, username string) (engine.Credentials, error) {
	c, ok := f[username]
	if !ok {
		return engine.Credentials{}, quiz.ErrNotFound
	}
	return c, nil
}

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("secret", time.Minute)
	tok, err := a.IssueJWT("5", "student")
	require.NoError(t, err)

	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "5", c.Sub)
	assert.Equal(t, "student", c.Role)

	_, err = NewAuthService("other", time.Minute).Parse(tok)
	assert.Error(t, err)
}

func TestParseExpired(t *testing.T) {
	a := NewAuthService("secret", time.Minute)
	tok, err := a.IssueJWT("5", "student")
	require.NoError(t, err)

	a.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = a.Parse(tok)
	assert.Error(t, err)
}

func TestTokenHandler(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	store := fakeCreds{"alice": {UserID: 5, PasswordHash: hashed(t, "pw"), Role: "student"}}
	h := TokenHandler(a, store)

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	c, err := a.Parse(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "5", c.Sub)

	assert.Equal(t, http.StatusUnauthorized, post(`{"username":"alice","password":"nope"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, post(`{"username":"bob","password":"pw"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"username":"alice"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{`).Code)
}

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	var gotID int64
	var gotRole string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = UserIDFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
	}))

	tok, err := a.IssueJWT("7", "manager")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), gotID)
	assert.Equal(t, "manager", gotRole)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserIDFromContext(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)
	_, ok = UserIDFromContext(WithSubject(context.Background(), "abc"))
	assert.False(t, ok)
	id, ok := UserIDFromContext(WithSubject(context.Background(), "12"))
	assert.True(t, ok)
	assert.Equal(t, int64(12), id)
}
