package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tdewolff/test"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T, key string) *Service {
	t.Helper()
	if key == "" {
		return NewService("", "secret")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	test.Error(t, err)
	return NewService(string(hash), "secret")
}

func TestIssueAndValidate(t *testing.T) {
	s := newService(t, "letmein")
	test.T(t, s.Enabled(), true)

	_, err := s.IssueToken("wrong")
	test.That(t, errors.Is(err, ErrInvalidCredentials))

	res, err := s.IssueToken("letmein")
	test.Error(t, err)
	subject, err := s.ValidateToken(res.Token)
	test.Error(t, err)
	test.T(t, subject, Subject)

	_, err = NewService("", "other").ValidateToken(res.Token)
	test.That(t, errors.Is(err, ErrInvalidToken))

	s.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = s.ValidateToken(res.Token)
	test.That(t, errors.Is(err, ErrInvalidToken), "expired token accepted")
}

func TestDisabledAuth(t *testing.T) {
	s := newService(t, "")
	test.T(t, s.Enabled(), false)
	subject, err := s.Authorize("")
	test.Error(t, err)
	test.T(t, subject, AnonymousSubject)

	var seen string
	h := s.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SubjectFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	test.T(t, seen, AnonymousSubject)
}

func TestMiddleware(t *testing.T) {
	s := newService(t, "letmein")
	res, err := s.IssueToken("letmein")
	test.Error(t, err)

	h := s.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(SubjectFromContext(r.Context())))
	}))
	for _, tt := range []struct {
		header string
		code   int
	}{
		{"", http.StatusUnauthorized},
		{"Token abc", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Bearer " + res.Token, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		test.T(t, rec.Code, tt.code, tt.header)
	}

	_, err = s.Authorize("")
	test.That(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenHandler(t *testing.T) {
	h := NewHandler(newService(t, "letmein"))
	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Token(rec, httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewBufferString(body)))
		return rec
	}

	test.T(t, post(`{`).Code, http.StatusBadRequest)
	test.T(t, post(`{}`).Code, http.StatusBadRequest)
	test.T(t, post(`{"apiKey":"nope"}`).Code, http.StatusUnauthorized)

	rec := post(`{"apiKey":"letmein"}`)
	test.T(t, rec.Code, http.StatusOK)
	var res AuthResult
	test.Error(t, json.NewDecoder(rec.Body).Decode(&res))
	test.That(t, res.Token != "")
	test.That(t, res.ExpiresAt > time.Now().UnixMilli())
}
