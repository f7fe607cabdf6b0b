package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/strokecare/records/internal/platform/auth"
)

func postJSON(e *echo.Echo, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	return httpErr.Code
}

func TestHandler_Register(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)
	e := echo.New()

	c, rec := postJSON(e, "/api/v1/auth/register",
		`{"email":"carol@example.com","password":"correct-horse","full_name":"Carol","role":"admin"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response must not contain the password hash")
	}
	if env.users.users["carol@example.com"].Role != auth.RoleUser {
		t.Error("public registration must not grant admin")
	}

	c, _ = postJSON(e, "/api/v1/auth/register",
		`{"email":"carol@example.com","password":"correct-horse","full_name":"Carol"}`)
	if code := httpCode(t, h.Register(c)); code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate, got %d", code)
	}

	c, _ = postJSON(e, "/api/v1/auth/register", `{"email":"bad","password":"correct-horse","full_name":"X"}`)
	if code := httpCode(t, h.Register(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid email, got %d", code)
	}
}

func TestHandler_LoginLogout(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)
	e := echo.New()
	env.svc.Register(context.Background(), RegisterInput{Email: "dan@example.com", Password: "correct-horse", FullName: "Dan"})

	c, _ := postJSON(e, "/api/v1/auth/login", `{"email":"dan@example.com","password":"wrong-horse"}`)
	if code := httpCode(t, h.Login(c)); code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}

	c, rec := postJSON(e, "/api/v1/auth/login", `{"email":"dan@example.com","password":"correct-horse"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res LoginResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Token == "" || res.SessionID == "" {
		t.Fatalf("expected token and session, got %+v", res)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(auth.WithUser(req.Context(), "dan@example.com", []string{auth.RoleUser}, res.SessionID))
	rec = httptest.NewRecorder()
	if err := h.Logout(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_LogoutWithoutSession(t *testing.T) {
	h := NewHandler(newTestEnv(t).svc)
	e := echo.New()
	c, _ := postJSON(e, "/api/v1/auth/logout", "")
	if code := httpCode(t, h.Logout(c)); code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}
