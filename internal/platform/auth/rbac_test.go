package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func withRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(WithUser(context.Background(), "u", roles, "")))
			return next(c)
		}
	}
}

func chain(mws ...echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

func TestRequireRole_Allowed(t *testing.T) {
	_, err := runMiddleware(t, chain(withRoles(RoleUser), RequireRole(RoleUser)), "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	_, err := runMiddleware(t, chain(withRoles(RoleUser), RequireRole(RoleAdmin)), "", nil)
	expectStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_NoIdentity(t *testing.T) {
	_, err := runMiddleware(t, RequireRole(RoleUser), "", nil)
	expectStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_AdminBypass(t *testing.T) {
	_, err := runMiddleware(t, chain(withRoles(RoleAdmin), RequireRole("auditor")), "", nil)
	if err != nil {
		t.Fatalf("expected admin to pass, got %v", err)
	}
}

func TestValidRole(t *testing.T) {
	for role, want := range map[string]bool{"user": true, "admin": true, "root": false, "": false} {
		if got := ValidRole(role); got != want {
			t.Errorf("ValidRole(%q) = %v, want %v", role, got, want)
		}
	}
}
