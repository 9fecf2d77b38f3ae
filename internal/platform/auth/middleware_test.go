package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rme/rme/internal/platform/db"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestIssueAndParseToken(t *testing.T) {
	userID := uuid.New()
	tenantID := uuid.New()

	tok, err := IssueToken(testSecret, time.Hour, userID, tenantID, "drwho", "DOCTOR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := ParseToken(testSecret, tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != userID.String() {
		t.Errorf("expected subject %s, got %s", userID, claims.Subject)
	}
	if claims.TenantID != tenantID.String() {
		t.Errorf("expected tenant %s, got %s", tenantID, claims.TenantID)
	}
	if claims.Role != "DOCTOR" || claims.Username != "drwho" {
		t.Errorf("unexpected claims: role=%s username=%s", claims.Role, claims.Username)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	tok, _ := IssueToken(testSecret, time.Hour, uuid.New(), uuid.New(), "u", "STAFF")
	if _, err := ParseToken([]byte("another-secret-another-secret-xx"), tok); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	tok, _ := IssueToken(testSecret, -time.Minute, uuid.New(), uuid.New(), "u", "STAFF")
	if _, err := ParseToken(testSecret, tok); err == nil {
		t.Error("expected error for expired token")
	}
}

func newAuthedContext(t *testing.T, token string, tenantID uuid.UUID) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if tenantID != uuid.Nil {
		ctx := context.WithValue(req.Context(), db.TenantIDKey, tenantID)
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	tok, _ := IssueToken(testSecret, time.Hour, userID, tenantID, "nurse1", "NURSE")

	c, _ := newAuthedContext(t, tok, tenantID)

	var gotUser, gotRole string
	handler := JWTMiddleware(testSecret, nil)(func(c echo.Context) error {
		gotUser = UserIDFromContext(c.Request().Context())
		gotRole = RoleFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUser != userID.String() {
		t.Errorf("expected user %s, got %s", userID, gotUser)
	}
	if gotRole != "NURSE" {
		t.Errorf("expected role NURSE, got %s", gotRole)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	c, _ := newAuthedContext(t, "", uuid.Nil)
	handler := JWTMiddleware(testSecret, nil)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_TenantMismatch(t *testing.T) {
	tok, _ := IssueToken(testSecret, time.Hour, uuid.New(), uuid.New(), "u1", "ADMIN")

	c, _ := newAuthedContext(t, tok, uuid.New()) // different tenant resolved

	handler := JWTMiddleware(testSecret, nil)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403 for cross-tenant token, got %v", err)
	}
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	c, _ := newAuthedContext(t, "", uuid.Nil)
	called := false
	handler := JWTMiddleware(testSecret, func(echo.Context) bool { return true })(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected skipped request to reach handler")
	}
}

func withRole(role string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRoleKey, role)
	req = req.WithContext(ctx)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestRequireRole_Allowed(t *testing.T) {
	c := withRole("DOCTOR")
	handler := RequireRole("DOCTOR", "NURSE")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c := withRole("CASHIER")
	handler := RequireRole("DOCTOR", "NURSE")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestRequireRole_SuperadminBypass(t *testing.T) {
	c := withRole(RoleSuperadmin)
	handler := RequireRole("DOCTOR")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Errorf("expected superadmin to pass, got %v", err)
	}
}
