package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dj-request-booking/internal/model"
	"github.com/iliyamo/dj-request-booking/internal/utils"
)

const testSecret = "test-secret"

func run(t *testing.T, mw echo.MiddlewareFunc, req *http.Request, inner echo.HandlerFunc) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := mw(inner)(c); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}
	return rec, c
}

func TestJWTAuthRoundTrip(t *testing.T) {
	access, err := utils.NewAccessToken(testSecret, 42, "djnova", model.RoleDJ, 5)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+access.Token)

	called := false
	_, c := run(t, JWTAuth(testSecret), req, func(c echo.Context) error {
		called = true
		return nil
	})
	if !called {
		t.Fatal("handler not reached with valid token")
	}
	if UserID(c) != 42 {
		t.Fatalf("user id = %d, want 42", UserID(c))
	}
	if Username(c) != "djnova" {
		t.Fatalf("username = %q, want djnova", Username(c))
	}
	if role, _ := c.Get("role").(string); role != model.RoleDJ {
		t.Fatalf("role = %q, want DJ", role)
	}
}

func TestJWTAuthRejectsBadTokens(t *testing.T) {
	cases := map[string]string{
		"missing header": "",
		"garbage":        "Bearer not-a-jwt",
		"wrong secret":   "", // filled below
	}
	wrong, err := utils.NewAccessToken("other-secret", 1, "x", model.RoleDJ, 5)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	cases["wrong secret"] = "Bearer " + wrong.Token

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec, _ := run(t, JWTAuth(testSecret), req, func(echo.Context) error {
				t.Fatal("handler reached with invalid token")
				return nil
			})
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()

	check := func(role string, wantCode int) {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if role != "" {
			c.Set("role", role)
		}
		handlerCode := http.StatusOK
		err := RequireRole(model.RoleDJ)(func(c echo.Context) error {
			return c.NoContent(handlerCode)
		})(c)
		if err != nil {
			t.Fatalf("middleware error: %v", err)
		}
		if rec.Code != wantCode {
			t.Fatalf("role %q: status = %d, want %d", role, rec.Code, wantCode)
		}
	}

	check(model.RoleDJ, http.StatusOK)
	check(model.RoleAssistant, http.StatusForbidden)
	check("", http.StatusForbidden)
}

func TestEnsureSessionMintsAndReusesToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, c := run(t, EnsureSession(), req, func(echo.Context) error { return nil })

	minted := SessionToken(c)
	if minted == "" {
		t.Fatal("no session token minted")
	}
	cookies := rec.Result().Cookies()
	var cookie *http.Cookie
	for _, ck := range cookies {
		if ck.Name == SessionCookieName {
			cookie = ck
		}
	}
	if cookie == nil || cookie.Value != minted {
		t.Fatalf("cookie not set with minted token, cookies = %v", cookies)
	}

	// A returning client keeps its token and gets no new cookie.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(&http.Cookie{Name: SessionCookieName, Value: minted})
	rec2, c2 := run(t, EnsureSession(), req2, func(echo.Context) error { return nil })
	if SessionToken(c2) != minted {
		t.Fatalf("token changed across requests: %q -> %q", minted, SessionToken(c2))
	}
	if len(rec2.Result().Cookies()) != 0 {
		t.Fatal("cookie re-issued for a client that already had one")
	}
}
