package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func init() { gin.SetMode(gin.TestMode) }

func sign(t *testing.T, secret string, c Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func claims(sub, role string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
}

func router() *gin.Engine {
	r := gin.New()
	auth := r.Group("/", JWTAuth(testSecret, ""))
	auth.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id")+"|"+c.GetString("role"))
	})
	auth.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := router()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, testSecret, claims("u1", "")))
	w := do(r, req)
	if w.Code != http.StatusOK || w.Body.String() != "u1|user" {
		t.Fatalf("expected 200 u1|user, got %d %q", w.Code, w.Body.String())
	}

	w = do(r, httptest.NewRequest(http.MethodGet, "/me?token="+sign(t, testSecret, claims("u2", "")), nil))
	if w.Code != http.StatusOK || w.Body.String() != "u2|user" {
		t.Fatalf("expected query token to work, got %d %q", w.Code, w.Body.String())
	}

	bad := map[string]string{
		"missing":     "",
		"wrong key":   sign(t, "other", claims("u1", "")),
		"no subject":  sign(t, testSecret, claims("", "")),
		"not a token": "abc",
	}
	for name, tok := range bad {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tok != "" {
				req.Header.Set("Authorization", "Bearer "+tok)
			}
			if w := do(r, req); w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestJWTAuthWithoutSecret(t *testing.T) {
	r := gin.New()
	r.GET("/", JWTAuth("", ""), func(c *gin.Context) { c.Status(http.StatusOK) })
	if w := do(r, httptest.NewRequest(http.MethodGet, "/", nil)); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	r := router()

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, testSecret, claims("u1", "user")))
	if w := do(r, req); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, testSecret, claims("u1", "Admin")))
	if w := do(r, req); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", w.Code)
	}
}

func TestTelegramSecret(t *testing.T) {
	r := gin.New()
	r.POST("/hook", TelegramSecret("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/hook", nil)
	if w := do(r, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/hook", nil)
	req.Header.Set(TelegramSecretHeader, "s3cret")
	if w := do(r, req); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with header, got %d", w.Code)
	}

	open := gin.New()
	open.POST("/hook", TelegramSecret(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	if w := do(open, httptest.NewRequest(http.MethodPost, "/hook", nil)); w.Code != http.StatusOK {
		t.Fatalf("expected check disabled without secret, got %d", w.Code)
	}
}
