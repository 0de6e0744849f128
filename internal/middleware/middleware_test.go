package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cora-trainer-go/internal/model"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubUsers 按请求中的联合身份或 token 返回预设的身份。
type stubUsers struct {
	tokens map[string]model.Principal
}

func (s stubUsers) Login(string, string) (string, *model.LocalUser, error) { return "", nil, nil }
func (s stubUsers) Logout(context.Context, string) error                   { return nil }
func (s stubUsers) TokenTTL() time.Duration                                { return time.Hour }

func (s stubUsers) ResolvePrincipal(_ context.Context, federatedName, tokenString string) model.Principal {
	if federatedName != "" {
		return model.Principal{Identity: federatedName, AuthMethod: model.AuthFederated, Role: model.RoleUserAccount}
	}
	if p, ok := s.tokens[tokenString]; ok {
		return p
	}
	return model.Principal{Identity: model.AnonymousIdentity, AuthMethod: model.AuthAnonymous}
}

func newRouter() *gin.Engine {
	users := stubUsers{tokens: map[string]model.Principal{
		"user-token":  {Identity: "bob", AuthMethod: model.AuthLocal, Role: model.RoleUserAccount},
		"admin-token": {Identity: "root", AuthMethod: model.AuthLocal, Role: model.RoleAdminAccount},
	}}
	r := gin.New()
	r.Use(IdentityMiddleware(users, "X-Principal"))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, PrincipalFrom(c).Identity)
	})
	r.GET("/private", RequireAuth(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/admin", AdminAuthMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func serve(r *gin.Engine, path string, set func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if set != nil {
		set(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdentityMiddleware_Sources(t *testing.T) {
	r := newRouter()
	cases := []struct {
		name string
		set  func(*http.Request)
		want string
	}{
		{"anonymous", nil, model.AnonymousIdentity},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer user-token") }, "bob"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "admin-token"}) }, "root"},
		{"federated wins", func(r *http.Request) {
			r.Header.Set("X-Principal", "jane@contoso.com")
			r.Header.Set("Authorization", "Bearer user-token")
		}, "jane@contoso.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, "/whoami", tc.set)
			if w.Code != http.StatusOK || w.Body.String() != tc.want {
				t.Errorf("got %d %q, want %q", w.Code, w.Body.String(), tc.want)
			}
		})
	}
}

func TestRequireAuthAndAdmin(t *testing.T) {
	r := newRouter()
	userTok := func(r *http.Request) { r.Header.Set("Authorization", "Bearer user-token") }
	adminTok := func(r *http.Request) { r.Header.Set("Authorization", "Bearer admin-token") }

	if w := serve(r, "/private", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous /private: got %d", w.Code)
	}
	if w := serve(r, "/private", userTok); w.Code != http.StatusOK {
		t.Errorf("user /private: got %d", w.Code)
	}
	if w := serve(r, "/admin", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous /admin: got %d", w.Code)
	}
	if w := serve(r, "/admin", userTok); w.Code != http.StatusForbidden {
		t.Errorf("user /admin: got %d", w.Code)
	}
	if w := serve(r, "/admin", adminTok); w.Code != http.StatusOK {
		t.Errorf("admin /admin: got %d", w.Code)
	}
}

func TestPrincipalFromWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if p := PrincipalFrom(c); p.Identity != model.AnonymousIdentity || p.AuthMethod != model.AuthAnonymous {
		t.Errorf("expected anonymous principal, got %+v", p)
	}
}

func TestRequestLogger_PreservesBody(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.POST("/echo", func(c *gin.Context) {
		b, _ := c.GetRawData()
		c.String(http.StatusOK, string(b))
	})
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("payload"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "payload" {
		t.Errorf("request body must still be readable by handlers, got %q", w.Body.String())
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", maxLoggedBody+10)
	if got := truncate(long); len(got) != maxLoggedBody+len("...(truncated)") {
		t.Errorf("unexpected truncated length %d", len(got))
	}
	if truncate("short") != "short" {
		t.Error("short bodies must not be changed")
	}
}
