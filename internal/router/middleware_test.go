package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tagvault/tagvault/internal/config"
	"github.com/tagvault/tagvault/internal/constants"
	"github.com/tagvault/tagvault/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testJWTSecret = "middleware-test-secret"

func signActorToken(t *testing.T, claims service.ActorClaims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	return token
}

func newAuthTestRouter(middlewares ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middlewares...)
	r.GET("/probe", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"actor_id":    c.GetUint(actorIDContextKey),
			"actor_role":  c.GetString(actorRoleContextKey),
			"business_id": c.GetUint(businessIDContextKey),
		})
	})
	return r
}

func doAuthRequest(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestActorJWTMiddlewareValidBusinessToken(t *testing.T) {
	r := newAuthTestRouter(ActorJWTMiddleware(testJWTSecret))
	token := signActorToken(t, service.ActorClaims{
		ActorID:    7,
		Role:       constants.ActorRoleBusiness,
		BusinessID: 42,
	})

	w := doAuthRequest(r, token)
	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"actor_id":7`) {
		t.Fatalf("actor id missing in %s", body)
	}
	if !strings.Contains(body, `"business_id":42`) {
		t.Fatalf("business id missing in %s", body)
	}
}

func TestActorJWTMiddlewareRejections(t *testing.T) {
	r := newAuthTestRouter(ActorJWTMiddleware(testJWTSecret))

	cases := []struct {
		name  string
		token string
	}{
		{name: "missing header", token: ""},
		{name: "garbage token", token: "not-a-jwt"},
		{
			name: "wrong secret",
			token: func() string {
				claims := service.ActorClaims{ActorID: 1, Role: constants.ActorRoleAdmin}
				claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
				s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
				return s
			}(),
		},
		{
			name:  "unknown role",
			token: signActorToken(t, service.ActorClaims{ActorID: 1, Role: "superuser"}),
		},
		{
			name:  "business role without business id",
			token: signActorToken(t, service.ActorClaims{ActorID: 1, Role: constants.ActorRoleBusiness}),
		},
		{
			name:  "zero actor id",
			token: signActorToken(t, service.ActorClaims{Role: constants.ActorRoleAdmin}),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doAuthRequest(r, tc.token)
			if !strings.Contains(w.Body.String(), `"status_code":401`) {
				t.Fatalf("expected unauthorized body, got %s", w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := newAuthTestRouter(
		ActorJWTMiddleware(testJWTSecret),
		RequireRole(constants.ActorRoleAdmin),
	)

	adminToken := signActorToken(t, service.ActorClaims{ActorID: 1, Role: constants.ActorRoleAdmin})
	if w := doAuthRequest(r, adminToken); w.Code != http.StatusOK || strings.Contains(w.Body.String(), `"status_code":403`) {
		t.Fatalf("admin must pass, got %s", w.Body.String())
	}

	businessToken := signActorToken(t, service.ActorClaims{ActorID: 2, Role: constants.ActorRoleBusiness, BusinessID: 9})
	if w := doAuthRequest(r, businessToken); !strings.Contains(w.Body.String(), `"status_code":403`) {
		t.Fatalf("business role must be forbidden, got %s", w.Body.String())
	}
}

func TestResolveAllowedOrigin(t *testing.T) {
	cases := []struct {
		name             string
		origin           string
		allowed          []string
		allowCredentials bool
		want             string
	}{
		{name: "wildcard", origin: "https://a.example", allowed: []string{"*"}, want: "*"},
		{name: "wildcard with credentials echoes origin", origin: "https://a.example", allowed: []string{"*"}, allowCredentials: true, want: "https://a.example"},
		{name: "exact match", origin: "https://a.example", allowed: []string{"https://a.example"}, want: "https://a.example"},
		{name: "case insensitive match", origin: "https://A.example", allowed: []string{"https://a.example"}, want: "https://A.example"},
		{name: "no match", origin: "https://evil.example", allowed: []string{"https://a.example"}, want: ""},
		{name: "empty origin", origin: "", allowed: []string{"https://a.example"}, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := resolveAllowedOrigin(tc.origin, tc.allowed, tc.allowCredentials)
			if got != tc.want {
				t.Fatalf("want %q got %q", tc.want, got)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/probe", func(c *gin.Context) {
		c.String(http.StatusOK, getRequestID(c))
	})

	// 透传上游请求 ID
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-Request-ID", "upstream-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "upstream-42" {
		t.Fatalf("request id want upstream-42 got %s", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") != "upstream-42" {
		t.Fatalf("response header must echo request id")
	}

	// 缺失时自动生成
	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() == "" || w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id must be generated")
	}
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(config.CORSConfig{
		AllowedOrigins: []string{"https://console.example"},
		MaxAge:         600,
	}))
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/probe", nil)
	req.Header.Set("Origin", "https://console.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status want 204 got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://console.example" {
		t.Fatalf("allow origin header wrong: %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
	if w.Header().Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("max age header wrong: %q", w.Header().Get("Access-Control-Max-Age"))
	}
}
