package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func newRateLimitRouter(client *redis.Client, rule RateLimitRule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(client, rule, KeyByIP))
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimitMiddlewareWithoutClient(t *testing.T) {
	r := newRateLimitRouter(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 1})

	// 限流存储未配置时放行
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d must pass, got %d", i, w.Code)
		}
	}
}

func TestRateLimitMiddlewareBlocksOverLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := newRateLimitRouter(client, RateLimitRule{
		Prefix:        "probe",
		WindowSeconds: 60,
		MaxRequests:   2,
		Message:       "verification attempts exceeded",
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
		if w.Code != http.StatusOK || w.Body.Len() != 0 {
			t.Fatalf("request %d must pass, got %d %s", i, w.Code, w.Body.String())
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	body := w.Body.String()
	if !strings.Contains(body, `"status_code":429`) {
		t.Fatalf("expected rate limited body, got %s", body)
	}
	if !strings.Contains(body, "retry in") {
		t.Fatalf("expected retry hint, got %s", body)
	}
}

func TestRateLimitMiddlewareWindowReset(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := newRateLimitRouter(client, RateLimitRule{WindowSeconds: 30, MaxRequests: 1})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first request must pass, got %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	if !strings.Contains(w.Body.String(), `"status_code":429`) {
		t.Fatalf("second request must be limited, got %s", w.Body.String())
	}

	mr.FastForward(31 * time.Second)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Fatalf("request after window must pass, got %d %s", w.Code, w.Body.String())
	}
}

func TestToInt64(t *testing.T) {
	cases := []struct {
		name  string
		value interface{}
		want  int64
		ok    bool
	}{
		{name: "int64", value: int64(7), want: 7, ok: true},
		{name: "int", value: 7, want: 7, ok: true},
		{name: "int32", value: int32(7), want: 7, ok: true},
		{name: "uint64", value: uint64(7), want: 7, ok: true},
		{name: "float64", value: float64(7), want: 7, ok: true},
		{name: "string", value: "7", ok: false},
		{name: "nil", value: nil, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toInt64(tc.value)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("want (%d, %v) got (%d, %v)", tc.want, tc.ok, got, ok)
			}
		})
	}
}
