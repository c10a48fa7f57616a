package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	midsec "PPRelay/middleware/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestOriginChecker(t *testing.T) {
	req := require.New(t)
	check := OriginChecker([]string{"chat.example.com", " localhost:3000 "})

	r := httptest.NewRequest(http.MethodGet, "/ws/chat/alice", nil)
	req.True(check(r), "no origin header")
	r.Header.Set("Origin", "http://localhost:3000")
	req.True(check(r))
	r.Header.Set("Origin", "https://evil.example.com")
	req.False(check(r))

	req.True(OriginChecker(nil)(r))
	req.True(OriginChecker([]string{"*"})(r))
}

func TestRouteHelpers(t *testing.T) {
	req := require.New(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(), AccessLog())
	auth := midsec.DefaultOptions(func(tok string) (string, error) {
		if tok == "ok" {
			return "alice", nil
		}
		return "", errors.New("no")
	})
	ok := func(c *gin.Context) { c.String(http.StatusOK, "hi %s", midsec.Identity(c)) }
	GET(r, "/open", ok, RouteOpt{})
	GET(r, "/closed", ok, RouteOpt{IsAuth: true, Auth: auth})
	POST(r, "/boom", func(*gin.Context) { panic("boom") }, RouteOpt{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	req.Equal(http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/closed", nil))
	req.Equal(http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/closed?token=ok", nil))
	req.Equal(http.StatusOK, w.Code)
	req.Equal("hi alice", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/boom", nil))
	req.Equal(http.StatusInternalServerError, w.Code)
}
