package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swipeflow/swipeflow/internal/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDGenerated(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) {
		assert.NotEmpty(t, GetRequestID(c))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequestIDPropagated(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestCORSAllowedOrigin(t *testing.T) {
	router := gin.New()
	router.Use(CORS(nil))
	router.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, origin := range []string{
		"chrome-extension://abcdef",
		"moz-extension://xyz",
		"http://localhost:3000",
		"https://localhost:8443",
	} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"), "origin %s", origin)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestCORSDisallowedOrigin(t *testing.T) {
	router := gin.New()
	router.Use(CORS(nil))
	router.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// The handler still runs; the browser enforces the missing header.
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	handlerRan := false
	router := gin.New()
	router.Use(CORS(nil))
	router.OPTIONS("/", func(c *gin.Context) { handlerRan = true })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, handlerRan)
	assert.Equal(t, "chrome-extension://abcdef", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), zap.NewNop())

	router := gin.New()
	router.POST("/login", RateLimit(limiter, "login", 2, time.Minute, zap.NewNop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestRateLimitBucketsAreIndependent(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), zap.NewNop())

	router := gin.New()
	router.POST("/a", RateLimit(limiter, "a", 1, time.Minute, nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/b", RateLimit(limiter, "b", 1, time.Minute, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/a", nil))
	require.Equal(t, http.StatusOK, w.Code)

	// Exhausting /a leaves /b untouched for the same IP.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/a", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/b", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
