package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserKey))
	})
	return r
}

func get(r http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoggerSetsRequestID(t *testing.T) {
	r := newEngine(Logger())

	w := get(r, "", "")
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	w = get(r, RequestIDHeader, "abc")
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}

func TestAuth(t *testing.T) {
	key := []byte("secret")
	r := newEngine(Auth("secret"))

	assert.Equal(t, http.StatusUnauthorized, get(r, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Authorization", "Bearer nope").Code)

	token, err := IssueToken("alice", key, time.Hour)
	require.NoError(t, err)
	w := get(r, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())

	expired, err := IssueToken("alice", key, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Authorization", "Bearer "+expired).Code)

	other, err := IssueToken("alice", []byte("other"), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Authorization", "Bearer "+other).Code)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(RateLimit(2, time.Minute))

	assert.Equal(t, http.StatusOK, get(r, "", "").Code)
	assert.Equal(t, http.StatusOK, get(r, "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "", "").Code)
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("a")
	assert.True(t, ok)
	ok, retry := rl.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	// other clients are tracked separately
	ok, _ = rl.Allow("b")
	assert.True(t, ok)

	now = now.Add(61 * time.Second)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)
}
