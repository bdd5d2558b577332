package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewManager(config.Config{AuthCookieSecure: true})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	m.Set(c, "tok", time.Now().Add(time.Hour))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	rec2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(rec2)
	c2.Request = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	c2.Request.AddCookie(cookies[0])
	token, ok := m.ReadToken(c2)
	assert.True(t, ok)
	assert.Equal(t, "tok", token)

	c3, _ := gin.CreateTestContext(httptest.NewRecorder())
	c3.Request = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	_, ok = m.ReadToken(c3)
	assert.False(t, ok)
}

func TestManagerUsesConfiguredCookieAndClears(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewManager(config.Config{AuthCookieName: "board_sid", AuthCookieDomain: "board.example.com"})
	m.now = func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) }

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	m.Set(c, "tok", time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
	m.Clear(c)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "board_sid", cookies[0].Name)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.Equal(t, "board.example.com", cookies[0].Domain)
	assert.Equal(t, "", cookies[1].Value)
	assert.Less(t, cookies[1].MaxAge, 0)
}
