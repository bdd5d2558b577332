package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/taskboard/internal/config"
)

const DefaultCookieName = "tb_session"

// Manager reads and writes the opaque session token cookie. The token is
// only ever resolved by the auth service.
type Manager struct {
	name   string
	domain string
	secure bool
	now    func() time.Time
}

func NewManager(cfg config.Config) *Manager {
	name := strings.TrimSpace(cfg.AuthCookieName)
	if name == "" {
		name = DefaultCookieName
	}
	return &Manager{
		name:   name,
		domain: strings.TrimSpace(cfg.AuthCookieDomain),
		secure: cfg.AuthCookieSecure,
		now:    time.Now,
	}
}

func (m *Manager) CookieName() string {
	return m.name
}

func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	token, err := c.Cookie(m.name)
	if err != nil {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Set writes the token with a max age matching the session expiry.
func (m *Manager) Set(c *gin.Context, token string, expiresAt time.Time) {
	m.write(c, token, max(int(expiresAt.Sub(m.now()).Seconds()), 0))
}

func (m *Manager) Clear(c *gin.Context) {
	m.write(c, "", -1)
}

func (m *Manager) write(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.name, value, maxAge, "/", m.domain, m.secure, true)
}
