package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mediagrab-go/internal/app"
)

const sessionKey = "mediagrab.session"

// Session binds every request to the browser session named by the cookie,
// creating a session and setting the cookie when none is known
func Session(sessions *app.SessionManager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(cookieName)

		session, created := sessions.GetOrCreate(id)
		if created {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, session.ID(), 0, "/", "", false, true)
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// CurrentSession returns the session bound by the Session middleware
func CurrentSession(c *gin.Context) *app.Session {
	value, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	session, _ := value.(*app.Session)
	return session
}
