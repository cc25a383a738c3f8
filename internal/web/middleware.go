package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/zulandar/puddle/internal/apperr"
	"github.com/zulandar/puddle/internal/identity"
	"github.com/zulandar/puddle/internal/models"
)

const (
	ctxUser   = "user"
	ctxClaims = "claims"
)

// requestLogger writes one log line per request.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		if u := currentUser(c); u != nil {
			ev = ev.Uint("user_id", u.ID)
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// loadUser resolves the session cookie, if any, into the current user.
// Invalid or revoked cookies are cleared and the request continues
// anonymously.
func (s *server) loadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(s.cookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}
		claims, err := s.sessions.Parse(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, apperr.ErrUnauthenticated) {
				s.fail(c, err)
				return
			}
			s.clearCookie(c)
			c.Next()
			return
		}
		user, err := identity.Get(c.Request.Context(), s.db, claims.UserID)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				s.fail(c, err)
				return
			}
			s.clearCookie(c)
			c.Next()
			return
		}
		c.Set(ctxUser, user)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// requireLogin sends anonymous visitors to the login page, remembering where
// they were going.
func (s *server) requireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) == nil {
			redirectToLogin(c)
			return
		}
		c.Next()
	}
}

func redirectToLogin(c *gin.Context) {
	c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
	c.Abort()
}

func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

func currentClaims(c *gin.Context) *identity.Claims {
	v, ok := c.Get(ctxClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*identity.Claims)
	return claims
}

func (s *server) setCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookieName, token, int(s.sessions.TTL().Seconds()), "/", "", false, true)
}

func (s *server) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookieName, "", -1, "/", "", false, true)
}

// safeNext keeps post-login redirects on this site. Browsers drop tab and
// newline characters from URLs, so any control character is rejected.
func safeNext(next string) string {
	for _, r := range next {
		if r < 0x20 || r == 0x7f {
			return "/"
		}
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "/"
	}
	return next
}
