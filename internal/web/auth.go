package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/puddle/internal/apperr"
	"github.com/zulandar/puddle/internal/identity"
)

// MsgBadLogin is shown when a username and password do not match.
const MsgBadLogin = "Please enter a correct username and password."

func (s *server) handleSignupForm(c *gin.Context) {
	s.render(c, http.StatusOK, "signup", nil)
}

func (s *server) handleSignup(c *gin.Context) {
	form := identity.SignupForm{
		Username:  c.PostForm("username"),
		Email:     c.PostForm("email"),
		Password1: c.PostForm("password1"),
		Password2: c.PostForm("password2"),
	}
	user, err := identity.Signup(c.Request.Context(), s.db, form)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			s.render(c, http.StatusOK, "signup", gin.H{
				"errors":   apperr.FieldErrors(err),
				"username": form.Username,
				"email":    form.Email,
			})
			return
		}
		s.fail(c, err)
		return
	}
	s.log.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("user signed up")
	c.Redirect(http.StatusFound, "/login")
}

func (s *server) handleLoginForm(c *gin.Context) {
	s.render(c, http.StatusOK, "login", gin.H{"next": c.Query("next")})
}

func (s *server) handleLogin(c *gin.Context) {
	username := c.PostForm("username")
	next := c.PostForm("next")

	user, err := identity.Authenticate(c.Request.Context(), s.db, username, c.PostForm("password"))
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			s.render(c, http.StatusOK, "login", gin.H{
				"loginError": MsgBadLogin,
				"username":   username,
				"next":       next,
			})
			return
		}
		s.fail(c, err)
		return
	}

	token, _, err := s.sessions.Issue(user)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.setCookie(c, token)
	c.Redirect(http.StatusFound, safeNext(next))
}

func (s *server) handleLogout(c *gin.Context) {
	if claims := currentClaims(c); claims != nil {
		if err := s.sessions.Revoke(c.Request.Context(), claims); err != nil {
			s.fail(c, err)
			return
		}
	}
	s.clearCookie(c)
	c.Redirect(http.StatusFound, "/")
}
