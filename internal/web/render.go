package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/puddle/internal/apperr"
)

// render draws page inside the shared layout. Every page sees the current
// user, the site name and an errors map, which is empty unless set.
func (s *server) render(c *gin.Context, status int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["page"] = page
	data["site"] = s.site
	if u := currentUser(c); u != nil {
		data["user"] = u
	}
	if _, ok := data["errors"]; !ok {
		data["errors"] = map[string][]string{}
	}
	c.HTML(status, "layout.html", data)
}

// fail maps an error kind to its response. Storage and other unexpected
// errors are logged and shown as a 500.
func (s *server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		redirectToLogin(c)
		return
	case errors.Is(err, apperr.ErrNotFound):
		s.renderStatus(c, http.StatusNotFound, "Not found", "The page you asked for does not exist.")
	case errors.Is(err, apperr.ErrForbidden):
		s.renderStatus(c, http.StatusForbidden, "Forbidden", "You do not have access to this page.")
	case errors.Is(err, apperr.ErrInvalidOperation), errors.Is(err, apperr.ErrValidation):
		s.renderStatus(c, http.StatusBadRequest, "Bad request", "That action is not allowed.")
	default:
		s.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		s.renderStatus(c, http.StatusInternalServerError, "Server error", "Something went wrong. Please try again.")
	}
	c.Abort()
}

func (s *server) renderStatus(c *gin.Context, status int, title, message string) {
	s.render(c, status, "error", gin.H{
		"status":  status,
		"title":   title,
		"message": message,
	})
}

func (s *server) handleNoRoute(c *gin.Context) {
	s.renderStatus(c, http.StatusNotFound, "Not found", "The page you asked for does not exist.")
}

// paramID parses a numeric path parameter. Anything else is treated as a
// missing resource.
func paramID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.ErrNotFound
	}
	return uint(id), nil
}
