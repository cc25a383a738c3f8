package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/puddle/internal/apperr"
	"github.com/zulandar/puddle/internal/item"
)

func (s *server) handleNewConversationForm(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	it, err := item.Get(c.Request.Context(), s.db, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if it.OwnerID == currentUser(c).ID {
		s.fail(c, apperr.ErrInvalidOperation)
		return
	}
	s.render(c, http.StatusOK, "conversation_new", gin.H{"item": it})
}

func (s *server) handleStartConversation(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	content := c.PostForm("content")
	conv, _, err := s.convs.StartConversation(c.Request.Context(), id, currentUser(c).ID, content)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			it, getErr := item.Get(c.Request.Context(), s.db, id)
			if getErr != nil {
				s.fail(c, getErr)
				return
			}
			s.render(c, http.StatusOK, "conversation_new", gin.H{
				"item":    it,
				"errors":  apperr.FieldErrors(err),
				"content": content,
			})
			return
		}
		s.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/inbox/"+conv.ID)
}

func (s *server) handleInbox(c *gin.Context) {
	entries, err := s.convs.ListInbox(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "inbox", gin.H{"entries": entries})
}

func (s *server) handleThread(c *gin.Context) {
	thread, err := s.convs.GetThread(c.Request.Context(), c.Param("id"), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "thread", gin.H{"thread": thread})
}

func (s *server) handlePostMessage(c *gin.Context) {
	convID := c.Param("id")
	userID := currentUser(c).ID
	content := c.PostForm("content")

	if _, err := s.convs.PostMessage(c.Request.Context(), convID, userID, content); err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			thread, getErr := s.convs.GetThread(c.Request.Context(), convID, userID)
			if getErr != nil {
				s.fail(c, getErr)
				return
			}
			s.render(c, http.StatusOK, "thread", gin.H{
				"thread":  thread,
				"errors":  apperr.FieldErrors(err),
				"content": content,
			})
			return
		}
		s.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/inbox/"+convID)
}
