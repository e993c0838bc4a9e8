package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/notabene-social/notabene/activitypub"
)

// handleInbox reads and dispatches one inbound activity. Rejections carry
// the status chosen by the activity processor; anything else is a 500.
func (s *Server) handleInbox(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}

	err = s.inbox.Handle(c.Request.Context(), c.Param("username"), c.Request, body)
	if err != nil {
		var actErr *activitypub.ActivityError
		if errors.As(err, &actErr) {
			c.JSON(actErr.Status, gin.H{"error": actErr.Reason})
			return
		}
		log.Error("Inbox processing failed", "target", c.Param("username"), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process activity"})
		return
	}

	renderJSON(c, http.StatusOK, activityContentType, gin.H{"ok": true})
}
