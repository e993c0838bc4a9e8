package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handleNote serves a single locally authored note as its ActivityPub
// object. Remote notes are cache entries, not published resources, so they
// are not addressable here.
func (s *Server) handleNote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such note"})
		return
	}

	note, err := s.db.ReadNoteById(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if note == nil || !note.IsLocal() {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such note"})
		return
	}

	acc, err := s.db.ReadAccountById(note.AccountId.UUID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if acc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such note"})
		return
	}

	data := s.notes.NoteJSON(acc, note)
	data["@context"] = "https://www.w3.org/ns/activitystreams"

	renderJSON(c, http.StatusOK, activityContentType, data)
}
