package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/notabene-social/notabene/domain"
)

// pageSize is the number of items per OrderedCollectionPage.
const pageSize = 10

// handleFollowers serves an actor's follower collection. Without a page
// query only the collection summary is returned; with one, the requested
// OrderedCollectionPage of follower actor URIs.
func (s *Server) handleFollowers(c *gin.Context) {
	acc, ok := s.lookupAccount(c)
	if !ok {
		return
	}

	total, err := s.db.CountFollowers(acc.Id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	collectionURI := s.conf.ActorURI(acc.Username) + "/followers"

	page, ok, done := parsePageQuery(c, total)
	if done {
		return
	}
	if !ok {
		renderJSON(c, http.StatusOK, activityContentType, gin.H{
			"@context":   "https://www.w3.org/ns/activitystreams",
			"id":         collectionURI,
			"type":       "OrderedCollection",
			"totalItems": total,
			"first":      collectionURI + "?page=1",
		})
		return
	}

	followers, err := s.db.ReadFollowersPage(acc.Id, pageSize, (page-1)*pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]string, 0, len(followers))
	for _, f := range followers {
		items = append(items, f.ActorURI)
	}

	renderJSON(c, http.StatusOK, activityContentType,
		collectionPage(collectionURI, page, total, items))
}

// handleOutbox serves an actor's outbox: the actor's own notes, newest first.
func (s *Server) handleOutbox(c *gin.Context) {
	acc, ok := s.lookupAccount(c)
	if !ok {
		return
	}

	total, err := s.db.CountNotesByAccount(acc.Id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	collectionURI := s.conf.ActorURI(acc.Username) + "/outbox"

	page, ok, done := parsePageQuery(c, total)
	if done {
		return
	}
	if !ok {
		renderJSON(c, http.StatusOK, activityContentType, gin.H{
			"@context":   "https://www.w3.org/ns/activitystreams",
			"id":         collectionURI,
			"type":       "OrderedCollection",
			"totalItems": total,
			"first":      collectionURI + "?page=1",
		})
		return
	}

	notes, err := s.db.ReadNotesPage(acc.Id, pageSize, (page-1)*pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]map[string]any, 0, len(notes))
	for i := range notes {
		items = append(items, s.notes.NoteJSON(acc, &notes[i]))
	}

	renderJSON(c, http.StatusOK, activityContentType,
		collectionPage(collectionURI, page, total, items))
}

func (s *Server) lookupAccount(c *gin.Context) (*domain.Account, bool) {
	acc, err := s.db.ReadAccountByUsername(c.Param("username"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if acc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no actor by that name"})
		return nil, false
	}
	return acc, true
}

// parsePageQuery reads the page query parameter. ok reports whether a page
// was requested; done reports whether a response was already written (a
// malformed or out-of-range page is a 404).
func parsePageQuery(c *gin.Context, total int) (page int, ok bool, done bool) {
	raw := c.Query("page")
	if raw == "" {
		return 0, false, false
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 || page > numPages(total) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("invalid page number %s", raw)})
		return 0, false, true
	}
	return page, true, false
}

// numPages is at least 1: an empty collection still has one (empty) page.
func numPages(total int) int {
	n := (total + pageSize - 1) / pageSize
	if n < 1 {
		return 1
	}
	return n
}

func collectionPage[T any](collectionURI string, page, total int, items []T) gin.H {
	data := gin.H{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           fmt.Sprintf("%s?page=%d", collectionURI, page),
		"type":         "OrderedCollectionPage",
		"partOf":       collectionURI,
		"totalItems":   total,
		"orderedItems": items,
	}
	if page < numPages(total) {
		data["next"] = fmt.Sprintf("%s?page=%d", collectionURI, page+1)
	}
	return data
}
