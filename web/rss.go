package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"
)

// feedItemLimit caps the number of notes in the RSS feed.
const feedItemLimit = 20

// handleFeed serves an actor's recent notes as an RSS feed, for readers
// outside the federation.
func (s *Server) handleFeed(c *gin.Context) {
	acc, ok := s.lookupAccount(c)
	if !ok {
		return
	}

	notes, err := s.db.ReadNotesPage(acc.Id, feedItemLimit, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	title := acc.DisplayName
	if title == "" {
		title = acc.Username
	}

	feed := &feeds.Feed{
		Title:       title + " @ " + s.conf.Conf.Domain,
		Link:        &feeds.Link{Href: s.conf.ActorURI(acc.Username)},
		Description: acc.Summary,
	}

	for i := range notes {
		n := &notes[i]
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          n.ContentURL,
			Title:       n.PublishedAt.UTC().Format("2006-01-02 15:04"),
			Link:        &feeds.Link{Href: n.ContentURL},
			Description: n.Content,
			Created:     n.PublishedAt,
			Updated:     n.UpdatedAt,
		})
	}

	rss, err := feed.ToRss()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}
