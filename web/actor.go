package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleActor serves the ActivityPub profile document of a local actor.
func (s *Server) handleActor(c *gin.Context) {
	username := c.Param("username")

	acc, err := s.db.ReadAccountByUsername(username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if acc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no actor by that name"})
		return
	}

	actorURI := s.conf.ActorURI(acc.Username)
	data := gin.H{
		"@context": []string{
			"https://www.w3.org/ns/activitystreams",
			"https://w3id.org/security/v1",
		},
		"id":                actorURI,
		"type":              "Person",
		"preferredUsername": acc.Username,
		"name":              acc.DisplayName,
		"summary":           acc.Summary,
		"inbox":             actorURI + "/inbox",
		"outbox":            actorURI + "/outbox",
		"followers":         actorURI + "/followers",
		"publicKey": gin.H{
			"id":           s.conf.KeyID(acc.Username),
			"owner":        actorURI,
			"publicKeyPem": acc.PublicKeyPem,
		},
	}

	renderJSON(c, http.StatusOK, activityContentType, data)
}
