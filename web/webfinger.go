package web

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

var acctPattern = regexp.MustCompile(`^acct:(?P<username>.+?)@(?P<domain>.+)$`)

// handleWebfinger answers discovery requests for local actors. Both
// acct:user@domain handles and absolute profile URLs pointing at this node
// are accepted as resources.
func (s *Server) handleWebfinger(c *gin.Context) {
	resource := c.Query("resource")

	var username string
	if m := acctPattern.FindStringSubmatch(resource); m != nil {
		if m[2] != s.conf.Conf.Domain {
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid resource"})
			return
		}
		username = m[1]
	} else if strings.HasPrefix(resource, "http") {
		name, ok := s.conf.LocalUsername(resource)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown resource"})
			return
		}
		username = name
	} else {
		c.JSON(http.StatusNotFound, gin.H{"error": "unsupported resource"})
		return
	}

	acc, err := s.db.ReadAccountByUsername(username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if acc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no actor by that name"})
		return
	}

	data := gin.H{
		"subject": "acct:" + acc.Username + "@" + s.conf.Conf.Domain,
		"links": []gin.H{
			{
				"rel":  "self",
				"type": "application/activity+json",
				"href": s.conf.ActorURI(acc.Username),
			},
		},
	}

	renderJSON(c, http.StatusOK, "application/jrd+json", data)
}
