package web

import (
	"encoding/json"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/notabene-social/notabene/activitypub"
	"github.com/notabene-social/notabene/db"
	"github.com/notabene-social/notabene/util"
)

const activityContentType = "application/activity+json"

// maxRequestBodySize bounds inbox and webfinger payloads. Activities are
// small; anything past this is noise or abuse.
const maxRequestBodySize = 1 << 20

// Server carries the handlers' shared dependencies.
type Server struct {
	conf  *util.AppConfig
	db    *db.DB
	inbox *activitypub.Inbox
	notes *activitypub.Notes
}

func NewServer(conf *util.AppConfig, database *db.DB, inbox *activitypub.Inbox, notes *activitypub.Notes) *Server {
	return &Server{conf: conf, db: database, inbox: inbox, notes: notes}
}

// Router builds the gin engine with all federation routes mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(MaxBytesMiddleware(maxRequestBodySize))

	// 405 instead of 404 when e.g. the inbox is hit with a GET.
	r.HandleMethodNotAllowed = true

	limiter := NewRateLimiter(10, 20)
	r.Use(RateLimitMiddleware(limiter))

	r.GET("/.well-known/webfinger", s.handleWebfinger)
	r.GET("/users/:username", s.handleActor)
	r.POST("/users/:username/inbox", s.handleInbox)
	r.GET("/users/:username/followers", s.handleFollowers)
	r.GET("/users/:username/outbox", s.handleOutbox)
	r.GET("/notes/:id", s.handleNote)
	r.GET("/users/:username/feed", s.handleFeed)

	return r
}

// renderJSON writes data with an explicit content type; gin's JSON helpers
// always answer application/json, which is wrong for activity and jrd
// documents.
func renderJSON(c *gin.Context, status int, contentType string, data any) {
	buf, err := json.Marshal(data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(status, contentType, buf)
}
