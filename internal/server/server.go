// Package server exposes the dev meeting server's HTTP surface: the
// REST status/transcript API, the per-meeting websocket event stream,
// Prometheus metrics, and a read-only GraphQL view.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roundtable-labs/roundsync/internal/events"
	"github.com/roundtable-labs/roundsync/internal/orchestrator"
	"github.com/roundtable-labs/roundsync/internal/store"
)

// Options configure the HTTP server wiring.
type Options struct {
	APIToken string
}

// Server wraps the Gin engine and associated configuration.
type Server struct {
	engine *gin.Engine
}

// NewServer constructs a Server with all HTTP routes configured.
func NewServer(st *store.Store, bus *events.Bus, orch *orchestrator.Orchestrator, opts Options) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	h := &handler{store: st, bus: bus, orch: orch, token: opts.APIToken}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestIDMiddleware(), metricsMiddleware(), requestLogger())

	engine.GET("/healthz", h.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.GET("/api/meetings", h.ListMeetings)
	engine.GET("/api/meetings/:id", h.GetMeeting)
	engine.GET("/api/meetings/:id/status", h.MeetingStatus)
	engine.GET("/api/meetings/:id/messages", h.MeetingMessages)
	engine.GET("/ws/meetings/:id", h.MeetingStream)

	gql, err := newGraphQLHandler(st)
	if err != nil {
		return nil, err
	}
	engine.GET("/graphql", gin.WrapH(gql))
	engine.POST("/graphql", gin.WrapH(gql))

	protected := engine.Group("/")
	protected.Use(authMiddleware(opts.APIToken))
	protected.POST("/api/meetings", h.CreateMeeting)

	return &Server{engine: engine}, nil
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts serving on the given address.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}
