package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/baddbeatz/streamcast/internal/config"
	"github.com/baddbeatz/streamcast/internal/coordinator"
	"github.com/baddbeatz/streamcast/internal/platform"
	"github.com/baddbeatz/streamcast/internal/schedule"
	"github.com/baddbeatz/streamcast/internal/viewer"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Server exposes the coordinator over HTTP, fans its events out over
// WebSocket, and serves the viewer pages.
type Server struct {
	cfg      *config.Config
	coord    *coordinator.Coordinator
	hub      *Hub
	views    map[platform.Key]*viewer.View
	registry *platform.Registry
	sched    schedule.Provider
	log      zerolog.Logger
	engine   *gin.Engine
}

func New(cfg *config.Config, coord *coordinator.Coordinator, hub *Hub, views map[platform.Key]*viewer.View, registry *platform.Registry, sched schedule.Provider, log zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		coord:    coord,
		hub:      hub,
		views:    views,
		registry: registry,
		sched:    sched,
		log:      log.With().Str("component", "server").Logger(),
	}

	// Every coordinator event reaches every connected control client, in
	// emission order.
	coord.Bus().Subscribe(func(ev coordinator.Event) {
		if data, ok := encodeEvent(ev); ok {
			s.hub.BroadcastRaw(data)
		}
	})

	s.engine = s.buildRouter()
	return s
}

// Router returns the HTTP handler, for tests and embedding.
func (s *Server) Router() http.Handler { return s.engine }

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Client-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := r.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.POST("/connect", s.handleConnect)
		api.POST("/stream/start", s.handleStreamStart)
		api.POST("/stream/stop", s.handleStreamStop)
		api.GET("/stream/stats", s.handleStreamStats)
		api.POST("/bpm", s.handleBPM)
		api.POST("/track", s.handleTrack)
		api.POST("/scene", s.handleScene)
		api.GET("/schedule", s.handleSchedule)

		chatGroup := api.Group("/chat/:platform")
		{
			chatGroup.GET("/messages", s.handleChatMessages)
			chatGroup.POST("/messages", s.handleChatSend)
			chatGroup.GET("/requests", s.handleRequestList)
			chatGroup.POST("/requests", s.handleRequestSubmit)
			chatGroup.POST("/requests/:id/vote", s.handleRequestVote)
		}
	}

	r.GET("/ws", s.handleWebSocket)
	r.GET("/watch/:platform", s.handleWatch)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
		})
	})

	return r
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.Addr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("control server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// handleWebSocket upgrades the connection, pushes the status snapshot to
// the new client only, then joins it to the broadcast fan-out.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(uuid.NewString(), s.hub, conn, s.log)

	// Queue the snapshot before the hub can broadcast to this client, so
	// the status frame is always the first thing it receives.
	if data, err := statusFrame(s.coord.Snapshot()); err == nil {
		client.send <- data
	}
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}
