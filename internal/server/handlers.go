package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/baddbeatz/streamcast/internal/chat"
	"github.com/baddbeatz/streamcast/internal/coordinator"
	"github.com/baddbeatz/streamcast/internal/platform"
	"github.com/baddbeatz/streamcast/internal/viewer"
)

func statusFrame(snap coordinator.Snapshot) ([]byte, error) {
	return json.Marshal(wireEvent{Event: "status", Data: snap})
}

// handleStatus returns the current snapshot. Never fails.
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.coord.Snapshot())
}

func (s *Server) handleConnect(c *gin.Context) {
	if s.coord.ConnectToOBS() {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Connected to OBS"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to connect"})
}

func (s *Server) handleStreamStart(c *gin.Context) {
	var req struct {
		Platforms []string `json:"platforms" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	keys := make([]platform.Key, 0, len(req.Platforms))
	for _, raw := range req.Platforms {
		key, err := platform.ParseKey(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		keys = append(keys, key)
	}

	if s.coord.StartMultiPlatformStream(keys) {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Stream started"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to start stream"})
}

func (s *Server) handleStreamStop(c *gin.Context) {
	if s.coord.StopMultiPlatformStream() {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Stream stopped"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to stop stream"})
}

func (s *Server) handleStreamStats(c *gin.Context) {
	stats := s.coord.StreamStats()
	if stats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// handleBPM is fire-and-forget: the update always succeeds locally even
// when the overlay push fails.
func (s *Server) handleBPM(c *gin.Context) {
	var req struct {
		BPM int `json:"bpm"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	s.coord.UpdateBPM(req.BPM)
	c.JSON(http.StatusOK, gin.H{"success": true, "bpm": req.BPM})
}

func (s *Server) handleTrack(c *gin.Context) {
	var req struct {
		Artist string `json:"artist"`
		Title  string `json:"title"`
		Genre  string `json:"genre"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	s.coord.UpdateTrackInfo(req.Artist, req.Title, req.Genre)
	c.JSON(http.StatusOK, gin.H{"success": true, "track": gin.H{
		"artist": req.Artist,
		"title":  req.Title,
		"genre":  req.Genre,
	}})
}

func (s *Server) handleScene(c *gin.Context) {
	var req struct {
		SceneName string `json:"sceneName" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	success := s.coord.SwitchScene(req.SceneName)
	status := http.StatusOK
	if !success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"success": success, "sceneName": req.SceneName})
}

func (s *Server) handleSchedule(c *gin.Context) {
	streams, err := s.sched.Streams(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": streams})
}

func (s *Server) viewFor(c *gin.Context) (*viewer.View, bool) {
	key, err := platform.ParseKey(c.Param("platform"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	view, ok := s.views[key]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no stream on this platform"})
		return nil, false
	}
	return view, true
}

func (s *Server) handleWatch(c *gin.Context) {
	view, ok := s.viewFor(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := view.RenderPage(c.Request.Context(), c.Writer); err != nil {
		s.log.Error().Err(err).Msg("viewer page render failed")
	}
}

func (s *Server) handleChatMessages(c *gin.Context) {
	view, ok := s.viewFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": view.Chat().Messages()})
}

func (s *Server) handleChatSend(c *gin.Context) {
	view, ok := s.viewFor(c)
	if !ok {
		return
	}
	var req struct {
		Username string `json:"username"`
		Text     string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.Username == "" {
		req.Username = "You"
	}

	msg, err := view.Chat().SendMessage(req.Username, req.Text)
	if err != nil {
		var moderation *chat.ModerationError
		if errors.As(err, &moderation) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": moderation.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func (s *Server) handleRequestList(c *gin.Context) {
	view, ok := s.viewFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": view.Chat().Requests()})
}

func (s *Server) handleRequestSubmit(c *gin.Context) {
	view, ok := s.viewFor(c)
	if !ok {
		return
	}
	var req struct {
		Artist  string `json:"artist"`
		Title   string `json:"title"`
		Genre   string `json:"genre"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	request, err := view.Chat().SubmitRequest(req.Artist, req.Title, req.Genre, req.Message)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "request": request})
}

func (s *Server) handleRequestVote(c *gin.Context) {
	view, ok := s.viewFor(c)
	if !ok {
		return
	}
	voterID := c.GetHeader("X-Client-ID")
	if voterID == "" {
		voterID = c.ClientIP()
	}

	votes, err := view.Chat().Vote(c.Param("id"), voterID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "votes": votes})
}
