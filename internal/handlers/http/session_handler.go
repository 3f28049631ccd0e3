package http

import (
	"net/http"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/ports"
	"kalonconnect/internal/infrastructure/middleware"
	apperrors "kalonconnect/pkg/errors"
	"kalonconnect/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
)

// EventStreamer serves a session's event stream over a websocket.
type EventStreamer interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request, sessionID domain.SessionID)
}

type SessionHandler struct {
	sessions ports.SessionService
	events   EventStreamer
}

func NewSessionHandler(sessions ports.SessionService, events EventStreamer) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		events:   events,
	}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine, mw ...gin.HandlerFunc) {
	api := router.Group("/api/video/sessions")
	api.Use(mw...)
	api.Use(h.requireSessionID)
	{
		api.POST("", h.StartSession)
		api.GET("", h.ListSessions)
		api.GET("/:id", h.GetSession)
		api.DELETE("/:id", h.EndSession)
		api.POST("/:id/sink", h.MountSink)
		api.DELETE("/:id/sink", h.UnmountSink)
		api.POST("/:id/offer", h.CreateOffer)
		api.POST("/:id/answer", h.HandleAnswer)
		api.POST("/:id/release", h.ReleaseDevices)
	}

	if h.events != nil {
		ws := router.Group("/ws/sessions")
		ws.Use(mw...)
		ws.Use(h.requireSessionID)
		ws.GET("/:id/events", h.StreamEvents)
	}
}

func (h *SessionHandler) requireSessionID(c *gin.Context) {
	if id := c.Param("id"); id != "" {
		if err := validation.ValidateSessionID(id); err != nil {
			middleware.AbortWithError(c, apperrors.NewInvalidInputError(err.Error()))
			return
		}
	}
	c.Next()
}

func sessionID(c *gin.Context) domain.SessionID {
	return domain.SessionID(c.Param("id"))
}

func (h *SessionHandler) StartSession(c *gin.Context) {
	var req struct {
		System domain.VideoSystem `json:"system"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithError(c, apperrors.NewInvalidInputError("invalid JSON body"))
			return
		}
	}

	session, err := h.sessions.Start(c.Request.Context(), req.System)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "session": session})
}

func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions := h.sessions.List(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"ok": true, "sessions": sessions, "count": len(sessions)})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), sessionID(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": session})
}

func (h *SessionHandler) EndSession(c *gin.Context) {
	if err := h.sessions.End(c.Request.Context(), sessionID(c)); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *SessionHandler) MountSink(c *gin.Context) {
	sink, err := h.sessions.MountSink(c.Request.Context(), sessionID(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"sink_id": sink.ID(),
		"quality": sink.Quality(),
	})
}

func (h *SessionHandler) UnmountSink(c *gin.Context) {
	if err := h.sessions.UnmountSink(c.Request.Context(), sessionID(c)); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *SessionHandler) CreateOffer(c *gin.Context) {
	offer, err := h.sessions.Connect(c.Request.Context(), sessionID(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "offer": offer})
}

func (h *SessionHandler) HandleAnswer(c *gin.Context) {
	var answer webrtc.SessionDescription
	if err := c.ShouldBindJSON(&answer); err != nil {
		middleware.AbortWithError(c, apperrors.NewInvalidInputError("invalid session description"))
		return
	}
	if answer.Type != webrtc.SDPTypeAnswer || answer.SDP == "" {
		middleware.AbortWithError(c, apperrors.NewInvalidInputError("expected an SDP answer"))
		return
	}

	if err := h.sessions.Accept(c.Request.Context(), sessionID(c), answer); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ReleaseDevices reports clean=false when some track failed to stop; the
// request itself still succeeds.
func (h *SessionHandler) ReleaseDevices(c *gin.Context) {
	clean, err := h.sessions.Release(c.Request.Context(), sessionID(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "clean": clean})
}

func (h *SessionHandler) StreamEvents(c *gin.Context) {
	id := sessionID(c)
	if _, err := h.sessions.Get(c.Request.Context(), id); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	h.events.HandleWebSocket(c.Writer, c.Request, id)
}
