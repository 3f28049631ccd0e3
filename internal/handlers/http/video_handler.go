package http

import (
	"net/http"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/ports"
	"kalonconnect/internal/infrastructure/middleware"
	apperrors "kalonconnect/pkg/errors"

	"github.com/gin-gonic/gin"
)

// configResponse flattens the document next to the ok flag.
type configResponse struct {
	OK bool `json:"ok"`
	domain.VideoSystemConfig
}

type VideoHandler struct {
	configService ports.VideoConfigService
}

func NewVideoHandler(configService ports.VideoConfigService) *VideoHandler {
	return &VideoHandler{configService: configService}
}

// SetupRoutes registers the public config route and the admin routes. The
// admin handlers run behind the given middleware chain.
func (h *VideoHandler) SetupRoutes(router *gin.Engine, admin ...gin.HandlerFunc) {
	router.Any("/api/video/config", h.GetConfig)

	group := router.Group("/api/admin/video")
	group.Use(admin...)
	{
		group.GET("/config", h.GetAdminConfig)
		group.PUT("/config", h.PutAdminConfig)
	}
}

// GetConfig serves the active document. It never fails: a missing or broken
// document is answered with the defaults.
func (h *VideoHandler) GetConfig(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		c.Header("Allow", http.MethodGet)
		middleware.AbortWithError(c, apperrors.NewMethodNotAllowedError(c.Request.Method))
		return
	}

	cfg := h.configService.Load(c.Request.Context())
	c.JSON(http.StatusOK, configResponse{OK: true, VideoSystemConfig: cfg})
}

func (h *VideoHandler) GetAdminConfig(c *gin.Context) {
	cfg := h.configService.Load(c.Request.Context())
	c.JSON(http.StatusOK, configResponse{OK: true, VideoSystemConfig: cfg})
}

// PutAdminConfig replaces the whole document.
func (h *VideoHandler) PutAdminConfig(c *gin.Context) {
	var cfg domain.VideoSystemConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		middleware.AbortWithError(c, apperrors.NewInvalidInputError("invalid JSON body: "+err.Error()))
		return
	}

	saved, err := h.configService.Save(c.Request.Context(), cfg)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, configResponse{OK: true, VideoSystemConfig: saved})
}
