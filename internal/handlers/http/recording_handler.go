package http

import (
	"errors"
	"net/http"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/ports"
	"kalonconnect/internal/infrastructure/middleware"
	apperrors "kalonconnect/pkg/errors"

	"github.com/gin-gonic/gin"
)

// base64 expands by 4/3; the rest covers the JSON envelope and a data URL
// prefix.
const bodyOverhead = 4096

type recordingRequest struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

type RecordingHandler struct {
	recordings     ports.RecordingService
	maxUploadBytes int64
}

func NewRecordingHandler(recordings ports.RecordingService, maxUploadBytes int64) *RecordingHandler {
	return &RecordingHandler{
		recordings:     recordings,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *RecordingHandler) SetupRoutes(router *gin.Engine) {
	router.POST("/api/video/record", h.Record)
	router.POST("/api/recordings/upload", h.Upload)
}

func (h *RecordingHandler) Record(c *gin.Context) {
	h.store(c, domain.RecordingFromCall)
}

func (h *RecordingHandler) Upload(c *gin.Context) {
	h.store(c, domain.RecordingFromUpload)
}

func (h *RecordingHandler) store(c *gin.Context, kind domain.RecordingKind) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes/3*4+bodyOverhead)
	}

	var req recordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			middleware.AbortWithError(c, apperrors.NewPayloadTooLargeError(h.maxUploadBytes))
			return
		}
		middleware.AbortWithError(c, apperrors.NewInvalidInputError("invalid JSON body"))
		return
	}

	path, err := h.recordings.Store(c.Request.Context(), kind, req.Filename, req.Data)
	if err != nil {
		if errors.Is(err, domain.ErrRecordingTooLarge) {
			middleware.AbortWithError(c, apperrors.NewPayloadTooLargeError(h.maxUploadBytes))
			return
		}
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":   true,
		"path": path,
	})
}
