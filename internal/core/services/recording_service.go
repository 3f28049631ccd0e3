package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/ports"
	"kalonconnect/pkg/tracing"
	"kalonconnect/pkg/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordingPathPrefix is prepended to stored names in API responses.
const RecordingPathPrefix = "recordings"

type recordingService struct {
	storage        ports.RecordingStorage
	maxUploadBytes int64
	logger         *zap.Logger
	metrics        ports.MetricsRecorder
}

func NewRecordingService(
	storage ports.RecordingStorage,
	maxUploadBytes int64,
	logger *zap.Logger,
	metrics ports.MetricsRecorder,
) ports.RecordingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &recordingService{
		storage:        storage,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.Named("recordings"),
		metrics:        metricsOrNoop(metrics),
	}
}

// Store decodes a base64 payload and persists it under a sanitized name.
// Bad input is rejected before storage is touched.
func (s *recordingService) Store(ctx context.Context, kind domain.RecordingKind, filename, payload string) (string, error) {
	if strings.TrimSpace(filename) == "" || strings.TrimSpace(payload) == "" {
		return "", fmt.Errorf("%w: filename and data are required", domain.ErrInvalidRecording)
	}
	if s.maxUploadBytes > 0 && validation.DecodedLen(payload) > s.maxUploadBytes {
		return "", fmt.Errorf("%w: limit is %d bytes", domain.ErrRecordingTooLarge, s.maxUploadBytes)
	}

	data, err := validation.DecodeBase64Payload(payload)
	if err != nil {
		return "", err
	}

	name := validation.SanitizeFilename(filename)
	if name == "" {
		name = fmt.Sprintf("recording-%s.webm", uuid.NewString())
	}

	ctx, span := tracing.TraceRecording(ctx, string(kind), name)
	defer span.End()

	if err := s.storage.Save(ctx, name, bytes.NewReader(data)); err != nil {
		tracing.RecordError(ctx, err)
		s.logger.Error("failed to store recording",
			zap.String("kind", string(kind)),
			zap.String("name", name),
			zap.Error(err),
		)
		return "", fmt.Errorf("store recording: %w", err)
	}

	s.metrics.RecordRecordingStored(kind, len(data))
	s.logger.Info("recording stored",
		zap.String("kind", string(kind)),
		zap.String("name", name),
		zap.Int("bytes", len(data)),
	)
	return path.Join(RecordingPathPrefix, name), nil
}

func (s *recordingService) List(ctx context.Context) ([]string, error) {
	return s.storage.List(ctx, "")
}

func (s *recordingService) Delete(ctx context.Context, name string) error {
	clean := validation.SanitizeFilename(strings.TrimPrefix(name, RecordingPathPrefix+"/"))
	if clean == "" {
		return fmt.Errorf("%w: invalid name", domain.ErrInvalidRecording)
	}
	return s.storage.Delete(ctx, clean)
}
