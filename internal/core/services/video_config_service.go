package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/ports"
	"kalonconnect/pkg/tracing"
	"kalonconnect/pkg/validation"

	"go.uber.org/zap"
)

type videoConfigService struct {
	repo    ports.VideoConfigRepository
	logger  *zap.Logger
	metrics ports.MetricsRecorder
	events  ports.EventPublisher
}

func NewVideoConfigService(
	repo ports.VideoConfigRepository,
	logger *zap.Logger,
	metrics ports.MetricsRecorder,
	events ports.EventPublisher,
) ports.VideoConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &videoConfigService{
		repo:    repo,
		logger:  logger.Named("video_config"),
		metrics: metricsOrNoop(metrics),
		events:  eventsOrNoop(events),
	}
}

// Load never fails: when the stored document can't be read the canonical
// default is returned, and it is not written back.
func (s *videoConfigService) Load(ctx context.Context) domain.VideoSystemConfig {
	ctx, span := tracing.TraceConfigOperation(ctx, "load")
	defer span.End()

	stored, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Warn("video config unavailable, using defaults", zap.Error(err))
		s.metrics.RecordConfigLoad(true)
		tracing.AddSpanAttributes(ctx, tracing.FallbackKey.Bool(true))
		return domain.DefaultVideoSystemConfig()
	}

	cfg, corrections := Normalize(stored)
	for _, c := range corrections {
		s.logger.Warn("video config corrected on read", zap.String("correction", c))
	}
	s.metrics.RecordConfigLoad(false)
	return cfg
}

// Save validates cfg and replaces the stored document with it. Repository
// errors are returned as-is; there is no retry.
func (s *videoConfigService) Save(ctx context.Context, cfg domain.VideoSystemConfig) (domain.VideoSystemConfig, error) {
	ctx, span := tracing.TraceConfigOperation(ctx, "save")
	defer span.End()

	if err := validation.ValidateVideoConfig(cfg); err != nil {
		s.metrics.RecordConfigSave(err)
		tracing.RecordError(ctx, err)
		return domain.VideoSystemConfig{}, err
	}

	cfg = cfg.Clone()
	if err := s.repo.Save(ctx, cfg); err != nil {
		s.logger.Error("failed to save video config", zap.Error(err))
		s.metrics.RecordConfigSave(err)
		tracing.RecordError(ctx, err)
		return domain.VideoSystemConfig{}, fmt.Errorf("save video config: %w", err)
	}

	s.metrics.RecordConfigSave(nil)
	s.logger.Info("video config replaced",
		zap.String("default_system", string(cfg.DefaultSystem)),
		zap.String("video_quality", string(cfg.VideoQuality)),
		zap.Int("options", len(cfg.Options)),
	)
	s.events.Publish(domain.SessionEvent{
		Type:      domain.EventConfigUpdated,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"defaultSystem": cfg.DefaultSystem,
			"videoQuality":  cfg.VideoQuality,
		},
	})
	return cfg, nil
}

// Normalize repairs a stored document so it satisfies the document
// invariants, returning a description of every change made. A document
// that is already valid comes back unchanged.
func Normalize(cfg domain.VideoSystemConfig) (domain.VideoSystemConfig, []string) {
	def := domain.DefaultVideoSystemConfig()
	out := cfg.Clone()
	var corrections []string

	var options []domain.VideoSystem
	seen := make(map[domain.VideoSystem]bool, len(cfg.Options))
	for _, opt := range cfg.Options {
		switch {
		case !opt.Valid():
			corrections = append(corrections, fmt.Sprintf("dropped unknown option %q", opt))
		case seen[opt]:
			corrections = append(corrections, fmt.Sprintf("dropped duplicate option %q", opt))
		default:
			seen[opt] = true
			options = append(options, opt)
		}
	}
	if len(options) == 0 {
		options = def.Options
		corrections = append(corrections, "options empty, using default options")
		if out.DefaultSystem != def.DefaultSystem {
			corrections = append(corrections, fmt.Sprintf("defaultSystem %q replaced by %q", cfg.DefaultSystem, def.DefaultSystem))
			out.DefaultSystem = def.DefaultSystem
		}
	}
	out.Options = options

	if !out.HasOption(out.DefaultSystem) {
		corrections = append(corrections, fmt.Sprintf("defaultSystem %q not in options, using %q", cfg.DefaultSystem, out.Options[0]))
		out.DefaultSystem = out.Options[0]
	}

	if !out.VideoQuality.Valid() {
		corrections = append(corrections, fmt.Sprintf("videoQuality %q unknown, using %q", cfg.VideoQuality, def.VideoQuality))
		out.VideoQuality = def.VideoQuality
	}

	if strings.TrimSpace(out.Recording.StoragePath) == "" {
		corrections = append(corrections, "recording.storagePath empty, using default")
		out.Recording.StoragePath = def.Recording.StoragePath
	}

	if out.WaitingRoom != nil {
		if strings.TrimSpace(out.WaitingRoom.Background) == "" {
			corrections = append(corrections, "waitingRoom.background empty, using default")
			out.WaitingRoom.Background = def.WaitingRoom.Background
		}
		if strings.TrimSpace(out.WaitingRoom.AmbienceAudio) == "" {
			corrections = append(corrections, "waitingRoom.ambienceAudio empty, using default")
			out.WaitingRoom.AmbienceAudio = def.WaitingRoom.AmbienceAudio
		}
	}

	return out, corrections
}
