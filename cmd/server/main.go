package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/ports"
	"kalonconnect/internal/core/services"
	httphandlers "kalonconnect/internal/handlers/http"
	"kalonconnect/internal/infrastructure/middleware"
	"kalonconnect/internal/infrastructure/monitoring"
	repositories "kalonconnect/internal/infrastructure/repositories"
	signalhub "kalonconnect/internal/infrastructure/signal"
	webrtcinfra "kalonconnect/internal/infrastructure/webrtc"
	"kalonconnect/pkg/config"
	"kalonconnect/pkg/logger"
	"kalonconnect/pkg/storage"
	"kalonconnect/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Fall back to defaults if no config file can be loaded
	cfg, cfgPath, cfgErr := config.LoadFirst(config.SearchPaths...)

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	switch {
	case cfgErr != nil:
		log.Warnw("failed to load config file, using defaults", "error", cfgErr)
	case cfgPath == "":
		log.Info("no config file found, using defaults")
	default:
		log.Infow("configuration loaded", "path", cfgPath)
	}

	// Tracing
	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "kalonconnect",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Initialize repository factory
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	repoFactory, err := repositories.NewRepositoryFactory(startupCtx, cfg, log)
	startupCancel()
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	recordingStore, err := storage.NewFileStorage(cfg.Recordings.Dir)
	if err != nil {
		log.Fatalw("failed to open recordings directory", "dir", cfg.Recordings.Dir, "error", err)
	}

	// Monitoring
	var exporter ports.MetricsRecorder
	if cfg.Monitoring.PrometheusEnabled {
		exporter = monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	}
	metricsService := services.NewMetricsService(exporter)

	hub := signalhub.NewEventHub(signalhub.HubConfig{
		PingInterval:   cfg.Events.PingInterval,
		PongTimeout:    cfg.Events.PongTimeout,
		WriteTimeout:   cfg.Events.WriteTimeout,
		BufferSize:     cfg.Events.BufferSize,
		AllowedOrigins: cfg.Auth.AllowedOrigins,
	}, log.Named("events"))

	// WebRTC configuration (including STUN/TURN from config)
	var iceServers []webrtc.ICEServer
	if len(cfg.WebRTC.ICEServers) > 0 {
		for _, s := range cfg.WebRTC.ICEServers {
			iceServers = append(iceServers, webrtc.ICEServer{
				URLs:       s.URLs,
				Username:   s.Username,
				Credential: s.Credential,
			})
		}
	} else {
		// Fallback STUN server if not configured
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}
	webrtcConfig := webrtcinfra.WebRTCConfig{ICEServers: iceServers}
	webrtcConfig.PortRange.Min = cfg.WebRTC.PortRange.Min
	webrtcConfig.PortRange.Max = cfg.WebRTC.PortRange.Max

	// Initialize services
	configService := services.NewVideoConfigService(repoFactory.CreateVideoConfigRepository(), zapLogger, metricsService, hub)
	recordingService := services.NewRecordingService(recordingStore, cfg.Recordings.MaxUploadBytes, zapLogger, metricsService)
	sessionService := services.NewSessionService(
		configService,
		webrtcinfra.NewSinkFactory(),
		webrtcinfra.NewPeerConnector(webrtcConfig, log.Named("webrtc")),
		zapLogger,
		metricsService,
		hub,
	)
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	// Health checks
	health := monitoring.NewHealthChecker()
	health.AddCheck("config_store", func(ctx context.Context) (bool, error) {
		return true, repoFactory.HealthCheck(ctx)
	}, 30*time.Second, 2*time.Second)
	health.AddCheck("recordings_dir", func(ctx context.Context) (bool, error) {
		_, err := recordingStore.List(ctx, "")
		return err == nil, err
	}, 30*time.Second, 2*time.Second)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	health.StartBackgroundChecks(bgCtx)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.TracingMiddleware(),
		middleware.RequestLogger(logger.NewContextLogger(zapLogger.Named("http"))),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	httphandlers.NewVideoHandler(configService).SetupRoutes(router,
		middleware.AuthMiddleware(authService),
		middleware.RequireRole(authService, domain.RoleAdmin),
	)
	httphandlers.NewRecordingHandler(recordingService, cfg.Recordings.MaxUploadBytes).SetupRoutes(router)
	httphandlers.NewSessionHandler(sessionService, hub).SetupRoutes(router)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
			"store":     repoFactory.Store(),
			"metrics":   metricsService.Snapshot(),
		})
	})

	// Readiness endpoint
	router.GET("/ready", func(c *gin.Context) {
		status := health.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting KalonConnect video server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down KalonConnect video server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	// Open sessions still hold sinks and device streams
	sessionService.Shutdown(shutdownCtx)

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}

	log.Info("KalonConnect video server stopped")
}
