package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"kalonconnect/internal/core/ports"
	"kalonconnect/internal/core/services"
	"kalonconnect/internal/infrastructure/repositories"
	"kalonconnect/pkg/config"
	"kalonconnect/pkg/storage"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const storeConnectTimeout = 15 * time.Second

type commandContext struct {
	configFlag *string
	storeFlag  *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	factory *repositories.RepositoryFactory
	logger  *zap.Logger
}

func newCommandContext(configFlag, storeFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		storeFlag:  storeFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}

		var cfg *config.Config
		var err error
		if path != "" {
			if _, statErr := os.Stat(path); statErr != nil {
				c.configErr = fmt.Errorf("config file: %w", statErr)
				return
			}
			cfg, err = config.Load(path)
		} else {
			cfg, path, err = config.LoadFirst(config.SearchPaths...)
		}
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}

		if c.storeFlag != nil {
			if store := strings.TrimSpace(*c.storeFlag); store != "" {
				cfg.Video.Store = store
				if err := cfg.Validate(); err != nil {
					c.configErr = fmt.Errorf("invalid --store: %w", err)
					return
				}
			}
		}

		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

// cliLogger writes warnings and errors to w in console format so fallback
// reads and store problems show up next to the command output.
func (c *commandContext) cliLogger(w io.Writer) *zap.Logger {
	if c.logger == nil {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.TimeKey = ""
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), zapcore.WarnLevel)
		c.logger = zap.New(core)
	}
	return c.logger
}

func (c *commandContext) repositoryFactory(ctx context.Context, w io.Writer) (*repositories.RepositoryFactory, error) {
	if c.factory != nil {
		return c.factory, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, storeConnectTimeout)
	defer cancel()

	factory, err := repositories.NewRepositoryFactory(ctx, cfg, c.cliLogger(w).Sugar())
	if err != nil {
		return nil, fmt.Errorf("open video config store: %w", err)
	}
	c.factory = factory
	return factory, nil
}

func (c *commandContext) videoConfigRepository(ctx context.Context, w io.Writer) (ports.VideoConfigRepository, string, error) {
	factory, err := c.repositoryFactory(ctx, w)
	if err != nil {
		return nil, "", err
	}
	return factory.CreateVideoConfigRepository(), factory.Store(), nil
}

func (c *commandContext) videoConfigService(ctx context.Context, w io.Writer) (ports.VideoConfigService, error) {
	repo, _, err := c.videoConfigRepository(ctx, w)
	if err != nil {
		return nil, err
	}
	return services.NewVideoConfigService(repo, c.cliLogger(w), nil, nil), nil
}

func (c *commandContext) recordingStorage() (*storage.FileStorage, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return storage.NewFileStorage(cfg.Recordings.Dir)
}

func (c *commandContext) close() error {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	if c.factory != nil {
		err := c.factory.Close()
		c.factory = nil
		return err
	}
	return nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
