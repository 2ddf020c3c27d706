// Package app 根据配置组装服务的全部依赖。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"gridflow/internal/api"
	"gridflow/internal/config"
	"gridflow/internal/database"
	"gridflow/internal/preview"
	"gridflow/internal/seed"
	"gridflow/internal/service"
	"gridflow/internal/session"
	"gridflow/internal/storage"
	"gridflow/internal/storage/local"
	"gridflow/internal/storage/s3"
	"gridflow/internal/transport"

	"go.uber.org/zap"
)

// App 持有 HTTP handler 以及需要在退出时释放的资源。
type App struct {
	Handler  http.Handler
	Sessions *session.Registry

	closers []func()
}

// Build 按配置创建存储、传输、种子来源、会话注册表与路由。
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var tr service.Transport
	if store != nil {
		tr = transport.NewStored(store, nil)
	} else {
		tr = transport.NewSimulated(service.SystemClock{}, cfg.UploadDelay, nil)
	}

	source, err := a.openSeed(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	clock := service.SystemClock{}
	share := service.NewShareResolver(cfg.ShareBaseURL)
	previews := preview.NewRegistry()

	sessions := session.NewRegistry(session.Config{
		MaxSessions: cfg.SessionMax,
		TTL:         cfg.SessionTTL,
	}, source, service.Options{
		Clock:           clock,
		Transport:       tr,
		Previewer:       previews,
		Share:           share,
		NotificationTTL: cfg.NotificationTTL,
		CopiedTTL:       cfg.CopiedTTL,
		QuotaBytes:      cfg.StorageQuotaBytes,
		Locale:          cfg.Locale,
		Logger:          logger.Named("session"),
	}, logger.Named("registry"))
	a.Sessions = sessions
	a.closers = append(a.closers, sessions.Close)

	handlers := api.Handlers{
		Sessions: api.NewSessionHandler(sessions, share, clock, logger.Named("api")),
		Previews: api.NewPreviewHandler(previews),
	}
	if store != nil {
		handlers.Objects = api.NewObjectHandler(store, logger.Named("objects"))
	}
	a.Handler = api.NewRouter(cfg, logger.Named("http"), handlers)

	logger.Info("服务组件已就绪",
		zap.String("storage_driver", cfg.StorageDriver),
		zap.String("seed_source", cfg.SeedSource),
		zap.Int("session_max", cfg.SessionMax),
		zap.Duration("session_ttl", cfg.SessionTTL),
	)
	return a, nil
}

// Close 按创建的逆序释放资源。
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case config.StorageLocal:
		store, err := local.New(cfg.StorageDir, cfg.StorageBaseURL)
		if err != nil {
			return nil, fmt.Errorf("open local storage: %w", err)
		}
		return store, nil
	case config.StorageS3:
		store, err := s3.New(ctx, s3.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Prefix:    cfg.S3Prefix,
			PublicURL: cfg.S3PublicURL,
			UseSSL:    cfg.S3UseSSL,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 storage: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

func (a *App) openSeed(ctx context.Context, cfg *config.Config, logger *zap.Logger) (seed.Source, error) {
	switch cfg.SeedSource {
	case config.SeedFile:
		src, err := seed.NewFile(cfg.SeedFile, logger.Named("seed"))
		if err != nil {
			return nil, err
		}
		if err := src.Watch(); err != nil {
			logger.Warn("无法监听种子文件，变更需要重启生效", zap.Error(err))
		}
		a.closers = append(a.closers, func() { _ = src.Close() })
		return src, nil
	case config.SeedPostgres:
		db, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { closeDB(db, logger) })
		return seed.NewPostgres(db, 0), nil
	default:
		return seed.Builtin{}, nil
	}
}

func closeDB(db *sql.DB, logger *zap.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}
}
