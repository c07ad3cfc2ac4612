package main

import (
	"context"
	"net/http"
	"time"

	"github.com/cabfleet/cabfleet/internal/api"
	v1 "github.com/cabfleet/cabfleet/internal/api/v1"
	"github.com/cabfleet/cabfleet/internal/cache"
	"github.com/cabfleet/cabfleet/internal/config"
	"github.com/cabfleet/cabfleet/internal/logger"
	"github.com/cabfleet/cabfleet/internal/postgres"
	"github.com/cabfleet/cabfleet/internal/repository"
	"github.com/cabfleet/cabfleet/internal/service"
	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

func init() {
	// Numbering periods and snapshot timestamps are defined in UTC
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			cache.NewInMemoryCache,
		),
		postgres.Module(),
		repository.Module(),
		fx.Provide(
			service.NewVatCalculator,
			service.NewNumberingService,
			service.NewExportDataService,
			service.NewSnapshotService,
			v1.NewExportHandler,
			newHandlers,
			api.NewRouter,
		),
		fx.Invoke(startServer),
	)

	app.Run()
}

func newHandlers(export *v1.ExportHandler) api.Handlers {
	return api.Handlers{Export: export}
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	router *gin.Engine,
	log *logger.Logger,
) {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalw("server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
