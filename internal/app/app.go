package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/bomgraph-backend/internal/bom"
	"github.com/yungbote/bomgraph-backend/internal/bom/coordinator"
	"github.com/yungbote/bomgraph-backend/internal/config"
	bomhttp "github.com/yungbote/bomgraph-backend/internal/http"
	httpH "github.com/yungbote/bomgraph-backend/internal/http/handlers"
	"github.com/yungbote/bomgraph-backend/internal/observability"
	"github.com/yungbote/bomgraph-backend/internal/partclient"
	"github.com/yungbote/bomgraph-backend/internal/platform/logger"
	"github.com/yungbote/bomgraph-backend/internal/realtime/bus"
)

type App struct {
	Log         *logger.Logger
	Config      *config.Config
	Coordinator *coordinator.Coordinator
	Metrics     *observability.Metrics

	instanceID string
	bus        bus.Bus
	server     *http.Server
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	return NewWithConfig(cfg, log)
}

// NewWithConfig wires every component from an already loaded config.
func NewWithConfig(cfg *config.Config, log *logger.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	instanceID := uuid.New().String()
	metrics := observability.NewMetrics()

	client, err := partclient.New(partclient.Options{
		BaseURL:  cfg.PartService.BaseURL,
		APIKey:   cfg.PartService.APIKey,
		Timeout:  cfg.PartService.Timeout.Duration,
		Observer: metrics.ObservePartService,
	})
	if err != nil {
		return nil, fmt.Errorf("init part client: %w", err)
	}

	var b bus.Bus
	if cfg.Redis.Addr != "" {
		b, err = bus.NewRedisBus(log, cfg.Redis.Addr, cfg.Redis.Channel)
		if err != nil {
			return nil, fmt.Errorf("init redis bus: %w", err)
		}
	} else {
		log.Info("no redis addr configured; change events stay in-process")
		b = bus.NewMemoryBus()
	}

	coord, err := coordinator.New(log, client, coordinator.Options{
		MaxDepth:              cfg.Hierarchy.MaxDepth,
		RefreshBeforeValidate: cfg.Hierarchy.RefreshBeforeValidate,
		InstanceID:            instanceID,
		Publisher:             b,
		Metrics:               metrics,
	})
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	router := bomhttp.NewRouter(bomhttp.RouterConfig{
		Log:             log,
		ServiceName:     cfg.Observability.ServiceName,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		Metrics:         metrics,
		MaxRequestBytes: cfg.HTTP.MaxRequestBytes,
		BOMHandler:      httpH.NewBOMHandler(log, coord, bom.NewSelection()),
		HealthHandler:   httpH.NewHealthHandler(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
		IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
	}

	return &App{
		Log:         log,
		Config:      cfg,
		Coordinator: coord,
		Metrics:     metrics,
		instanceID:  instanceID,
		bus:         b,
		server:      srv,
	}, nil
}

// Handler exposes the HTTP handler for tests.
func (a *App) Handler() http.Handler { return a.server.Handler }

func (a *App) Run(ctx context.Context) error {
	shutdownOTel := observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		ServiceName: a.Config.Observability.ServiceName,
		Environment: a.Config.Env,
		Version:     a.Config.Observability.Version,
	})
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(sctx)
	}()
	defer a.bus.Close()

	if err := a.startForwarder(ctx); err != nil {
		return err
	}

	// The first load is best effort; handlers load lazily when it fails.
	if _, err := a.Coordinator.Refresh(ctx); err != nil {
		a.Log.Warn("initial hierarchy load failed", "error", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("bomd listening", "addr", a.server.Addr, "instance_id", a.instanceID)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startForwarder refreshes the hierarchy whenever another instance reports
// a mutation. Events this instance published are ignored.
func (a *App) startForwarder(ctx context.Context) error {
	return a.bus.StartForwarder(ctx, func(ev bus.Event) {
		if ev.Origin == a.instanceID {
			return
		}
		if snap := a.Coordinator.Snapshot(); snap == nil {
			return
		}
		rctx, cancel := context.WithTimeout(ctx, a.Config.PartService.Timeout.Duration)
		defer cancel()
		if _, err := a.Coordinator.Refresh(rctx); err != nil {
			a.Log.Warn("refresh after peer change failed", "op", ev.Op, "origin", ev.Origin, "error", err)
			return
		}
		a.Log.Debug("hierarchy refreshed after peer change", "op", ev.Op, "origin", ev.Origin)
	})
}
