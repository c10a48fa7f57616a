package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PPRelay/global/config"
	"PPRelay/logger"
	"PPRelay/service/rpc"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", zap.Error(err))
		os.Exit(1)
	}
	config.SetGlobal(cfg)
	config.ConfigLog(cfg)
	config.ConfigIds(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	app, err := NewApp(ctx, cfg)
	if err != nil {
		logger.Error("start relay", zap.Error(err))
		os.Exit(1)
	}

	var health *rpc.HealthServer
	if cfg.GrpcAddr != "" {
		health = rpc.NewHealthServer()
		if err := health.Listen(cfg.GrpcAddr); err != nil {
			logger.Error("[gRPC] listen", zap.Error(err))
			os.Exit(1)
		}
	}

	if err := app.StartNacos(); err != nil {
		// live overrides are optional; the static config stays in effect
		logger.Warn("nacos unavailable", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("[HTTP] listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("[HTTP] server failed", zap.Error(err))
			stop()
		}
	}()
	if health != nil {
		health.SetServing(true)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	if health != nil {
		health.SetServing(false)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("[HTTP] shutdown", zap.Error(err))
	}
	app.Shutdown()
	if health != nil {
		health.Stop()
	}
}
