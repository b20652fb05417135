package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"si-monitor/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	httpServer *http.Server
}

func New(port string, handler http.Handler) *App {
	return &App{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run 阻塞直到 ctx 取消、收到 SIGINT/SIGTERM 或 HTTP 服务出错
func (a *App) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-ctx.Done():
	case sig := <-quit:
		logger.Info("signal received", zap.String("signal", sig.String()))
	case err := <-errc:
		runErr = fmt.Errorf("http server: %w", err)
	}

	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}
	logger.Info("HTTP server exited")
	return runErr
}
