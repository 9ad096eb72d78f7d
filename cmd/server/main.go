package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fastinghub/pulse/internal/app"
	"github.com/fastinghub/pulse/pkg/logger"
)

// Grace period for in-flight requests once a stop signal arrives.
const shutdownTimeout = 15 * time.Second

var configFlag = flag.String("config", "", "configuration directory or file (defaults to ./config)")

func main() {
	flag.Parse()

	if err := launch(*configFlag); err != nil {
		fmt.Fprintln(os.Stderr, "pulse:", err)
		os.Exit(1)
	}
}

func launch(configPath string) error {
	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	stack, err := bootstrapRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stack.Shutdown(context.Background(), log)

	return serveHTTP(ctx, fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), stack.Router, log)
}

// serveHTTP blocks in ListenAndServe on the calling goroutine; a watcher
// goroutine starts the drain once ctx is cancelled.
func serveHTTP(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	server := &http.Server{Addr: addr, Handler: handler}

	drained := make(chan error, 1)
	go func() {
		<-ctx.Done()
		log.Info("stop signal received, draining requests", zap.Duration("grace", shutdownTimeout))
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		drained <- server.Shutdown(drainCtx)
	}()

	log.Info("http server up", zap.String("addr", addr))
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	if err := <-drained; err != nil {
		return fmt.Errorf("drain requests: %w", err)
	}

	log.Info("http server stopped")
	return nil
}

// resolveConfig loads configuration, optionally from an explicit location.
// A file path falls back to its directory; viper discovers config.yaml there.
func resolveConfig(path string) (*app.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return app.LoadConfig()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config path %q: %w", path, err)
	}
	if !info.IsDir() {
		// Viper wants the directory; it discovers config.yaml itself.
		path = filepath.Dir(path)
	}
	return app.LoadConfig(path)
}
