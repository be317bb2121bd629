package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/qrave1/RoomRelay/internal/application/config"
	"github.com/qrave1/RoomRelay/internal/application/constant"
	"github.com/qrave1/RoomRelay/internal/application/metric"
	"github.com/qrave1/RoomRelay/internal/infra/adapters/memory"
	"github.com/qrave1/RoomRelay/internal/infra/ports/http/handlers"
	"github.com/qrave1/RoomRelay/internal/infra/ports/http/server"
	"github.com/qrave1/RoomRelay/internal/usecase"
)

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: level},
			),
		),
	)

	slog.Info("Running app", slog.Bool("debug", cfg.Debug))

	sessionRegistry := memory.NewSessionRegistry(cfg.MaxRoomNameLength)
	wsConnRepo := memory.NewWSConnectionRepository(memory.WSConfig{
		WriteWait:  cfg.WS.WriteWait,
		PingPeriod: cfg.WS.PingPeriod(),
		QueueSize:  cfg.WS.SendQueueSize,
	})

	signalingUsecase := usecase.NewSignalingUsecase(sessionRegistry, wsConnRepo)

	roomHandler := handlers.NewRoomHandler(signalingUsecase)
	iceHandler := handlers.NewIceHandler(cfg)
	wsHandler := handlers.NewWebSocketHandler(cfg, signalingUsecase, wsConnRepo)

	echoSrv := server.New(cfg, roomHandler, iceHandler, wsHandler)

	metricsSrv := metric.NewServer()

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	// Запускаем HTTP сервер
	go func() {
		slog.Info("HTTP server starting", slog.String("port", cfg.Port))
		echoSrvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	// Запускаем сервер метрик
	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.MetricPort)
	}()

	// Ожидаем сигнал завершения или ошибку сервера
	select {
	case <-ctx.Done():
		slog.Info("Shutting down servers due to context cancel")
	case err := <-echoSrvCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error(
				"HTTP server failed",
				slog.Any(constant.Error, err),
			)
			os.Exit(1)
		}
	case err := <-metricsSrvCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error(
				"Metrics server failed",
				slog.Any(constant.Error, err),
			)
			os.Exit(1)
		}
	}

	// Graceful shutdown
	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer timeoutCancel()

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown HTTP server", slog.Any(constant.Error, err))
	}

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown metric server", slog.Any(constant.Error, err))
	}
}
