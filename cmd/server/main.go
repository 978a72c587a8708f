package main

import (
	"chat-fanout/auth"
	"chat-fanout/domain/event"
	"chat-fanout/infrastructure/grpc/server"
	"chat-fanout/infrastructure/httpapi"
	"chat-fanout/infrastructure/storage"
	"chat-fanout/internal"
	"chat-fanout/moderation"
	"chat-fanout/runtime"
	"chat-fanout/runtime/workers"
	"chat-fanout/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Exit codes reported to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Deferred cleanups run before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	charReplacement, _ := internal.CharacterRune(config.CharReplacement)
	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Storage
	if config.StoreMode == internal.StoreMemory {
		logger.Warn("Running with the in-memory store, messages are lost on restart")
	}
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	users := storage.NewUserRepository(db, logger)
	messages := storage.NewMessageStore(db, logger)

	index, err := storage.NewMessageIndex(config.BlugeFilepath, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge index: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = index.Close()
	}()

	// 3. Moderation
	var moderator moderation.IModerator = moderation.Disabled{}
	if config.EnableModeration {
		data, err := moderation.NewEmbeddedLoader().LoadAll("censored")
		if err != nil {
			return exitConfig, fmt.Errorf("censored words loading failed: %w", err)
		}
		m, err := moderation.NewModerator(data.Words, charReplacement, logger)
		if err != nil {
			return exitConfig, err
		}
		logger.Info("Moderation enabled", "languages", data.Languages, "words", len(data.Words))
		moderator = m
	}

	// 4. Supervision & Orchestration
	telemetryChan := make(chan event.Event, config.BufferSize)
	sup := workers.NewSupervisor(logger, telemetryChan, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(logger, sup, telemetryChan, users, messages, index, moderator, runtime.Config{
		SinkTimeout:          config.SinkTimeout,
		TypingDebounce:       config.TypingDebounce,
		MaxContentLength:     config.MaxContentLength,
		BufferSize:           config.BufferSize,
		MetricInterval:       config.MetricInterval,
		LatencyThreshold:     config.LatencyThreshold,
		LowCapacityThreshold: config.LowCapacityThreshold,
	})

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errChan := make(chan error, 3)

	go func() {
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 6. Transports
	tokens := auth.NewTokenManager(config.JwtSecret, config.AuthTokenDuration)
	chatService := services.NewChatService(logger, orchestrator, tokens, config.ConnectionBufferSize)

	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	s, healthServer := server.NewGrpcServer(logger,
		server.NewChatServer(logger, chatService, orchestrator, config.HistoryLimit), tokens)
	go func() {
		logger.Info("Starting gRPC server", "address", grpcAddress, "at", time.Now().UTC())
		for serviceName := range s.GetServiceInfo() {
			logger.Debug("gRPC exposed service", "name", serviceName)
		}
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	routerConfig := httpapi.RouterConfig{}
	if logger.Enabled(ctx, slog.LevelDebug) {
		routerConfig.Inspector = internal.InspectHandler(db, storage.InspectMapper, func() map[string]any {
			return map[string]any{
				"Online":     len(orchestrator.Online()),
				"Rooms":      len(orchestrator.Rooms()),
				"Dropped":    orchestrator.Counter().Get(event.DeliveryDroppedType),
				"Restarts":   orchestrator.Counter().Get(event.RestartedAfterPanicType),
				"Telemetry":  len(telemetryChan),
				"RenderedAt": time.Now().Format(time.RFC822),
			}
		})
	}
	router := httpapi.NewRouter(logger,
		httpapi.NewWebSocketHandler(logger, chatService, config.Origins()),
		httpapi.NewAPIHandler(logger, orchestrator, tokens, config.HistoryLimit),
		routerConfig)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.HttpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Graceful Shutdown
	logger.Info("Shutting down gracefully...")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server forced to shutdown", "error", err)
	}
	s.GracefulStop()
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if config.StoreMode == internal.StoreMemory {
		options = storage.InMemoryOptions()
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	return options
}
