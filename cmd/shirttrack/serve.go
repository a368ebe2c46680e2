package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/rl1809/shirt-tracker/internal/adapter/handler"
	"github.com/rl1809/shirt-tracker/internal/adapter/messaging"
	"github.com/rl1809/shirt-tracker/internal/adapter/storage"
	"github.com/rl1809/shirt-tracker/internal/config"
	"github.com/rl1809/shirt-tracker/internal/core/service"
	"github.com/rl1809/shirt-tracker/internal/port"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the gRPC scan service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Initialize database
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Database.Migrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		log.Printf("migrated %s schema", store.Dialect().Name)
	}

	// Initialize Redis
	var cache port.CacheRepository
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: 100,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		cache = storage.NewRedisAdapter(rdb, cfg.Redis.IdempotencyTTL)
		log.Println("connected to redis")
	} else {
		log.Println("redis not configured, scan request ids are ignored")
	}

	// Initialize Kafka
	var events port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Printf("kafka close error: %v", err)
			}
		}()
		events = publisher
		log.Printf("publishing lifecycle events to %s", cfg.Kafka.Topic)
	}

	// Initialize services
	inventory := service.NewInventoryService(store)
	scans := service.NewScanService(store, cache, events)
	metrics := handler.NewMetrics()

	// Start gRPC server
	var grpcServer *grpc.Server
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}

		grpcServer = grpc.NewServer()
		handler.RegisterScanServiceServer(grpcServer, handler.NewGRPCHandler(scans, metrics))

		go func() {
			log.Printf("gRPC server listening on %s", cfg.GRPC.Addr)
			if err := grpcServer.Serve(lis); err != nil {
				log.Printf("gRPC server error: %v", err)
			}
		}()
	}

	// Start HTTP server
	httpHandler := handler.NewHTTPHandler(inventory, scans, metrics)
	httpServer := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: handler.NewRouter(httpHandler, metrics, handler.RouterOptions{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			RequestTimeout: cfg.HTTP.RequestTimeout,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.RequestTimeout,
		WriteTimeout:      cfg.HTTP.RequestTimeout + time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
	case runErr = <-serverErr:
		log.Printf("HTTP server error: %v", runErr)
	}

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	log.Println("HTTP server stopped")

	if grpcServer != nil {
		grpcServer.GracefulStop()
		log.Println("gRPC server stopped")
	}

	return runErr
}
