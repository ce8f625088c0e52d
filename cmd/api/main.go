package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"localcloud/infrastructure/config"
	"localcloud/infrastructure/di"
	"localcloud/interfaces/http/gateway"
)

func main() {
	probe := flag.Bool("probe", false, "check a running gateway and exit 0 when healthy")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("failed to load configuration: %v", err)
		os.Exit(1)
	}

	if *probe {
		os.Exit(gateway.Probe(cfg.ListenAddress))
	}

	// Initialize dependency container
	container, err := di.InitializeContainer(cfg)
	if err != nil {
		log.Printf("failed to initialize container: %v", err)
		os.Exit(1)
	}
	logger := container.Logging.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shut down on interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("starting gateway",
		zap.String("address", cfg.ListenAddress),
		zap.Strings("services", cfg.Services),
		zap.Bool("s3_virtual_hosting", cfg.S3VirtualHosting),
	)
	if cfg.Persistence {
		logger.Warn("PERSISTENCE is recognized but not implemented; state is process-lifetime only")
	}

	err = container.Server.Run(ctx)

	if container.Watcher != nil {
		container.Watcher.Close()
	}
	container.BodyStore.Reset()
	if syncErr := logger.Sync(); syncErr != nil {
		log.Printf("failed to sync logger: %v", syncErr)
	}

	if err != nil {
		log.Printf("gateway failed: %v", err)
		os.Exit(1)
	}
}
