package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/NeuronPulse/ChatPlus/internal/archive"
	"github.com/NeuronPulse/ChatPlus/internal/chat"
	"github.com/NeuronPulse/ChatPlus/internal/server"
	"github.com/NeuronPulse/ChatPlus/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Could not load .env file: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg := server.NewConfigFromEnv()

	store, err := storage.NewDiskStore(cfg.StorageDir, cfg.StorageCapacity)
	if err != nil {
		logger.Error("failed to open blob store", "dir", cfg.StorageDir, "error", err)
		os.Exit(1)
	}

	var arch chat.Archive
	var archStore *archive.Store
	if cfg.ArchiveDSN != "" {
		archStore, err = archive.Open(cfg.ArchiveDSN)
		if err != nil {
			logger.Error("failed to open archive", "dsn", cfg.ArchiveDSN, "error", err)
			os.Exit(1)
		}
		arch = archStore
		logger.Info("archive enabled", "dsn", cfg.ArchiveDSN)
	}

	hub := server.NewHub()
	svc := chat.NewService(cfg.Chat, hub, store, storage.PassthroughThumbnailer{}, arch, logger)
	gateway := server.NewGateway(cfg, svc, hub, store)

	go hub.Run()
	log.Println("Hub started and ready to manage WebSocket connections")

	sweeper := chat.NewSweeper(svc, logger)
	sweeper.Start()

	handler := server.SetupRoutes(gateway, store, cfg)
	httpServer := server.CreateServer(cfg.Port, handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
		}
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		logger.Error("http shutdown incomplete", "error", err)
	}
	sweeper.Stop()
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Error("hub shutdown incomplete", "error", err)
	}
	if archStore != nil {
		if err := archStore.Close(); err != nil {
			logger.Error("archive close failed", "error", err)
		}
	}
	logger.Info("server stopped")
}
