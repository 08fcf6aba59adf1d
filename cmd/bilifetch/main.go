package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/siwakornth/bilifetch/internal/adapter/drive"
	httpAdapter "github.com/siwakornth/bilifetch/internal/adapter/http"
	"github.com/siwakornth/bilifetch/internal/adapter/ytdlp"
	"github.com/siwakornth/bilifetch/internal/config"
	"github.com/siwakornth/bilifetch/internal/domain"
	"github.com/siwakornth/bilifetch/internal/worker"
)

func main() {
	// Drive credentials may live in a local dotfile.
	godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.Serve {
		serve(cfg)
		return
	}
	if cfg.URL != "" {
		downloadOnce(cfg)
		return
	}
	log.Fatal("nothing to do: pass a URL for one-shot mode or -serve for the API server")
}

// downloadOnce is the CLI mode: fetch one URL synchronously and print the
// resulting path.
func downloadOnce(cfg *config.Config) {
	if !domain.IsFormatPreset(cfg.Format) {
		log.Fatalf("invalid format %q", cfg.Format)
	}

	extractor := ytdlp.New()
	path, err := extractor.Download(context.Background(), domain.ExtractRequest{
		URL:            cfg.URL,
		OutputDir:      cfg.OutputDir,
		Format:         domain.ResolveFormat(cfg.Format),
		FFmpegLocation: cfg.FFmpegLocation,
	})
	if err != nil {
		log.Fatalf("download failed: %v", err)
	}
	fmt.Printf("Download completed: %s\n", path)
}

func serve(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote, err := drive.NewFromEnv(ctx)
	if err != nil {
		log.Fatalf("failed to initialize Google Drive client: %v", err)
	}
	if remote == nil {
		log.Println("no Google Drive credentials found, remote relay disabled")
	}

	store := domain.NewStore()
	// The interface-typed remote must stay nil when no client exists.
	var remoteStore domain.RemoteStore
	if remote != nil {
		remoteStore = remote
	}
	svc := domain.NewJobService(store, ytdlp.New(), remoteStore)

	pool := worker.New(svc, cfg.Workers, cfg.StaleDeliveryTimeout)
	srv := httpAdapter.NewServer(svc, pool.Enqueue, cfg.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go pool.Run(ctx)

	go func() {
		log.Printf("HTTP server listening on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	sig := <-sigCh
	log.Printf("received signal %v, shutting down", sig)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("shutdown complete")
}
