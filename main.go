// ytmp3/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ytmp3/api"
	"ytmp3/config"
	"ytmp3/ffmpeg"
	"ytmp3/task"
	"ytmp3/youtube"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Open the persistent whitelist
	wl, err := config.OpenWhitelist(cfg.WhitelistPath, cfg.OwnerID)
	if err != nil {
		log.Fatalf("Failed to open whitelist: %v", err)
	}

	// 3. Initialize dependencies (source and transcoder first)
	source := youtube.NewClient(cfg.MaxInputSize)
	runner, err := ffmpeg.NewRunner(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize ffmpeg runner: %v", err)
	}

	// 4. Initialize the conversion manager
	manager := task.NewManager(cfg, source, runner)

	// 5. Set up router and server
	router, handler := api.SetupRouter(manager, wl, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// 6. Start background services and the HTTP server under one lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager.Start(ctx)
	handler.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		stop()
		log.Println("Shutting down gracefully, press Ctrl+C again to force")

		// Give in-flight requests 5 seconds to finish.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}
	log.Println("Server exiting")
}
