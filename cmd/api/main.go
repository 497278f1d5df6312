package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/trash2cash/internal/api"
	"github.com/punchamoorthee/trash2cash/internal/auth"
	"github.com/punchamoorthee/trash2cash/internal/config"
	"github.com/punchamoorthee/trash2cash/internal/media"
	"github.com/punchamoorthee/trash2cash/internal/service"
	"github.com/punchamoorthee/trash2cash/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to open store: %v", err)
	}
	defer st.Close()

	uploader, err := openMedia(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to configure media: %v", err)
	}

	authn, err := auth.NewAuthenticator(cfg.JWTSecret)
	if err != nil {
		log.Fatal(err)
	}

	// Initialize Layers
	listings := service.NewListingService(st, uploader, service.WithMaxImageBytes(cfg.MaxUploadBytes))
	requests := service.NewRequestService(st)
	handler := api.NewHandler(listings, requests, uploader, authn, cfg.MaxUploadBytes)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("Server starting on :%s (env=%s store=%s media=%s)", cfg.Port, cfg.Env, cfg.StoreDriver, cfg.MediaDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == "memory" {
		log.Println("using in-memory store; data is lost on restart")
		return store.NewMemory(), nil
	}
	pg, err := store.NewPostgres(ctx, cfg.DBSource)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

func openMedia(ctx context.Context, cfg *config.Config) (media.Uploader, error) {
	if cfg.MediaDriver == "s3" {
		s3, err := media.NewS3(ctx, media.S3Config{
			Bucket:        cfg.MediaBucket,
			Region:        cfg.MediaRegion,
			Endpoint:      cfg.MediaEndpoint,
			PathStyle:     cfg.MediaPathStyle,
			PublicBaseURL: cfg.MediaPublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	return media.NewMemory(cfg.MediaPublicBaseURL), nil
}
