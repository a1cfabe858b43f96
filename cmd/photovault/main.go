package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/StrixzIV/adv-compro-finals/internal/albums"
	"github.com/StrixzIV/adv-compro-finals/internal/auth"
	"github.com/StrixzIV/adv-compro-finals/internal/config"
	"github.com/StrixzIV/adv-compro-finals/internal/derive"
	"github.com/StrixzIV/adv-compro-finals/internal/logging"
	"github.com/StrixzIV/adv-compro-finals/internal/objectstore"
	"github.com/StrixzIV/adv-compro-finals/internal/objectstore/miniostore"
	"github.com/StrixzIV/adv-compro-finals/internal/objectstore/s3store"
	"github.com/StrixzIV/adv-compro-finals/internal/photos"
	"github.com/StrixzIV/adv-compro-finals/internal/router"
	"github.com/StrixzIV/adv-compro-finals/internal/search"
	"github.com/StrixzIV/adv-compro-finals/internal/storage/sqlstore"
	"github.com/StrixzIV/adv-compro-finals/internal/users"
)

const shutdownTimeout = 15 * time.Second

var tokenEmail string

var rootCmd = &cobra.Command{
	Use:           "photovault",
	Short:         "Photo storage service with trash, favorites and albums",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE:  runServe,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a bearer token for an existing user",
	Long: `Looks up a registered user by email and prints a signed bearer token,
valid for PHOTOVAULT_TOKEN_TTL. Intended for local development and scripts.

Example:
  photovault token --email ann@example.com`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email of the user to mint a token for")
	_ = tokenCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(serveCmd, tokenCmd)
}

func main() {
	bootstrapLogger := logging.New(slog.LevelInfo)

	if err := rootCmd.Execute(); err != nil {
		bootstrapLogger.Error("photovault failed", "error", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlstore.Open(ctx, sqlstore.Dialect(cfg.DB.Driver), cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("open %s catalog: %w", cfg.DB.Driver, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close catalog", "error", err)
		}
	}()

	objects, err := openObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s object store: %w", cfg.ObjectStore.Driver, err)
	}
	if cfg.ObjectStore.Driver == config.ObjectStoreMemory {
		logger.Warn("using in-memory object store; uploads are lost on restart")
	}

	index := search.New()
	photoService := photos.NewService(logger, store.Photos(), objects, derive.New(cfg.Photos.ThumbnailSize, derive.WithMaxPixels(cfg.Photos.MaxImagePixels)), index, photos.Config{
		MaxUploadBytes: cfg.Photos.MaxUploadBytes,
		PurgeWorkers:   cfg.Photos.PurgeWorkers,
	})
	if err := photoService.RebuildIndex(ctx); err != nil {
		return err
	}

	r := router.New(cfg, logger, router.Services{
		Photos:  photoService,
		Albums:  albums.NewService(logger, store.Albums()),
		Users:   users.NewService(logger, store.Users()),
		Store:   store,
		Objects: objects,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr, "db", cfg.DB.Driver, "objectStore", cfg.ObjectStore.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := cmd.Context()
	store, err := sqlstore.Open(ctx, sqlstore.Dialect(cfg.DB.Driver), cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("open %s catalog: %w", cfg.DB.Driver, err)
	}
	defer store.Close()

	user, err := users.NewService(logging.New(cfg.LogLevel), store.Users()).Lookup(ctx, tokenEmail)
	if err != nil {
		return fmt.Errorf("find user %q: %w", tokenEmail, err)
	}

	token, err := auth.GenerateToken(user.ID, []byte(cfg.JWTSecret), cfg.TokenTTL)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

// openObjectStore builds the configured backend, bounded by the configured
// per-call timeout.
func openObjectStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	var (
		store objectstore.Store
		err   error
	)

	switch cfg.ObjectStore.Driver {
	case config.ObjectStoreMemory:
		store = objectstore.NewMemory()
	case config.ObjectStoreS3:
		store, err = s3store.New(ctx, s3store.Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
	case config.ObjectStoreMinio:
		store, err = miniostore.New(miniostore.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unsupported object store driver %q", cfg.ObjectStore.Driver)
	}
	if err != nil {
		return nil, err
	}

	return objectstore.WithTimeout(store, cfg.ObjectStore.Timeout), nil
}
