package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/maloquacious/semver"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poi-map/config"
	"poi-map/controller"
	"poi-map/handlers"
	"poi-map/logger"
	"poi-map/markers"
	"poi-map/schema"
	"poi-map/services"
	"poi-map/storage"
	"poi-map/utils/errors"
)

var version = semver.Version{Minor: 1, PreRelease: "alpha", Build: semver.Commit()}

var shutdownTO time.Duration

func main() {
	rootCmd := &cobra.Command{
		Use:          "poi-map <config.json>",
		Short:        "Show, filter, add and remove points of interest on a map",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.Flags().DurationVar(&shutdownTO, "shutdown-timeout", 15*time.Second, "graceful shutdown timeout")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}

	hashCmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash to use as auth.password_hash",
		Long:  "Print the bcrypt hash to use as auth.password_hash. Without an argument the password is read from the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHashPassword,
	}

	rootCmd.AddCommand(versionCmd, hashCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}
	hash, err := services.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

// runServe loads the configuration and the POI table, then serves the map
// until interrupted.
func runServe(cmd *cobra.Command, args []string) (err error) {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()
	log.Info("Config successfully parsed",
		zap.String("version", version.String()),
		zap.String("title", cfg.Title),
		zap.String("database", cfg.Database),
		zap.Strings("categories", cfg.CategoryNames()),
		zap.String("loglevel", cfg.LogLevel),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.Bool("auth", cfg.Auth.Enabled()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	table, err := storage.Open(ctx, cfg.Database, storage.Options{
		MongoDatabase:   cfg.Mongo.Database,
		MongoCollection: cfg.Mongo.Collection,
	})
	if err != nil {
		return err
	}
	store := services.NewPOIService(table, schema.NewValidator(cfg.CategoryNames()), log)

	redisClient, err := services.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		store.Close()
		return err
	}
	geo := services.NewGeoService(redisClient, log)
	defer func() {
		if closeErr := multierr.Combine(store.Close(), geo.Close()); closeErr != nil {
			log.Error("Failed to release resources", zap.Error(closeErr))
			err = multierr.Append(err, closeErr)
		}
	}()
	store.OnChange(geo.Sync)

	if _, err := store.Load(ctx); err != nil {
		return err
	}

	var iconCategories []string
	for _, name := range cfg.CategoryNames() {
		if cfg.Categories[name] != "" {
			iconCategories = append(iconCategories, name)
		}
	}
	projector := markers.NewProjector(handlers.IconPrefix, iconCategories)
	page := handlers.NewPageHandler(cfg, log)
	router := handlers.NewRouter(handlers.Deps{
		Config:     cfg,
		Logger:     log,
		Store:      store,
		Geo:        geo,
		Auth:       services.NewAuthService(cfg.Auth),
		Controller: controller.New(store, projector, log),
		Projector:  projector,
		Page:       page,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		page.SetReady(true)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		page.SetReady(false)
		log.Info("Shutting down", zap.Duration("timeout", shutdownTO))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTO)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server stopped")
	return nil
}
