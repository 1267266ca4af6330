package cli

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

	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/rpattn/patientlist/internal/api"
	"github.com/rpattn/patientlist/internal/config"
	"github.com/rpattn/patientlist/internal/db"
	"github.com/rpattn/patientlist/internal/export"
	"github.com/rpattn/patientlist/internal/fields"
	"github.com/rpattn/patientlist/internal/listdata"
	"github.com/rpattn/patientlist/internal/logging"
	"github.com/rpattn/patientlist/internal/middleware"
	"github.com/rpattn/patientlist/internal/repository"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr    string
	Migrate bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the patient list HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "apply pending migrations before serving")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg, found, err := config.Load(opts.ConfigDir)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}

	logger := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info("configuration loaded", "config_file", found, "database_host", cfg.Database.Host)

	if opts.Migrate {
		if err := db.RunMigrations(cfg.Database, 0, logger); err != nil {
			return err
		}
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	registry, err := loadRegistry(ctx, repository.NewAttributeTypeRepository(conn.Pool))
	if err != nil {
		return err
	}
	logger.Info("field registry built", "fields", registry.Len())

	handler := newAPIHandler(cfg, conn, registry, logger)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      corsHandler.Handler(middleware.LoggingMiddleware(logger)(handler)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

func loadRegistry(ctx context.Context, types repository.AttributeTypeRepository) (*fields.Registry, error) {
	personTypes, err := types.PersonAttributeTypes(ctx)
	if err != nil {
		return nil, err
	}
	visitTypes, err := types.VisitAttributeTypes(ctx)
	if err != nil {
		return nil, err
	}
	return fields.Standard(personTypes, visitTypes).Build(), nil
}

func newAPIHandler(cfg config.Config, conn *db.Connection, registry *fields.Registry, logger *slog.Logger) http.Handler {
	lists := repository.NewPatientListRepository(conn.Pool)
	patients := repository.NewPatientRepository(conn.Pool)
	executor := repository.NewListQueryExecutor(conn.Pool, patients, repository.NewVisitRepository(conn.Pool), logger)
	data := listdata.NewService(registry, executor, logger)
	exports := export.NewService(data, registry, export.WithPageSize(cfg.Paging.MaxPageSize), export.WithLogger(logger))

	handler := api.NewHandler(
		lists,
		data,
		registry,
		export.NewHTTPHandler(exports, lists),
		api.Paging{DefaultPageSize: cfg.Paging.DefaultPageSize, MaxPageSize: cfg.Paging.MaxPageSize},
		logger,
	)
	return middleware.DataLoaderMiddleware(patients)(handler)
}
