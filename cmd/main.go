// cmd/main.go is the application entry point.
// It wires together all layers and exposes the serve, reindex, migrate and
// token commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventhub/internal/auth"
	"github.com/Shivanand-hulikatti/eventhub/internal/config"
	"github.com/Shivanand-hulikatti/eventhub/internal/database"
	"github.com/Shivanand-hulikatti/eventhub/internal/handler"
	"github.com/Shivanand-hulikatti/eventhub/internal/logger"
	"github.com/Shivanand-hulikatti/eventhub/internal/repository"
	"github.com/Shivanand-hulikatti/eventhub/internal/search"
	"github.com/Shivanand-hulikatti/eventhub/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "eventhub",
		Short:        "Event discovery and registration service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to a YAML config file")

	load := func() (*config.Config, *zap.Logger, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, nil, err
		}
		log, err := logger.New(cfg.Log)
		if err != nil {
			return nil, nil, err
		}
		return cfg, log, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newReindexCmd(load),
		newMigrateCmd(load),
		newTokenCmd(load),
	)
	return root
}

type loader func() (*config.Config, *zap.Logger, error)

// app is every long-lived dependency of the service.
type app struct {
	pool         *pgxpool.Pool
	rdb          *redis.Client
	discovery    *service.DiscoveryService
	registration *service.RegistrationService
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	a.pool.Close()
}

func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("connected to postgres")
	a := &app{pool: pool}

	// ── 2. Search index, optionally behind the Redis cache ───────────────
	es, err := search.NewElasticClient(cfg.Search)
	if err != nil {
		pool.Close()
		return nil, err
	}
	var index search.Index = search.NewElasticIndex(es, cfg.Search.Index, log.Named("search"))
	if cfg.Redis.Addr != "" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, search results will not be cached", zap.Error(err))
		}
		index = search.NewCachedIndex(index, a.rdb, cfg.Search.CacheTTL, log.Named("cache"))
	}

	// ── 3. Wire up layers ────────────────────────────────────────────────
	eventRepo := repository.NewEventRepository(pool)
	regRepo := repository.NewRegistrationRepository(pool)
	ratingRepo := repository.NewRatingRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	a.registration = service.NewRegistrationService(userRepo, eventRepo, regRepo, ratingRepo, service.RegistrationOptions{
		Location:            cfg.Events.Location(),
		PastIncludesEndTime: cfg.Events.PastIncludesEndTime,
		StrictRatings:       cfg.Ratings.Strict,
	}, log.Named("registration"))
	a.discovery = service.NewDiscoveryService(eventRepo, regRepo, ratingRepo, index, a.registration, log.Named("discovery"))
	return a, nil
}

func jwtFromConfig(cfg config.AuthConfig) (auth.JWT, error) {
	if cfg.JWTSecret == "" {
		return auth.JWT{}, errors.New("auth.jwt_secret must be set")
	}
	return auth.JWT{Secret: []byte(cfg.JWTSecret), TokenTTL: cfg.TokenTTL}, nil
}

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			j, err := jwtFromConfig(cfg.Auth)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if cfg.Server.ReindexOnStart {
				n, err := a.discovery.Reindex(ctx)
				if err != nil {
					log.Warn("initial reindex failed, search may be stale", zap.Error(err))
				} else {
					log.Info("search index rebuilt", zap.Int("events", n))
				}
			}

			// ── 4. Build the router ───────────────────────────────────────────
			h := handler.NewEventHandler(a.discovery, a.registration, cfg.Server.GraphicsDir, log.Named("http"))
			router := handler.NewRouter(h, handler.RouterOptions{
				JWT:    j,
				WebDir: cfg.Server.WebDir,
				Log:    log.Named("access"),
			})

			// ── 5. Start server with graceful shutdown ────────────────────────
			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("server listening", zap.String("addr", cfg.Server.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			// Block until SIGINT or SIGTERM.
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			case <-quit:
			}

			log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			log.Info("server stopped")
			return nil
		},
	}
}
