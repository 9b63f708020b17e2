package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stempede/stempede-api/internal"
	"github.com/stempede/stempede-api/internal/audit"
	"github.com/stempede/stempede-api/internal/auth"
	authpg "github.com/stempede/stempede-api/internal/auth/postgres"
	"github.com/stempede/stempede-api/internal/cart"
	cartpg "github.com/stempede/stempede-api/internal/cart/postgres"
	"github.com/stempede/stempede-api/internal/catalog"
	catalogpg "github.com/stempede/stempede-api/internal/catalog/postgres"
	"github.com/stempede/stempede-api/internal/core/clock"
	"github.com/stempede/stempede-api/internal/core/events"
	"github.com/stempede/stempede-api/internal/order"
	orderpg "github.com/stempede/stempede-api/internal/order/postgres"
	"github.com/stempede/stempede-api/internal/transport/rest"
	"github.com/stempede/stempede-api/internal/user"
	userpg "github.com/stempede/stempede-api/internal/user/postgres"
	"github.com/stempede/stempede-api/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Router *chi.Mux
	Bus    *events.EventBus
	Relay  *audit.Relay
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.Bus.Drain(ctx); err != nil {
			deps.Logger.Warn("event bus drain timed out", "error", err)
		}
		if deps.Relay != nil {
			deps.Relay.Close()
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"), config.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	clk := clock.System{}
	bus := events.NewEventBus(lg)

	var relay *audit.Relay
	if config.Broker.Enabled {
		relay = audit.NewRelay(config.Broker, lg)
		relay.Register(bus)
	}

	authStore := authpg.NewAuthStore(gormDB)
	issuer, err := auth.NewTokenIssuer(config.Security, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to build token issuer: %w", err)
	}

	ledger := auth.NewLedger(authStore, issuer, clk, lg)
	synchronizer := auth.NewPermissionSynchronizer(authStore, lg)

	// Missing reference roles or permissions would surface as runtime
	// registration failures; refuse to start instead.
	if err := auth.VerifyReferenceData(authStore); err != nil {
		return nil, fmt.Errorf("reference data check failed: %w", err)
	}

	opts := []auth.ServiceOption{auth.WithEventBus(bus)}
	healthExtras := map[string]rest.Pinger{}
	if config.Google.ClientID != "" {
		validator, err := auth.NewGoogleValidator(config.Google, clk, lg)
		if err != nil {
			return nil, fmt.Errorf("failed to build google validator: %w", err)
		}
		opts = append(opts, auth.WithIdentityValidator(validator))
	}
	if config.Denylist.Enabled {
		denylist, err := auth.NewRedisDenylist(config.Denylist, clk)
		if err != nil {
			return nil, fmt.Errorf("failed to build denylist: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := denylist.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("failed to reach denylist redis: %w", err)
		}
		opts = append(opts, auth.WithDenylist(denylist))
		healthExtras["redis"] = denylist
	}

	hasher := auth.NewBcryptHasher(config.Security.BCryptCost)
	authService := auth.NewService(authStore, hasher, issuer, ledger, synchronizer, clk, lg, opts...)
	authHandler := auth.NewHandler(authService)

	userService := user.NewService(userpg.NewUserRepository(gormDB), bus, clk, lg)
	userHandler := user.NewHandler(userService)

	catalogService := catalog.NewService(catalogpg.NewCatalogRepository(gormDB), lg)
	catalogHandler := catalog.NewHandler(catalogService)

	cartService := cart.NewService(cartpg.NewCartRepository(gormDB), clk, lg)
	cartHandler := cart.NewHandler(cartService)

	orderService := order.NewService(orderpg.NewOrderRepository(gormDB), clk, lg)
	orderHandler := order.NewHandler(orderService)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, healthExtras, authHandler, userHandler, catalogHandler, cartHandler, orderHandler, lg)

	return &Dependencies{
		Config: config,
		DB:     db,
		Router: router,
		Bus:    bus,
		Relay:  relay,
		Logger: lg,
	}, nil
}

// initDB opens the pgx-backed connection pool used for health checks and as
// the underlying connection for the ORM.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
