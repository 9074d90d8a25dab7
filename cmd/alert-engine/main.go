package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/alerting/internal/config"
	"github.com/ehr/alerting/internal/domain/alert"
	"github.com/ehr/alerting/internal/domain/dose"
	"github.com/ehr/alerting/internal/domain/notify"
	"github.com/ehr/alerting/internal/domain/recipient"
	"github.com/ehr/alerting/internal/domain/scheduler"
	"github.com/ehr/alerting/internal/domain/subject"
	"github.com/ehr/alerting/internal/platform/auth"
	"github.com/ehr/alerting/internal/platform/clock"
	"github.com/ehr/alerting/internal/platform/db"
	"github.com/ehr/alerting/internal/platform/gateway"
	"github.com/ehr/alerting/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "alert-engine",
		Short: "Alert and reminder engine",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the scheduled checks once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.engine.RunScheduledChecks(ctx)
			if sum != nil {
				fmt.Printf("run %s: %d item(s), %d error(s)\n", sum.RunID, sum.Items, sum.Errors)
			}
			return err
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status, appliedAt := "pending", ""
					if s.Applied {
						status = "applied"
						appliedAt = s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// withMigrator runs fn against the Postgres store. The SQLite store migrates
// itself on open.
func withMigrator(dir string, fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseDriver != "postgres" {
		return fmt.Errorf("migrate requires DATABASE_DRIVER=postgres, got %q", cfg.DatabaseDriver)
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, dir))
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid config: %w", err)
	}
	return cfg, newLogger(cfg.Env), nil
}

// stores holds the repositories for the configured driver.
type stores struct {
	alerts   alert.Repository
	doses    dose.Repository
	subjects subject.Repository
	prefs    recipient.Repository
	ledger   notify.Ledger
	pinger   db.Pinger
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.DatabaseDriver {
	case "sqlite":
		conn, err := db.OpenSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return sqliteStores(conn), nil
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return pgStores(pool), nil
	}
}

func sqliteStores(conn *sqlx.DB) *stores {
	return &stores{
		alerts:   alert.NewRepoSQLite(conn),
		doses:    dose.NewRepoSQLite(conn),
		subjects: subject.NewRepoSQLite(conn),
		prefs:    recipient.NewRepoSQLite(conn),
		ledger:   notify.NewLedgerSQLite(conn),
		pinger:   db.SQLitePinger{DB: conn},
		close:    func() { conn.Close() },
	}
}

func pgStores(pool *pgxpool.Pool) *stores {
	return &stores{
		alerts:   alert.NewRepoPG(pool),
		doses:    dose.NewRepoPG(pool),
		subjects: subject.NewRepoPG(pool),
		prefs:    recipient.NewRepoPG(pool),
		ledger:   notify.NewLedgerPG(pool),
		pinger:   pool,
		close:    pool.Close,
	}
}

func awsConfig(cfg *config.Config) gateway.AWSConfig {
	return gateway.AWSConfig{
		Region:          cfg.AWSRegion,
		EndpointURL:     cfg.AWSEndpointURL,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	}
}

// buildGateway registers a sender for every configured channel. Development
// without WhatsApp credentials gets a recording mock instead.
func buildGateway(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*gateway.Router, error) {
	router := gateway.NewRouter(gateway.NewCatalog())
	for _, ch := range cfg.NotifyChannels {
		switch gateway.Channel(ch) {
		case gateway.ChannelWhatsApp:
			if cfg.WhatsAppAccessToken == "" && cfg.IsDev() {
				logger.Warn().Msg("WHATSAPP_ACCESS_TOKEN not set; whatsapp messages are recorded, not sent")
				router.Register(gateway.ChannelWhatsApp, &gateway.MockSender{})
				continue
			}
			router.Register(gateway.ChannelWhatsApp, gateway.NewWhatsAppSender(gateway.WhatsAppConfig{
				BaseURL:       cfg.WhatsAppAPIURL,
				PhoneNumberID: cfg.WhatsAppPhoneNumberID,
				AccessToken:   cfg.WhatsAppAccessToken,
				Language:      cfg.WhatsAppLanguage,
			},
				gateway.WithHTTPClient(&http.Client{Timeout: cfg.GatewayTimeout}),
				gateway.WithRateLimit(cfg.GatewayRPS, int(cfg.GatewayRPS)+1),
			))
		case gateway.ChannelSMS:
			awsCfg, err := gateway.LoadAWS(ctx, awsConfig(cfg))
			if err != nil {
				return nil, err
			}
			router.Register(gateway.ChannelSMS, gateway.NewSMSSender(gateway.NewSNSClient(awsCfg)))
		default:
			return nil, fmt.Errorf("unknown notify channel %q", ch)
		}
	}
	return router, nil
}

func buildLedger(ctx context.Context, cfg *config.Config, sql notify.Ledger) (notify.Ledger, error) {
	if cfg.SendLedger != "dynamodb" {
		return sql, nil
	}
	awsCfg, err := gateway.LoadAWS(ctx, awsConfig(cfg))
	if err != nil {
		return nil, err
	}
	return notify.NewLedgerDynamo(notify.NewDynamoClient(awsCfg), cfg.DynamoTableSendRecords), nil
}

// app is the wired engine shared by serve and check.
type app struct {
	cfg        *config.Config
	log        zerolog.Logger
	stores     *stores
	alerts     *alert.Service
	doses      *dose.Service
	prefs      *recipient.Service
	dispatcher *notify.Dispatcher
	engine     *scheduler.Engine
	clock      clock.Clock
}

func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	ledger, err := buildLedger(ctx, cfg, st.ledger)
	if err != nil {
		st.close()
		return nil, err
	}
	router, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		st.close()
		return nil, err
	}

	clk := clock.Real{}
	gen := alert.NewGenerator(st.alerts, clk, loc)
	alertSvc := alert.NewService(st.alerts, gen, clk)
	prefsSvc := recipient.NewService(st.prefs, clk, logger)

	channels := make([]gateway.Channel, 0, len(cfg.NotifyChannels))
	for _, ch := range cfg.NotifyChannels {
		channels = append(channels, gateway.Channel(ch))
	}
	dispatcher := notify.NewDispatcher(prefsSvc, ledger, router,
		notify.WithClock(clk),
		notify.WithLocation(loc),
		notify.WithTimeout(cfg.GatewayTimeout),
		notify.WithLogger(logger),
		notify.WithChannels(channels...),
	)
	prefsSvc.SetWelcomer(dispatcher)

	engine := scheduler.NewEngine(alertSvc, dispatcher, st.subjects, st.doses, clk, scheduler.Config{
		Concurrency: cfg.PollConcurrency,
		Timeout:     cfg.PollTimeout,
		Location:    loc,
	}, logger)

	return &app{
		cfg:        cfg,
		log:        logger,
		stores:     st,
		alerts:     alertSvc,
		doses:      dose.NewService(st.doses, engine, clk, logger),
		prefs:      prefsSvc,
		dispatcher: dispatcher,
		engine:     engine,
		clock:      clk,
	}, nil
}

func (a *app) Close() {
	a.stores.close()
}

// routes builds the echo server with every route and middleware attached.
func (a *app) routes() *echo.Echo {
	cfg := a.cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(a.log))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.DevUserHeader},
	}))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(a.stores.pinger))

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
	}
	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		apiV1.Use(auth.JWTMiddleware(jwtCfg))
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	internal := e.Group("/internal", auth.SharedSecret(cfg.CronSecret))

	alertHandler := alert.NewHandler(a.alerts, a.engine)
	alertHandler.RegisterRoutes(apiV1)
	alertHandler.RegisterInternalRoutes(internal)
	dose.NewHandler(a.doses, a.clock).RegisterRoutes(apiV1)
	recipient.NewHandler(a.prefs).RegisterRoutes(apiV1)
	scheduler.NewHandler(a.engine).RegisterRoutes(internal)

	return e
}

func runServer() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build engine")
	}
	defer a.Close()
	logger.Info().Str("driver", cfg.DatabaseDriver).Str("ledger", cfg.SendLedger).Msg("engine ready")

	if cfg.PollInterval > 0 {
		go a.engine.Start(ctx, cfg.PollInterval)
		logger.Info().Dur("interval", cfg.PollInterval).Msg("in-process scheduled checks enabled")
	}

	e := a.routes()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
