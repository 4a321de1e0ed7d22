package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/handlers"
	"github.com/Ramsey-B/clover/pkg/booking"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/feed"
	"github.com/Ramsey-B/clover/pkg/health"
	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/repositories"
	"github.com/Ramsey-B/clover/pkg/scheduler"
	"github.com/Ramsey-B/clover/pkg/startup"
	feedsync "github.com/Ramsey-B/clover/pkg/sync"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

var version = "dev"

func main() {
	// Load .env in dev; environment wins in real deployments.
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(&cfg)
	logger.Infof("Starting %s (version %s)", cfg.AppName, version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp := initTracing(ctx, &cfg, logger)
	if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	var (
		db          database.DB
		sqlxDB      *sqlx.DB
		redisClient *redis.Client
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(&dependency{
		name: "database",
		start: func(ctx context.Context) error {
			var err error
			sqlxDB, err = sqlx.ConnectContext(ctx, cfg.DatabaseDriver, postgresDSN(&cfg))
			if err != nil {
				return err
			}
			sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
			sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
			sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
			db = database.NewDatabaseInstance(sqlxDB, logger)
			return nil
		},
		stop: func(ctx context.Context) error {
			if db != nil {
				return db.Close()
			}
			return nil
		},
	})
	boot.AddDependency(&dependency{
		name: "migrations",
		deps: []string{"database"},
		start: func(ctx context.Context) error {
			driver, err := migratepg.WithInstance(sqlxDB.DB, &migratepg.Config{})
			if err != nil {
				return err
			}
			ms := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
			})
			return ms.Migrate(cfg.DatabaseName, driver)
		},
		stop: func(ctx context.Context) error { return nil },
	})
	boot.AddDependency(&dependency{
		name: "redis",
		start: func(ctx context.Context) error {
			var err error
			redisClient, err = redis.NewClient(redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			return err
		},
		stop: func(ctx context.Context) error {
			if redisClient != nil {
				return redisClient.Close()
			}
			return nil
		},
	})

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}

	producer := kafka.NewProducer(kafka.ParseConfig(cfg.KafkaBrokers, cfg.KafkaCalendarTopic), logger)
	defer producer.Close()

	// Repositories and engine
	feedRepo := repositories.NewFeedSourceRepository(db, logger)
	eventRepo := repositories.NewCalendarEventRepository(db, logger)

	locker := redis.NewLocker(redisClient, "feedsync:")
	cache := redis.NewCalendarCache(redisClient, cfg.CalendarCacheTTL)

	httpClient := httpclient.NewClient(httpclient.Config{
		Timeout:         cfg.FeedFetchTimeout,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
		MaxResponseSize: cfg.FeedMaxBodyBytes,
	}, logger)

	fetcher := feed.NewFetcher(httpClient, logger)
	parser := feed.NewParser(logger, cfg.FeedRecurrenceHorizon)
	generator := feed.NewGenerator(logger)

	reconciler := feedsync.NewReconciler(db, eventRepo, logger)
	orchestrator := feedsync.NewOrchestrator(feedRepo, fetcher, parser, reconciler, locker, cache, producer, cfg.SyncLockTTL, logger)

	detector := booking.NewDetector(eventRepo, logger)
	resolver := booking.NewStayResolver(eventRepo, booking.StayConfig{
		CheckInHour:    cfg.StayCheckInHour,
		CheckOutHour:   cfg.StayCheckOutHour,
		ArrivalGrace:   cfg.StayArrivalGrace,
		DepartureGrace: cfg.StayDepartureGrace,
	}, logger)
	bookingService := booking.NewService(db, feedRepo, eventRepo, detector, cache, producer, logger)

	var syncScheduler *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		syncScheduler = scheduler.NewScheduler(orchestrator, cfg.SyncCronSchedule, logger)
		if err := syncScheduler.Start(); err != nil {
			logger.WithError(err).Error("Failed to start sync scheduler")
			os.Exit(1)
		}
	}

	checker := health.NewChecker(db, redisClient.Redis(), version)

	e := newServer(&cfg, logger)
	api := e.Group("/api/v1")
	handlers.NewFeedSourceHandler(feedRepo, orchestrator).RegisterRoutes(api)
	handlers.NewBookingHandler(bookingService, resolver).RegisterRoutes(api)
	handlers.NewExportHandler(eventRepo, generator, cache).RegisterRoutes(e)
	api.GET("/health", checker.HealthHandler)
	e.GET("/live", checker.LivenessHandler)
	e.GET("/ready", checker.ReadinessHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server stopped unexpectedly")
			stop()
		}
	}()
	checker.SetReady(true)

	<-ctx.Done()
	logger.Info("Shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if syncScheduler != nil {
		syncScheduler.Stop()
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown failed")
	}
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Dependency shutdown failed")
	}
}

// dependency adapts plain start/stop funcs to the startup graph
type dependency struct {
	name  string
	deps  []string
	start func(ctx context.Context) error
	stop  func(ctx context.Context) error
}

func (d *dependency) GetName() string                 { return d.name }
func (d *dependency) DependsOn() []string             { return d.deps }
func (d *dependency) Start(ctx context.Context) error { return d.start(ctx) }
func (d *dependency) Stop(ctx context.Context) error  { return d.stop(ctx) }

func newLogger(cfg *config.Config) ectologger.Logger {
	var zapCfg zap.Config
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	zapLogger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func newServer(cfg *config.Config, logger ectologger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	return e
}

func initTracing(ctx context.Context, cfg *config.Config, logger ectologger.Logger) *sdktrace.TracerProvider {
	if !cfg.OTLPEnabled {
		return nil
	}

	var exporter sdktrace.SpanExporter
	if cfg.OTLPProtocol == "console" {
		exporter = exporters.NewConsoleExporter(logger)
	} else {
		otlpExporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			logger.WithError(err).Warn("Failed to create OTLP exporter, tracing disabled")
			return nil
		}
		exporter = otlpExporter
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(sdkresource.NewSchemaless(
			attribute.String("service.name", cfg.AppName),
			attribute.String("service.version", version),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	tracing.SetTracer(tp.Tracer(cfg.AppName))

	logger.Infof("OTLP tracing enabled (%s via %s)", cfg.OTLPEndpoint, cfg.OTLPProtocol)
	return tp
}

func postgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword,
		cfg.DatabaseName, cfg.DatabaseSSLMode)
}
