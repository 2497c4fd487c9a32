package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/jmerrifield20/NexusTrust/internal/alerts"
	"github.com/jmerrifield20/NexusTrust/internal/cache"
	"github.com/jmerrifield20/NexusTrust/internal/health"
	"github.com/jmerrifield20/NexusTrust/internal/identity"
	"github.com/jmerrifield20/NexusTrust/internal/trust/handler"
	"github.com/jmerrifield20/NexusTrust/internal/trust/repository"
	"github.com/jmerrifield20/NexusTrust/internal/trust/service"
	"github.com/jmerrifield20/NexusTrust/internal/trustledger"
)

// grpcServiceName is the name reported by the gRPC health service.
const grpcServiceName = "nexustrust.TrustService"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("trustd exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("trustd")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.grpc_port", 9090)
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.rate_limit_rps", 20)
	viper.SetDefault("database.url", "")
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("cache.ttl", "5m")
	viper.SetDefault("cache.stale_ttl", "24h")
	viper.SetDefault("signing.key_file", "")
	viper.SetDefault("signing.passphrase", "")
	viper.SetDefault("signing.generate", false)
	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.issuer", "nexustrust")
	viper.SetDefault("auth.token_ttl", "1h")
	viper.SetDefault("scoring.max_append_retries", 5)
	viper.SetDefault("health.check_interval", "30s")
	viper.SetDefault("health.probe_timeout", "5s")
	viper.SetDefault("health.fail_threshold", 3)
	viper.SetDefault("alerts.targets", []map[string]string{})

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Signing key ──────────────────────────────────────────────────────────
	keys, err := loadSigningKey(
		viper.GetString("signing.key_file"),
		viper.GetString("signing.passphrase"),
		viper.GetBool("signing.generate"),
		logger,
	)
	if err != nil {
		return err
	}

	// ── Storage ──────────────────────────────────────────────────────────────
	var (
		store  repository.DeclarationStore
		ledger trustledger.Ledger
		probes []health.Probe
	)
	if dbURL := viper.GetString("database.url"); dbURL != "" {
		db, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer db.Close()

		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")

		store = repository.NewDeclarationRepository(db)
		ledger = trustledger.NewPostgresLedger(db, logger)
		probes = append(probes, health.Probe{Name: "postgres", Critical: true, Check: db.Ping})
	} else {
		logger.Warn("database.url not set, declarations and audit chains are kept in memory")
		store = repository.NewMemoryDeclarationStore()
		ledger = trustledger.New()
	}

	// ── Score cache ──────────────────────────────────────────────────────────
	var scoreCache cache.Cache
	if addr := viper.GetString("redis.addr"); addr != "" {
		rc := cache.NewRedisFromAddr(addr, viper.GetString("redis.password"), viper.GetInt("redis.db"), "nexustrust:")
		defer rc.Close() //nolint:errcheck
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unreachable at startup, score reads will miss", zap.Error(err))
		}
		scoreCache = rc
		probes = append(probes, health.Probe{Name: "redis", Check: rc.Ping})
	} else {
		mc := cache.NewMemory()
		go mc.Run(ctx, time.Minute)
		scoreCache = mc
	}

	// ── Alerts ───────────────────────────────────────────────────────────────
	var targets []alerts.Target
	if err := viper.UnmarshalKey("alerts.targets", &targets); err != nil {
		return fmt.Errorf("parse alerts.targets: %w", err)
	}
	dispatcher := alerts.NewDispatcher(targets, logger)
	dispatcher.SetMetricsRecorder(handler.RecordAlertDelivery)
	defer dispatcher.Wait()

	// ── Engine ───────────────────────────────────────────────────────────────
	engine := service.New(store, ledger, keys, service.Config{
		CacheTTL:         viper.GetDuration("cache.ttl"),
		StaleTTL:         viper.GetDuration("cache.stale_ttl"),
		MaxAppendRetries: viper.GetInt("scoring.max_append_retries"),
	}, logger)
	engine.SetCache(scoreCache)
	engine.SetNotifier(dispatcher)
	engine.SetHooks(handler.EngineHooks())

	n, err := engine.VerifyAllChains(ctx)
	if err != nil {
		logger.Warn("audit chain integrity check FAILED", zap.Int("chains", n), zap.Error(err))
	} else {
		logger.Info("audit chains verified", zap.Int("chains", n))
	}

	var tokens *identity.TokenIssuer
	if viper.GetBool("auth.enabled") {
		tokens = identity.NewTokenIssuer(keys.PrivateKey, viper.GetString("auth.issuer"), viper.GetDuration("auth.token_ttl"))
		logger.Info("bearer token auth enabled", zap.String("issuer", viper.GetString("auth.issuer")))
	}

	// ── gRPC health ──────────────────────────────────────────────────────────
	grpcPort := viper.GetInt("server.grpc_port")
	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
	if err != nil {
		return fmt.Errorf("gRPC listen on :%d: %w", grpcPort, err)
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	healthSvc := grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSvc)
	healthSvc.SetServingStatus(grpcServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	// ── Collaborator health ──────────────────────────────────────────────────
	checker := health.New(probes, health.Config{
		CheckInterval: viper.GetDuration("health.check_interval"),
		ProbeTimeout:  viper.GetDuration("health.probe_timeout"),
		FailThreshold: viper.GetInt("health.fail_threshold"),
	}, logger)
	checker.SetMetricsRecord(handler.RecordHealthCheck)
	checker.SetAlert(dispatcher.Dispatch)
	checker.SetServing(func(serving bool) {
		st := grpc_health_v1.HealthCheckResponse_SERVING
		if !serving {
			st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
		healthSvc.SetServingStatus("", st)
		healthSvc.SetServingStatus(grpcServiceName, st)
	})
	go checker.Start(ctx)

	// ── HTTP ─────────────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := viper.GetStringSlice("server.cors_origins")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	if rps := viper.GetInt("server.rate_limit_rps"); rps > 0 {
		router.Use(handler.RateLimiter(ctx, rps, rps*2))
	}
	router.Use(handler.PrometheusMiddleware())
	router.Use(handler.RequestLogger(logger))

	router.GET("/healthz", handler.HealthHandler(checker))
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	handler.NewTrustHandler(engine, tokens, logger).Register(v1)
	handler.NewLedgerHandler(ledger, engine, logger).Register(v1)
	handler.NewKeysHandler(engine.PublicKey()).Register(v1)

	httpPort := viper.GetInt("server.port")
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Start both servers ───────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("trustd gRPC health listening", zap.Int("port", grpcPort))
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Fatal("gRPC serve error", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("trustd HTTP listening", zap.Int("port", httpPort), zap.String("public_key", keys.PublicKeyHex()))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down trustd...")
	healthSvc.Shutdown()
	cancel() // stop health checks, cache eviction and limiter cleanup

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()

	logger.Info("trustd stopped")
	return nil
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// loggingInterceptor returns a gRPC unary server interceptor that logs each call.
func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		logger.Info("grpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}
