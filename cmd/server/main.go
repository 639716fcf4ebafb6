package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	depsclient "trustex/internal/dependents/client"
	depshandler "trustex/internal/dependents/handler"
	depsmetrics "trustex/internal/dependents/metrics"
	depsservice "trustex/internal/dependents/service"
	depsstore "trustex/internal/dependents/store"
	exhandler "trustex/internal/exchange/handler"
	exmetrics "trustex/internal/exchange/metrics"
	exservice "trustex/internal/exchange/service"
	exstore "trustex/internal/exchange/store"
	httpapi "trustex/internal/http"
	jwttoken "trustex/internal/jwt_token"
	"trustex/internal/platform/config"
	"trustex/internal/platform/httpserver"
	"trustex/internal/platform/kafka"
	"trustex/internal/platform/logger"
	"trustex/internal/platform/metrics"
	"trustex/internal/platform/postgres"
	"trustex/internal/platform/redis"
	ratemetrics "trustex/internal/ratelimit/metrics"
	ratemw "trustex/internal/ratelimit/middleware"
	ratemodels "trustex/internal/ratelimit/models"
	ratestore "trustex/internal/ratelimit/store"
	vcache "trustex/internal/verification/cache"
	vhandler "trustex/internal/verification/handler"
	"trustex/internal/verification/legacy"
	vmetrics "trustex/internal/verification/metrics"
	"trustex/internal/verification/scoring"
	vservice "trustex/internal/verification/service"
	vstore "trustex/internal/verification/store"
	"trustex/internal/verification/tables"
	audit "trustex/pkg/platform/audit"
	auditpublisher "trustex/pkg/platform/audit/publisher"
	auditkafka "trustex/pkg/platform/audit/publishers/kafka"
	auditmemory "trustex/pkg/platform/audit/store/memory"
	auditpostgres "trustex/pkg/platform/audit/store/postgres"
	"trustex/pkg/platform/circuit"
	"trustex/pkg/platform/middleware/pushkey"
)

// infra holds the optional backing services. Nil fields mean the in-memory
// implementation is used.
type infra struct {
	db    *sql.DB
	pool  *postgres.Pool
	redis *redis.Client
	kafka *kgo.Client
}

func (i *infra) Close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.pool != nil {
		i.pool.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func (i *infra) healthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}
	if i.db != nil {
		checks["postgres"] = i.db.PingContext
	}
	if i.pool != nil {
		checks["postgres_pool"] = i.pool.Ping
	}
	if i.redis != nil {
		checks["redis"] = i.redis.Health
	}
	if i.kafka != nil {
		checks["kafka"] = i.kafka.Ping
	}
	return checks
}

// main wires dependencies, exposes the HTTP router and runs the background
// batch driver and dependent scanner until a shutdown signal arrives.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if cfg.UsesDefaultSigningKey() {
		log.Warn("using the default JWT signing key; set JWT_SIGNING_KEY outside development")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	deps, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	m := metrics.New()
	publisher := buildPublisher(ctx, cfg, deps, log)

	exchange, err := buildExchange(cfg, deps, log, publisher, m)
	if err != nil {
		return err
	}

	dependents, err := buildDependents(cfg, deps, log, publisher, m, exchange)
	if err != nil {
		return err
	}

	verifier, err := buildVerification(cfg, deps, log, publisher, m, exchange, dependents)
	if err != nil {
		return err
	}
	dependents.SetVerifier(verifier)

	pushHash, err := pushKeyHash(cfg.Dependents)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience,
		jwttoken.WithLeeway(cfg.Ledger.PermittedDrift),
	)
	router := httpapi.NewRouter(httpapi.Deps{
		Exchange:     exhandler.New(exchange, log),
		Verification: vhandler.New(verifier, log),
		Dependents:   depshandler.New(dependents, log),
		Metrics:      m,
		JWTValidator: jwttoken.NewMiddlewareValidator(jwtService),
		AdminToken:   cfg.Server.AdminToken,
		PushKeyHash:  pushHash,
		HealthChecks: deps.healthChecks(),
		RateLimit:    buildRateLimit(cfg.RateLimit, deps, log, m),
		Logger:       log,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	bgCtx, cancelBackground := context.WithCancel(ctx)
	defer cancelBackground()
	go verifier.Run(bgCtx)
	go dependents.RunScanner(bgCtx, cfg.Verification.ScanInterval)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting trustex", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	log.Info("shutting down")
	cancelBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := dependents.Wait(shutdownCtx); err != nil {
		log.Warn("propagation still in flight at shutdown", "error", err)
	}
	publisher.Close()
	return nil
}

func connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	deps := &infra{}
	if cfg.Postgres.URL != "" {
		db, err := postgres.OpenDB(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		deps.db = db
		pool, err := postgres.NewPool(ctx, cfg.Postgres.URL)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.pool = pool
		if err := postgres.Migrate(ctx, pool); err != nil {
			deps.Close()
			return nil, err
		}
		log.Info("connected to postgres")
	} else {
		log.Info("DATABASE_URL not set, using in-memory stores")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.redis = rc

	kc, err := kafka.New(cfg.Kafka)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.kafka = kc
	return deps, nil
}

func buildPublisher(ctx context.Context, cfg config.Config, deps *infra, log *slog.Logger) *auditpublisher.Publisher {
	var store audit.Store = auditmemory.NewInMemoryStore()
	if deps.db != nil {
		store = auditpostgres.New(deps.db)
	}
	opts := []auditpublisher.Option{
		auditpublisher.WithAsyncBuffer(1024),
		auditpublisher.WithLogger(log),
	}
	if deps.kafka != nil {
		if err := kafka.EnsureTopic(ctx, deps.kafka, cfg.Kafka.Topic); err != nil {
			log.Warn("audit topic not ensured", "topic", cfg.Kafka.Topic, "error", err)
		}
		opts = append(opts, auditpublisher.WithSink(auditkafka.NewSink(deps.kafka, cfg.Kafka.Topic)))
	}
	return auditpublisher.NewPublisher(store, opts...)
}

func buildExchange(cfg config.Config, deps *infra, log *slog.Logger, emitter audit.Emitter, m *metrics.Metrics) (*exservice.Service, error) {
	var store exservice.Store = exstore.NewInMemoryStore()
	if deps.db != nil {
		store = exstore.NewPostgres(deps.db)
	}
	return exservice.New(store, exservice.Config{
		MinValuation:   cfg.Ledger.MinValuation,
		DefaultPrice:   cfg.Ledger.DefaultPrice,
		TransferFee:    cfg.Ledger.TransferFee,
		TxWindow:       cfg.Ledger.TxWindow,
		PermittedDrift: cfg.Ledger.PermittedDrift,
	},
		exservice.WithLogger(log),
		exservice.WithAuditEmitter(emitter),
		exservice.WithMetrics(exmetrics.New(m.Registry)),
	)
}

func buildDependents(cfg config.Config, deps *infra, log *slog.Logger, emitter audit.Emitter, m *metrics.Metrics, ledger depsservice.Ledger) (*depsservice.Service, error) {
	var store depsservice.Store = depsstore.NewInMemoryStore()
	if deps.redis != nil {
		store = depsstore.NewRedisStore(deps.redis.Client)
	}
	peer := depsclient.New(depsclient.Config{
		PushKey:          cfg.Dependents.PushKey,
		Timeout:          cfg.Dependents.PropagationTimeout,
		MaxResponseBytes: cfg.Verification.MaxResponseBytes,
	})
	origin, _ := os.Hostname()
	return depsservice.New(store, peer, depsservice.Config{
		PropagationTimeout: cfg.Dependents.PropagationTimeout,
		MaxConcurrentPush:  cfg.Dependents.MaxConcurrentPush,
		Origin:             origin,
	},
		depsservice.WithLogger(log),
		depsservice.WithAuditEmitter(emitter),
		depsservice.WithMetrics(depsmetrics.New(m.Registry)),
		depsservice.WithLedger(ledger),
	)
}

func buildVerification(
	cfg config.Config,
	deps *infra,
	log *slog.Logger,
	emitter audit.Emitter,
	m *metrics.Metrics,
	ledger vservice.Ledger,
	propagator vservice.Propagator,
) (*vservice.Service, error) {
	t := tables.Default()
	if cfg.Verification.TablesPath != "" {
		loaded, err := tables.Load(cfg.Verification.TablesPath)
		if err != nil {
			return nil, err
		}
		t = loaded
	}

	var jobs vservice.JobStore
	var profiles vservice.ProfileStore
	if deps.pool != nil {
		pg := vstore.NewPostgres(deps.pool)
		jobs, profiles = pg, pg
	} else {
		mem := vstore.NewInMemoryStore()
		jobs, profiles = mem, mem
	}

	var cache vservice.Cache = vcache.NewInMemoryCache(cfg.Verification.CacheTTL)
	if deps.redis != nil {
		cache = vcache.NewRedisCache(deps.redis.Client, cfg.Verification.CacheTTL)
	}

	breaker := circuit.New("scoring",
		circuit.WithFailureThreshold(5),
		circuit.WithSuccessThreshold(2),
		circuit.WithCooldown(30*time.Second),
	)
	provider := scoring.New(scoring.Config{
		URL:              cfg.Scoring.URL,
		Token:            cfg.Scoring.Token,
		Timeout:          cfg.Scoring.Timeout,
		MaxRetries:       cfg.Scoring.MaxRetries,
		RetryBackoff:     cfg.Scoring.RetryBackoff,
		MaxResponseBytes: cfg.Verification.MaxResponseBytes,
	}, scoring.WithLogger(log), scoring.WithBreaker(breaker))

	search := legacy.NewSearchClient(legacy.SearchConfig{
		URL:              cfg.Search.URL,
		Token:            cfg.Search.Token,
		Timeout:          cfg.Search.Timeout,
		MaxResponseBytes: cfg.Verification.MaxResponseBytes,
	})

	return vservice.New(jobs, profiles, cache, provider, legacy.NewVerifier(search, t, log),
		vservice.Config{
			RecheckInterval: cfg.Verification.RecheckInterval,
			BatchInterval:   cfg.Verification.BatchInterval,
			BatchSize:       cfg.Verification.BatchSize,
			JobTimeout:      cfg.Verification.JobTimeout,
		},
		vservice.WithLogger(log),
		vservice.WithAuditEmitter(emitter),
		vservice.WithMetrics(vmetrics.New(m.Registry)),
		vservice.WithLedger(ledger),
		vservice.WithPropagator(propagator),
		vservice.WithTables(t),
	)
}

func buildRateLimit(cfg config.RateLimit, deps *infra, log *slog.Logger, m *metrics.Metrics) *ratemw.Middleware {
	var store ratemw.Store = ratestore.NewInMemoryStore()
	if deps.redis != nil {
		store = ratestore.NewRedisStore(deps.redis.Client)
	}
	limits := map[ratemodels.Class]ratemodels.Limit{
		ratemodels.ClassRead:              {Requests: cfg.Reads, Window: cfg.Window},
		ratemodels.ClassLedger:            {Requests: cfg.LedgerWrites, Window: cfg.Window},
		ratemodels.ClassVerificationStart: {Requests: cfg.VerificationStarts, Window: cfg.Window},
	}
	return ratemw.New(store, limits, log,
		ratemw.WithDisabled(cfg.Disabled),
		ratemw.WithMetrics(ratemetrics.New(m.Registry)),
	)
}

// pushKeyHash prefers a configured bcrypt hash and otherwise derives one from
// the shared push key. An empty result rejects every inbound push.
func pushKeyHash(cfg config.Dependents) ([]byte, error) {
	if cfg.PushKeyHash != "" {
		return []byte(cfg.PushKeyHash), nil
	}
	if cfg.PushKey == "" {
		return nil, nil
	}
	return pushkey.Hash(cfg.PushKey)
}
