package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twmb/franz-go/pkg/kgo"

	fpmetrics "mailguard/internal/fingerprint/metrics"
	fpports "mailguard/internal/fingerprint/ports"
	fpservice "mailguard/internal/fingerprint/service"
	fpstore "mailguard/internal/fingerprint/store"
	lqmetrics "mailguard/internal/logqueue/metrics"
	lqports "mailguard/internal/logqueue/ports"
	lqservice "mailguard/internal/logqueue/service"
	"mailguard/internal/logqueue/sink"
	"mailguard/internal/platform/config"
	"mailguard/internal/platform/kafka"
	"mailguard/internal/platform/metrics"
	"mailguard/internal/platform/postgres"
	platformredis "mailguard/internal/platform/redis"
	rlmetrics "mailguard/internal/ratelimit/metrics"
	quotaservice "mailguard/internal/ratelimit/service/quota"
	"mailguard/internal/ratelimit/service/requestlimit"
	quotastore "mailguard/internal/ratelimit/store/quota"
	"mailguard/internal/ratelimit/store/usage"
	"mailguard/internal/ratelimit/store/window"
	"mailguard/internal/risk"
	tmetrics "mailguard/internal/tenant/metrics"
	tservice "mailguard/internal/tenant/service"
	tstore "mailguard/internal/tenant/store"
	"mailguard/internal/validation/checks"
	"mailguard/internal/validation/dns"
	"mailguard/internal/validation/handler"
	"mailguard/internal/validation/lists"
	vmetrics "mailguard/internal/validation/metrics"
	"mailguard/internal/validation/orchestrator"
	vservice "mailguard/internal/validation/service"
	"mailguard/pkg/platform/background"
	"mailguard/pkg/platform/circuit"
	"mailguard/pkg/platform/middleware/metadata"
	"mailguard/pkg/platform/middleware/request"
	"mailguard/pkg/platform/middleware/requesttime"
	"mailguard/pkg/platform/privacy"
)

// app holds everything main needs to run and later drain.
type app struct {
	router     http.Handler
	log        *slog.Logger
	cfg        config.Config
	lists      *lists.Store
	quota      *quotaservice.Service
	logs       *lqservice.Service
	dispatcher *background.Dispatcher
	closers    []func()
}

// backends are the shared connections, opened only when a selected backend needs them.
type backends struct {
	redis *platformredis.Client
	sqlDB *sql.DB
	pool  *pgxpool.Pool
	kafka *kgo.Client
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{log: log, cfg: cfg}
	be, err := a.openBackends(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	reg := metrics.NewRegistry()
	httpMetrics := metrics.New(reg)
	validationMetrics := vmetrics.New(reg)

	tenants, err := buildTenants(ctx, cfg, be, log, tmetrics.New(reg))
	if err != nil {
		return nil, a.fail(err)
	}

	admissionMetrics := rlmetrics.New(reg)
	limiter, err := buildLimiter(cfg, be, log, admissionMetrics)
	if err != nil {
		return nil, a.fail(err)
	}
	a.quota, err = quotaservice.New(quotastore.New(), buildUsageSink(be),
		quotaservice.WithLogger(log),
		quotaservice.WithMetrics(admissionMetrics),
		quotaservice.WithDefaultLimit(cfg.Quota.DefaultMonthlyLimit),
		quotaservice.WithFlushEvery(cfg.Quota.FlushEvery),
	)
	if err != nil {
		return nil, a.fail(err)
	}

	a.logs, err = lqservice.New(buildLogSink(cfg, be, log),
		lqservice.WithLogger(log),
		lqservice.WithMetrics(lqmetrics.New(reg)),
		lqservice.WithMaxSize(cfg.LogQueue.MaxSize),
		lqservice.WithBatchSize(cfg.LogQueue.BatchSize),
	)
	if err != nil {
		return nil, a.fail(err)
	}

	devices, err := fpservice.New(buildDeviceStore(cfg, be),
		fpservice.WithLogger(log),
		fpservice.WithMetrics(fpmetrics.New(reg)),
		fpservice.WithTimeout(cfg.Fingerprint.Timeout),
		fpservice.WithBackendName(cfg.Fingerprint.Backend),
	)
	if err != nil {
		return nil, a.fail(err)
	}

	a.lists, err = lists.NewStore(cfg.Lists.Path, lists.WithLogger(log))
	if err != nil {
		return nil, a.fail(err)
	}
	disposable, err := buildDisposableSet(ctx, cfg, be, a.lists)
	if err != nil {
		return nil, a.fail(err)
	}

	resolver := dns.NewResolver(cfg.DNS.Servers)
	var mxCache dns.MXCache = dns.NewMemoryMXCache(cfg.DNS.MXCacheTTL)
	if be.redis != nil {
		mxCache = dns.NewRedisMXCache(be.redis, "", cfg.DNS.MXCacheTTL)
	}
	spf := checks.SPFHeuristic{Resolver: resolver}
	checker := orchestrator.New([]checks.Check{
		checks.Syntax{},
		checks.Alias{},
		checks.Role{Lists: a.lists},
		checks.Disposable{Set: disposable},
		checks.MX{Resolver: resolver, Cache: mxCache},
		checks.SMTP{Heuristic: spf},
		checks.Catchall{Heuristic: spf},
		checks.IP{Lists: a.lists},
		checks.Device{Devices: devices},
	}, orchestrator.WithLogger(log), orchestrator.WithMetrics(validationMetrics))

	policy, err := risk.NewPolicy(cfg.Risk.Policy)
	if err != nil {
		return nil, a.fail(err)
	}
	hasher, err := privacy.NewEmailHasher(cfg.Privacy.EmailHashKey)
	if err != nil {
		return nil, a.fail(err)
	}

	a.dispatcher = background.New(
		background.WithLogger(log),
		background.WithWorkers(8),
		background.WithQueueSize(1024),
		background.WithTaskTimeout(5*time.Second),
		background.WithDropHook(func(string) { validationMetrics.IncDroppedEffects() }),
	)

	opts := []vservice.Option{
		vservice.WithLogger(log),
		vservice.WithMetrics(validationMetrics),
		vservice.WithPolicy(policy),
		vservice.WithLogQueue(a.logs),
		vservice.WithDeviceRecorder(devices),
	}
	if len(cfg.Privacy.EmailSealKey) > 0 {
		sealer, err := privacy.NewEmailSealer(cfg.Privacy.EmailSealKey)
		if err != nil {
			return nil, a.fail(err)
		}
		opts = append(opts, vservice.WithEmailSealer(sealer))
	}
	svc, err := vservice.New(tenants, limiter, a.quota, checker, a.dispatcher, hasher, opts...)
	if err != nil {
		return nil, a.fail(err)
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(chimiddleware.Recoverer)
	r.Use(httpMetrics.Middleware)
	r.Get("/healthz", healthz(be))
	r.Handle("/metrics", metrics.Handler(reg))
	handler.New(svc, a.logs, cfg.Server.AdminToken, log).Register(r)
	a.router = r

	return a, nil
}

func (a *app) openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	be := &backends{}
	var err error

	if be.redis, err = platformredis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if be.redis != nil {
		a.closers = append(a.closers, func() { _ = be.redis.Close() })
	}

	if cfg.Postgres.DSN != "" {
		if be.sqlDB, err = postgres.OpenSQL(ctx, cfg.Postgres); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = be.sqlDB.Close() })
		if be.pool, err = postgres.OpenPool(ctx, cfg.Postgres); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, be.pool.Close)
	}

	if cfg.LogQueue.Sink == config.BackendKafka {
		if be.kafka, err = kafka.NewClient(ctx, cfg.Kafka); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, be.kafka.Close)
	}
	return be, nil
}

func buildTenants(ctx context.Context, cfg config.Config, be *backends, log *slog.Logger, m *tmetrics.Metrics) (*tservice.Service, error) {
	seed, err := tstore.LoadSeedFile(cfg.Tenant.SeedPath)
	missing := errors.Is(err, fs.ErrNotExist)
	if err != nil && !missing {
		return nil, err
	}

	var store tservice.Store
	switch cfg.Tenant.Source {
	case config.BackendRedis:
		rs := tstore.NewRedis(be.redis, "")
		if seed != nil {
			for _, t := range seed.All() {
				if err := rs.Put(ctx, t); err != nil {
					return nil, fmt.Errorf("seed tenant %s: %w", t.ID, err)
				}
			}
		}
		store = rs
	default:
		if missing {
			return nil, fmt.Errorf("tenant seed %s: %w", cfg.Tenant.SeedPath, err)
		}
		store = seed
	}
	return tservice.New(store, tservice.WithLogger(log), tservice.WithMetrics(m))
}

func buildLimiter(cfg config.Config, be *backends, log *slog.Logger, m *rlmetrics.Metrics) (*requestlimit.Service, error) {
	opts := []requestlimit.Option{
		requestlimit.WithLogger(log),
		requestlimit.WithMetrics(m),
		requestlimit.WithWindow(cfg.RateLimit.Window, cfg.RateLimit.Grace),
		requestlimit.WithLimits(cfg.RateLimit.ClientLimit, cfg.RateLimit.ServerLimit),
	}
	if cfg.RateLimit.Backend != config.BackendRedis {
		return requestlimit.New(window.NewInMemoryWindowStore(), opts...)
	}
	// A node-local window keeps admitting traffic while Redis is unreachable.
	opts = append(opts, requestlimit.WithFallback(window.NewInMemoryWindowStore(), circuit.New("ratelimit")))
	return requestlimit.New(window.NewRedisWindowStore(be.redis, ""), opts...)
}

func buildUsageSink(be *backends) quotaservice.UsageSink {
	if be.sqlDB != nil {
		return usage.NewPostgresUsageSink(be.sqlDB)
	}
	return usage.NewInMemoryUsageSink()
}

func buildLogSink(cfg config.Config, be *backends, log *slog.Logger) lqports.Sink {
	var next lqports.Sink
	switch cfg.LogQueue.Sink {
	case config.BackendPostgres:
		next = sink.NewPostgresSink(be.pool)
	case config.BackendKafka:
		next = sink.NewKafkaSink(be.kafka, cfg.Kafka.Topic)
	default:
		return sink.NewMemorySink()
	}
	return sink.NewBreakerSink(next, circuit.New("logsink"), log)
}

func buildDeviceStore(cfg config.Config, be *backends) fpports.Store {
	switch cfg.Fingerprint.Backend {
	case config.BackendRedis:
		return fpstore.NewRedisStore(be.redis, cfg.Fingerprint.TTL)
	case config.BackendKV:
		return fpstore.NewKVStore(be.redis, "", cfg.Fingerprint.TTL)
	case config.BackendPostgres:
		return fpstore.NewPostgresStore(be.sqlDB)
	default:
		return fpstore.NewActorStore()
	}
}

func buildDisposableSet(ctx context.Context, cfg config.Config, be *backends, l *lists.Store) (lists.DisposableSet, error) {
	if cfg.Lists.DisposableStore != config.BackendRedis {
		return l, nil
	}
	set := lists.NewRedisDisposableSet(be.redis, "")
	if err := set.Seed(ctx, l.Current().Disposable()); err != nil {
		return nil, fmt.Errorf("seed disposable set: %w", err)
	}
	return set, nil
}

func healthz(be *backends) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if be.redis != nil {
			if err := be.redis.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// startLoops runs the periodic sweeps until ctx is canceled.
func (a *app) startLoops(ctx context.Context) {
	go a.quota.Run(ctx, a.cfg.Quota.FlushInterval)
	go a.logs.Run(ctx, a.cfg.LogQueue.SweepInterval)
	go a.lists.Run(ctx, a.cfg.Lists.RefreshInterval)
}

// drain finishes queued side effects, then persists usage and logs.
func (a *app) drain(ctx context.Context) {
	if err := a.dispatcher.Stop(ctx); err != nil {
		a.log.Warn("dispatcher did not drain", "error", err)
	}
	if err := a.quota.FlushAll(ctx); err != nil {
		a.log.Warn("final usage flush incomplete", "error", err)
	}
	if err := a.quota.Wait(ctx); err != nil {
		a.log.Warn("usage flushes still running", "error", err)
	}
	if err := a.logs.Sweep(ctx); err != nil {
		a.log.Warn("final log sweep incomplete", "error", err)
	}
	if err := a.logs.Wait(ctx); err != nil {
		a.log.Warn("log flushes still running", "error", err)
	}
}

func (a *app) fail(err error) error {
	a.close()
	return err
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
