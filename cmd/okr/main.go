package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Spok95/okr-tracker/internal/app"
	"github.com/Spok95/okr-tracker/internal/cache"
	"github.com/Spok95/okr-tracker/internal/config"
	"github.com/Spok95/okr-tracker/internal/db"
	"github.com/Spok95/okr-tracker/internal/jobs"
	"github.com/Spok95/okr-tracker/internal/logging"
	"github.com/Spok95/okr-tracker/internal/observability"
	"github.com/Spok95/okr-tracker/internal/schema"
	"github.com/Spok95/okr-tracker/internal/sheet"
	"github.com/Spok95/okr-tracker/internal/table"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Не удалось загрузить .env файл, используем переменные окружения")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer lg.Closer()

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Release)
	if err != nil {
		lg.Base.Warn("sentry init failed", zap.Error(err))
	} else {
		defer flush()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx, cfg, lg)
	if err != nil {
		lg.Base.Fatal("store backend", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeBackend()

	runner := jobs.New(ctx, lg.Named("jobs"))

	var tableCache table.Cache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(cfg.RedisURL, cfg.CacheTTL, lg.Named("cache"))
		if err != nil {
			lg.Base.Fatal("redis cache", zap.Error(err))
		}
		defer func() { _ = rc.Close() }()
		if err := rc.Ping(ctx); err != nil {
			lg.Base.Warn("redis is not reachable, reads go to the store", zap.Error(err))
		}
		tableCache = rc
	} else {
		mc := cache.NewMemory(cfg.CacheTTL)
		runner.Every(cfg.SweepInterval, "cache_sweep", jobs.CacheSweep(mc, lg.Named("cache")))
		tableCache = mc
	}

	store := table.NewStore(backend, schema.Default(),
		table.WithCache(tableCache),
		table.WithLogger(lg.Named("store")),
		table.WithTimeout(cfg.StoreTimeout),
	)
	runner.Every(cfg.ProbeInterval, "store_probe", jobs.StoreProbe(store.Ping))

	svc := app.Services{
		Accounts: app.NewAccounts(store, lg.Named("accounts"),
			app.Credentials{Email: cfg.AdminEmail, Password: cfg.AdminPassword}, cfg.DefaultPassword),
		Periods:    app.NewPeriods(store, lg.Named("periods")),
		KeyResults: app.NewKeyResults(store, lg.Named("okr")),
		Reviews:    app.NewReviews(store, lg.Named("reviews")),
		Stats:      app.NewStats(store),
		Reports:    app.NewReports(store),
		Admin:      app.NewAdmin(store, lg.Named("admin")),
	}
	api := app.NewAPI(svc, store.Ping, lg.Named("api"))

	srv := app.StartHTTP(ctx, cfg.HTTPAddr, api, lg.Named("http"))
	lg.Base.Info("okr tracker started",
		zap.String("env", cfg.Env),
		zap.String("backend", cfg.StoreBackend),
		zap.Bool("redis_cache", cfg.RedisURL != ""),
	)

	<-ctx.Done()
	lg.Base.Info("shutting down")
	srv.Wait()
}

// openBackend выбирает носитель таблиц по STORE_BACKEND.
func openBackend(ctx context.Context, cfg *config.Config, lg *logging.Log) (table.Backend, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, database, lg.Named("migrate")); err != nil {
			_ = database.Close()
			return nil, nil, err
		}
		return db.NewPostgresBackend(database), closer(database), nil
	case config.BackendWorkbook:
		wb, err := sheet.OpenWorkbook(cfg.WorkbookPath)
		if err != nil {
			return nil, nil, err
		}
		return wb, func() { _ = wb.Close() }, nil
	default:
		lg.Base.Warn("in-memory store: data is lost on restart")
		return table.NewMemoryBackend(), func() {}, nil
	}
}

func closer(database *sql.DB) func() {
	return func() { _ = database.Close() }
}
