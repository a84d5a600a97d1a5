// Command notifyd runs the notification engine behind its HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // quiet hours resolve IANA zones on hosts without zoneinfo

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/livepush"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/mongo"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/mongolog"
	"github.com/dmitrymomot/notifykit/pkg/notifications/postgres"
	"github.com/dmitrymomot/notifykit/pkg/notifications/rediscache"
	"github.com/dmitrymomot/notifykit/pkg/notifyhttp"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/push"
	"github.com/dmitrymomot/notifykit/pkg/redis"
	"github.com/dmitrymomot/notifykit/pkg/requestid"
)

// appConfig selects the optional backends. Without them the service keeps
// everything in memory.
type appConfig struct {
	Env           string        `env:"APP_ENV" envDefault:"development"`
	Service       string        `env:"SERVICE_NAME" envDefault:"notifyd"`
	Postgres      bool          `env:"NOTIFY_USE_POSTGRES" envDefault:"false"`
	RedisCache    bool          `env:"NOTIFY_USE_REDIS_CACHE" envDefault:"false"`
	MongoLog      bool          `env:"NOTIFY_USE_MONGO_LOG" envDefault:"false"`
	LivePush      bool          `env:"NOTIFY_LIVE_PUSH" envDefault:"true"`
	IngestToken   string        `env:"NOTIFY_INGEST_TOKEN"`
	UserHeader    string        `env:"NOTIFY_USER_HEADER" envDefault:"X-User-ID"`
	HealthTimeout time.Duration `env:"HEALTHCHECK_TIMEOUT" envDefault:"2s"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "notifyd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var app appConfig
	if err := config.Load(&app); err != nil {
		return err
	}
	log := logger.New(
		logger.WithEnvironment(app.Env, app.Service),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	var cfg notifications.Config
	if err := config.Load(&cfg); err != nil {
		return err
	}

	var (
		store  notifications.Storage           = notifications.NewMemoryStorage()
		prefs  notifications.PreferenceStore   = notifications.NewMemoryPreferenceStore()
		subs   notifications.SubscriptionStore = notifications.NewMemorySubscriptionStore()
		dlog   notifications.DeliveryLog       = notifications.NewMemoryDeliveryLog()
		checks []httpserver.Check
	)

	if app.Postgres {
		pool, err := openPostgres(ctx, log)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.NewStorage(pool)
		prefs = postgres.NewPreferenceStore(pool)
		subs = postgres.NewSubscriptionStore(pool)
		checks = append(checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})
	}

	if app.RedisCache {
		rdb, err := openRedis(ctx)
		if err != nil {
			return err
		}
		defer rdb.Close()
		prefs = rediscache.New(prefs, rdb,
			rediscache.WithTTL(cfg.PreferenceCacheTTL),
			rediscache.WithLogger(log),
		)
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(rdb)})
	}
	if cfg.PreferenceCacheSize > 0 {
		prefs = notifications.NewCachedPreferenceStore(prefs, cfg.PreferenceCacheSize, cfg.PreferenceCacheTTL)
	}

	if app.MongoLog {
		client, db, err := openMongo(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		mlog := mongolog.New(db)
		if err := mlog.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create delivery log indexes: %w", err)
		}
		dlog = mlog
		checks = append(checks, httpserver.Check{Name: "mongo", Fn: mongo.Healthcheck(client)})
	}

	senders, err := buildSenders(ctx, log)
	if err != nil {
		return err
	}

	var hub *livepush.Hub
	if app.LivePush {
		var liveCfg livepush.Config
		if err := config.Load(&liveCfg); err != nil {
			return err
		}
		hub = livepush.NewHub(liveCfg, livepush.WithLogger(log))
		senders.Live = hub
	}

	dispatcher := notifications.NewDispatcher(senders, cfg.Delivery,
		notifications.WithDispatcherLogger(log),
		notifications.WithSubscriptionStore(subs),
		notifications.WithDeliveryLog(dlog),
	)

	engineOpts := []notifications.EngineOption{
		notifications.WithEngineLogger(log),
		notifications.WithAsyncDelivery(cfg.AsyncDelivery),
		notifications.WithDigestAggregator(notifications.NewDigestAggregator(
			notifications.WithHighlights(cfg.DigestHighlights),
			notifications.WithDigestLogger(log),
		)),
	}
	if hub != nil {
		engineOpts = append(engineOpts, notifications.WithSessions(hub))
	}
	if cfg.CatalogPath != "" {
		catalog, err := notifications.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, notifications.WithCatalog(catalog))
		go func() {
			if err := catalog.Watch(ctx, cfg.CatalogPath, log); err != nil {
				log.LogAttrs(ctx, slog.LevelError, "catalog watcher stopped", logger.Error(err))
			}
		}()
	}
	engine := notifications.NewEngine(store, prefs, subs, dispatcher, engineOpts...)

	scheduler, err := notifications.NewDigestScheduler(engine, cfg.DigestTick,
		notifications.WithSchedulerLogger(log),
	)
	if err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	apiOpts := []notifyhttp.Option{
		notifyhttp.WithLogger(log),
		notifyhttp.WithDeliveryLog(dlog),
		notifyhttp.WithUserHeader(app.UserHeader),
		notifyhttp.WithIngestToken(app.IngestToken),
		notifyhttp.WithHealthHandler(httpserver.HealthCheckHandler(log, app.HealthTimeout, checks...)),
	}
	if hub != nil {
		apiOpts = append(apiOpts, notifyhttp.WithLiveHub(hub))
	}
	api := notifyhttp.New(engine, apiOpts...)

	var srvCfg httpserver.Config
	if err := config.Load(&srvCfg); err != nil {
		return err
	}
	// The hub drains last; queued deliveries may still write to it.
	srvOpts := []httpserver.Option{
		httpserver.WithLogger(log),
		httpserver.WithDrain("digest scheduler", scheduler.Stop),
		httpserver.WithDrain("engine", engine.Close),
	}
	if hub != nil {
		srvOpts = append(srvOpts, httpserver.WithDrain("live push hub", hub.Close))
	}
	return httpserver.New(srvCfg, srvOpts...).Run(ctx, api.Routes())
}

func openPostgres(ctx context.Context, log *slog.Logger) (*pgxpool.Pool, error) {
	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, cfg, log); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return pool, nil
}

func openRedis(ctx context.Context) (*goredis.Client, error) {
	var cfg redis.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	return redis.Connect(ctx, cfg)
}

func openMongo(ctx context.Context) (*mongodriver.Client, *mongodriver.Database, error) {
	var cfg mongo.Config
	if err := config.Load(&cfg); err != nil {
		return nil, nil, err
	}
	db, err := mongo.NewWithDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return db.Client(), db, nil
}

// buildSenders wires the email provider and every configured push provider.
// Push is left unset when no provider has credentials.
func buildSenders(ctx context.Context, log *slog.Logger) (notifications.Senders, error) {
	var senders notifications.Senders

	var emailCfg email.Config
	if err := config.Load(&emailCfg); err != nil {
		return senders, err
	}
	mailer, err := email.New(emailCfg)
	if err != nil {
		return senders, err
	}
	senders.Email = email.NewNotificationSender(mailer,
		email.WithAppName(emailCfg.AppName),
		email.WithNotifierLogger(log),
	)

	var pushCfg push.Config
	if err := config.Load(&pushCfg); err != nil {
		return senders, err
	}
	router := push.NewRouter()
	if pushCfg.WebPushEnabled() {
		wp, err := push.NewWebPushSender(pushCfg, push.WithWebPushLogger(log))
		if err != nil {
			return senders, err
		}
		router.Handle(notifications.ProviderWebPush, wp)
	}
	if pushCfg.FCMEnabled() {
		client, err := push.NewFCMClient(ctx, pushCfg)
		if err != nil {
			return senders, err
		}
		router.Handle(notifications.ProviderFCM, push.NewFCMSender(client,
			push.WithFCMLogger(log),
			push.WithAndroidChannel(pushCfg.AndroidChannelID),
		))
	}
	if router.Providers() > 0 {
		senders.Push = router
	} else {
		log.LogAttrs(ctx, slog.LevelWarn, "no push provider configured")
	}
	return senders, nil
}
