package app

import (
	"context"
	"time"

	"github.com/emrgen/rard/internal/cache"
	"github.com/emrgen/rard/internal/compress"
	"github.com/emrgen/rard/internal/config"
	"github.com/emrgen/rard/internal/jobs"
	"github.com/emrgen/rard/internal/queue"
	"github.com/emrgen/rard/internal/reconcile"
	"github.com/emrgen/rard/internal/service"
	"github.com/emrgen/rard/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds the wired components shared by the server and the cli.
type App struct {
	Config    *config.Config
	Store     *store.GormStore
	Service   *service.CatalogueService
	cache     cache.LinkCache
	publisher queue.Publisher
	closers   []func()
}

// New opens the database, migrates it and wires the catalogue service. Redis and Kafka
// are used when configured.
func New(cfg *config.Config) (*App, error) {
	db, err := config.OpenDb(cfg)
	if err != nil {
		return nil, err
	}
	return FromDb(cfg, db)
}

func FromDb(cfg *config.Config, db *gorm.DB) (*App, error) {
	st := store.NewGormStore(db)
	if err := st.Migrate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Store: st}

	linkCache, err := a.linkCache()
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher, err := a.changePublisher()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.cache = linkCache
	a.publisher = publisher
	a.Service = service.NewCatalogueService(st, reconcile.NewDispatcher(reconcile.NewEngine()), linkCache, publisher)

	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}
	return a, nil
}

func (a *App) linkCache() (cache.LinkCache, error) {
	if a.Config.Redis.Addr == "" {
		return cache.NewNop(), nil
	}

	encoder, err := compress.New(a.Config.Cache.Compression)
	if err != nil {
		return nil, err
	}

	client := cache.NewRedisClient(cache.RedisOptions{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	a.closers = append(a.closers, func() { _ = client.Close() })
	logrus.Infof("caching link listings in redis at %s", a.Config.Redis.Addr)
	return cache.NewRedisLinkCache(client, encoder, a.Config.Cache.TTL), nil
}

func (a *App) changePublisher() (queue.Publisher, error) {
	if a.Config.Kafka.Brokers == "" {
		return queue.NewNop(), nil
	}

	publisher, err := queue.NewKafkaPublisher(a.Config.Kafka.Brokers, a.Config.Kafka.Topic)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)
	logrus.Infof("publishing change events to kafka at %s", a.Config.Kafka.Brokers)
	return publisher, nil
}

// Executor schedules the background jobs of the server.
func (a *App) Executor() *jobs.TaskExecutor {
	sweep := jobs.NewConsistencySweep(a.Config.SweepSchedule, a.Config.SweepTimeout, a.Service)
	return jobs.NewTaskExecutor(nil, []jobs.CronJob{sweep})
}

// Close releases the connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
