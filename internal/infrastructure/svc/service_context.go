package svc

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"uniperp/internal/application/port"
	"uniperp/internal/application/service"
	"uniperp/internal/application/usecase/watch"
	"uniperp/internal/infrastructure/config"
	"uniperp/internal/infrastructure/storage"
	"uniperp/internal/infrastructure/storage/composite"
	postgresrepo "uniperp/internal/infrastructure/storage/postgres"
	redisrepo "uniperp/internal/infrastructure/storage/redis"
	sqliterepo "uniperp/internal/infrastructure/storage/sqlite"
	"uniperp/internal/infrastructure/venue"
	"uniperp/internal/interfaces/console"
	"uniperp/internal/stream"

	// venue adapters self-register via init()
	_ "uniperp/internal/infrastructure/venue/backpack"
	_ "uniperp/internal/infrastructure/venue/extended"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层（第一层初始化）
	redisClient *redisclient.Client
	repos       []port.Repository
	Repo        port.Repository

	// 输出端口
	Sink port.Sink

	// 应用业务组件（依赖基础设施）
	Venues       []port.Venue
	Price        *service.PriceService
	Position     *service.PositionService
	Snapshot     *service.SnapshotService
	Connectivity *service.ConnectivityService

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext
// 这是应用启动的唯一入口点，所有依赖初始化都在这里完成
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Sink:        console.NewSink(),
		closerChain: make([]func() error, 0),
	}

	if err := sc.initializeComponents(); err != nil {
		// 清理已初始化的资源
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 初始化所有应用组件
// 按照依赖关系有序初始化，确保不会有循环依赖
func (sc *ServiceContext) initializeComponents() error {
	// 0. 初始化存储层 (最基础，最后被其他依赖使用)
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInitFailed, err)
	}

	sc.Price = service.NewPriceService(sc.Repo)
	sc.Position = service.NewPositionService(sc.Repo)
	sc.Snapshot = service.NewSnapshotService(sc.Repo)
	sc.Connectivity = service.NewConnectivityService(sc.Repo)

	if err := sc.initializeVenues(); err != nil {
		return err
	}

	log.Info().
		Int("venues", len(sc.Venues)).
		Int("stores", len(sc.repos)).
		Msg("✓ All components initialized")
	return nil
}

// initializeVenues builds every enabled venue from the registry and
// hooks its stream lifecycle into the connectivity audit.
func (sc *ServiceContext) initializeVenues() error {
	for _, name := range sc.Config.GetEnabledVenues() {
		vc := sc.Config.Venue[name]
		v, err := venue.Build(name, venue.Settings{
			WSURL:     vc.WsURL,
			RestURL:   vc.RestURL,
			APIKey:    vc.APIKey,
			APISecret: vc.APISecret,
		})
		if err != nil {
			return fmt.Errorf("venue %s: %w", name, err)
		}

		if lw, ok := v.(interface {
			SetStateListener(func(stream.ConnState))
		}); ok {
			lw.SetStateListener(sc.Connectivity.Listener(name))
		}

		sc.Venues = append(sc.Venues, v)
		sc.closerChain = append(sc.closerChain, func() error {
			log.Info().Str("venue", v.Name()).Msg("closing venue")
			return v.Close()
		})
		log.Info().Str("venue", name).Msg("✓ Venue initialized")
	}

	if len(sc.Venues) == 0 {
		return ErrNoVenuesEnabled
	}
	return nil
}

// initializeStorage 初始化存储层 (SQLite / Postgres / Redis)
func (sc *ServiceContext) initializeStorage() error {
	if sc.Config.SQLite.Enabled {
		if err := sc.initSQLite(); err != nil {
			return fmt.Errorf("sqlite initialization failed: %w", err)
		}
	}
	if sc.Config.Postgres.Enabled {
		if err := sc.initPostgres(); err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
	}
	if sc.Config.Redis.Enabled {
		if err := sc.initRedis(); err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
	}

	switch len(sc.repos) {
	case 0:
		log.Warn().Msg("no store enabled, keeping state in memory only")
		sc.Repo = storage.NewMemory()
	case 1:
		sc.Repo = sc.repos[0]
	default:
		sc.Repo = composite.New(sc.repos...)
	}
	return nil
}

// initRedis 初始化 Redis 连接
func (sc *ServiceContext) initRedis() error {
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     sc.Config.Redis.Addr,
		Password: sc.Config.Redis.Password,
		DB:       sc.Config.Redis.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	sc.redisClient = rdb
	ttl := time.Duration(sc.Config.Redis.TTLSeconds) * time.Second
	sc.repos = append(sc.repos, redisrepo.New(rdb, sc.Config.Redis.Prefix, ttl, sc.Config.Redis.EventStream))

	// 注册关闭回调
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", sc.Config.Redis.Addr).
		Int("db", sc.Config.Redis.DB).
		Msg("✓ Redis initialized")
	return nil
}

// initSQLite 初始化 SQLite 数据库
func (sc *ServiceContext) initSQLite() error {
	repo, err := sqliterepo.New(sc.Config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("sqlite repo creation failed: %w", err)
	}
	sc.repos = append(sc.repos, repo)

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", sc.Config.SQLite.Path).
		Msg("✓ SQLite initialized")
	return nil
}

// initPostgres 初始化 Postgres 连接
func (sc *ServiceContext) initPostgres() error {
	repo, err := postgresrepo.New(sc.Config.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("postgres repo creation failed: %w", err)
	}
	sc.repos = append(sc.repos, repo)

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("✓ Postgres initialized")
	return nil
}

// BuildWatchServiceDeps 构建 Watch Service 所需的所有依赖
// 这个方法由 Application 层 UseCase 调用
func (sc *ServiceContext) BuildWatchServiceDeps() watch.ServiceDeps {
	return watch.ServiceDeps{
		Venues:           sc.Venues,
		Symbols:          sc.Config.Symbols.List,
		SnapshotEveryMin: sc.Config.App.SnapshotEveryMin,
		Sink:             sc.Sink,
		Repo:             sc.Repo,
	}
}

// Close 关闭 ServiceContext 中的所有资源
// 包括存储连接、网络连接等
// 应该在应用退出时调用
func (sc *ServiceContext) Close() error {
	var firstErr error
	// 按照相反的顺序关闭所有资源
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	sc.closerChain = nil
	return firstErr
}
