// Package app composes the client out of its parts with fx. The TUI
// itself runs in the foreground of main; everything else (engine, push
// listener, poller) starts and stops through the fx lifecycle.
package app

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/bus"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/cache"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/compose"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/config"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/conn"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/lock"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/logging"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/profile"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/push"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/rest"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/store"
	intsync "github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/sync"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/tui"
	tuimodel "github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/tui/model"
)

// Params holds the resolved profile configuration passed to the module.
type Params struct {
	ProfileName string
	Verbose     bool
}

// Module returns the fx module composing the whole client.
func Module(p Params) fx.Option {
	return fx.Module("pinchat",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideMonitor,
			provideLock,
			provideCache,
			provideConversations,
			provideMessages,
			provideRESTClient,
			provideComposeBuffer,
			provideEngine,
			providePoller,
			provideListener,
			provideViewModel,
			provideApp,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName, p.Verbose)
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config (run setup or create %s): %w", profile.ConfigPath(), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideMonitor(b *bus.Bus) *conn.Monitor {
	return conn.NewMonitor(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired", zap.String("profile", p.ProfileName))
	return l, nil
}

func provideCache(p Params, logger *zap.Logger) (*cache.DB, error) {
	dbPath := profile.CacheDBPath(p.ProfileName)
	db, err := cache.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("cache migrations applied", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideConversations() *store.Conversations {
	return store.NewConversations()
}

func provideMessages() *store.Messages {
	return store.NewMessages()
}

func provideRESTClient(cfg *config.Config, logger *zap.Logger) *rest.Client {
	return rest.NewClient(cfg.APIBaseURL, cfg.APIToken, cfg.UserID, rest.WithLogger(logger))
}

func provideComposeBuffer(db *cache.DB, logger *zap.Logger) *compose.Buffer {
	return compose.NewBuffer(db, logger)
}

func provideEngine(client *rest.Client, convs *store.Conversations, msgs *store.Messages, db *cache.DB, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(client, convs, msgs, b, logger,
		intsync.WithCache(db),
		intsync.WithFreshness(cfg.Freshness()),
	)
}

func providePoller(engine *intsync.Engine, cfg *config.Config, logger *zap.Logger) *intsync.Poller {
	return intsync.NewPoller(engine, logger, cfg.ListPollInterval(), cfg.ThreadPollInterval())
}

func provideListener(cfg *config.Config, b *bus.Bus, m *conn.Monitor, logger *zap.Logger) *push.Listener {
	if cfg.WSURL == "" {
		return nil
	}
	return push.NewListener(cfg.WSURL, cfg.APIToken, cfg.UserID, b, m, logger)
}

func provideViewModel(engine *intsync.Engine, buffer *compose.Buffer, db *cache.DB, m *conn.Monitor, cfg *config.Config) *tuimodel.ViewModel {
	return tuimodel.NewViewModel(engine, buffer, db, m, cfg.UserID)
}

func provideApp(p Params, vm *tuimodel.ViewModel, b *bus.Bus, logger *zap.Logger) *tui.App {
	return tui.NewApp(vm, b, p.ProfileName, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *cache.DB, convs *store.Conversations, msgs *store.Messages, buffer *compose.Buffer, engine *intsync.Engine, poller *intsync.Poller, listener *push.Listener, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			hydrate(db, convs, msgs, buffer, logger)

			engine.Start(context.Background())
			if listener != nil {
				listener.Start(context.Background())
			}
			poller.Start(context.Background())

			// First fetch in the background; the hydrated cache renders
			// meanwhile.
			go func() {
				if err := engine.LoadConversations(context.Background()); err != nil {
					logger.Warn("initial conversation load failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			poller.Stop()
			if listener != nil {
				listener.Stop()
			}
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}

// hydrate fills the in-memory stores from the last synced state so the
// UI has something to show before the first fetch completes.
func hydrate(db *cache.DB, convs *store.Conversations, msgs *store.Messages, buffer *compose.Buffer, logger *zap.Logger) {
	cached, err := db.ListConversations()
	if err != nil {
		logger.Warn("conversation hydration failed", zap.Error(err))
		return
	}
	convs.ReplaceAll(cached)
	for _, c := range cached {
		thread, err := db.ListMessages(c.ID)
		if err != nil {
			logger.Warn("thread hydration failed", zap.Error(err), zap.Int64("conversation_id", c.ID))
			continue
		}
		if len(thread) > 0 {
			msgs.Replace(c.ID, thread)
		}
	}
	buffer.Hydrate()
	logger.Info("stores hydrated", zap.Int("conversations", len(cached)))
}
