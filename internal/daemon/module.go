package daemon

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/coachpal/chatkit/internal/auth"
	"github.com/coachpal/chatkit/internal/bus"
	"github.com/coachpal/chatkit/internal/cache"
	"github.com/coachpal/chatkit/internal/config"
	"github.com/coachpal/chatkit/internal/ingest"
	"github.com/coachpal/chatkit/internal/lock"
	"github.com/coachpal/chatkit/internal/logging"
	"github.com/coachpal/chatkit/internal/rest"
	"github.com/coachpal/chatkit/internal/router"
	"github.com/coachpal/chatkit/internal/send"
	"github.com/coachpal/chatkit/internal/session"
	"github.com/coachpal/chatkit/internal/status"
	"github.com/coachpal/chatkit/internal/store"
	"github.com/coachpal/chatkit/internal/transport"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the daemon: the composition root wiring
// transport, codec/router, store, ingest engine, send pipeline, and the
// REST client once per session, with lifecycle-managed teardown.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideCache,
			provideTokens,
			provideStore,
			provideTransport,
			provideRouter,
			provideEngine,
			provideRESTClient,
			providePipeline,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.Load(session.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	return l, nil
}

func provideCache(p Params, logger *zap.Logger) (*cache.DB, error) {
	path := session.CachePath(p.SessionName)
	db, err := cache.Open(path)
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
	logger.Info("history cache ready", zap.String("path", path))
	return db, nil
}

func provideTokens(p Params) auth.TokenSource {
	return &auth.FileTokenSource{Path: session.TokenPath(p.SessionName)}
}

func provideStore(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *store.Store {
	return store.New(cfg.UserID, b, logger)
}

func provideTransport(cfg *config.Config, tokens auth.TokenSource, m *status.Machine, b *bus.Bus, logger *zap.Logger) *transport.Conn {
	opts := transport.DefaultOptions()
	if cfg.Transport.PingIntervalSecs > 0 {
		opts.PingInterval = time.Duration(cfg.Transport.PingIntervalSecs) * time.Second
	}
	if cfg.Transport.ReconnectBaseMs > 0 {
		opts.ReconnectBaseDelay = time.Duration(cfg.Transport.ReconnectBaseMs) * time.Millisecond
	}
	if cfg.Transport.MaxReconnectAttempts > 0 {
		opts.MaxReconnectAttempts = cfg.Transport.MaxReconnectAttempts
	}
	return transport.New(cfg.Server.SocketURL, tokens, m, b, logger, opts)
}

func provideRouter(b *bus.Bus, logger *zap.Logger) *router.Router {
	return router.New(b, logger)
}

func provideEngine(s *store.Store, db *cache.DB, b *bus.Bus, logger *zap.Logger) *ingest.Engine {
	return ingest.NewEngine(s, db, b, logger)
}

func provideRESTClient(cfg *config.Config, tokens auth.TokenSource, logger *zap.Logger) *rest.Client {
	timeouts := rest.DefaultTimeouts()
	if cfg.REST.TimeoutSecs > 0 {
		timeouts.Default = time.Duration(cfg.REST.TimeoutSecs) * time.Second
	}
	if cfg.REST.MediaTimeoutSecs > 0 {
		timeouts.Media = time.Duration(cfg.REST.MediaTimeoutSecs) * time.Second
	}
	return rest.NewClient(cfg.Server.APIURL, tokens, logger, timeouts)
}

func providePipeline(s *store.Store, conn *transport.Conn, api *rest.Client, b *bus.Bus, logger *zap.Logger) *send.Pipeline {
	return send.NewPipeline(s, conn, api, b, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	lk *lock.Lock,
	db *cache.DB,
	s *store.Store,
	conn *transport.Conn,
	rt *router.Router,
	engine *ingest.Engine,
	api *rest.Client,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Seed the store from the local cache before any live events.
			convs, msgs, err := db.Snapshot()
			if err != nil {
				return err
			}
			s.Hydrate(convs, msgs)
			logger.Info("store hydrated", zap.Int("conversations", len(convs)))

			rt.Start(context.Background())
			engine.Start(context.Background())

			go func() {
				if err := conn.Connect(context.Background()); err != nil {
					logger.Error("initial connect failed", zap.Error(err))
					return
				}
				refreshConversations(s, db, api, logger)
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			conn.Disconnect()
			engine.Stop()
			rt.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

// refreshConversations pulls the conversation list over REST after connect
// and pipes it through the store, keeping the single-writer invariant.
func refreshConversations(s *store.Store, db *cache.DB, api *rest.Client, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	convs, err := api.ListConversations(ctx)
	if err != nil {
		logger.Warn("conversation refresh failed", zap.Error(err))
		return
	}
	for i := range convs {
		s.UpsertConversation(&convs[i])
		if err := db.UpsertConversation(&convs[i]); err != nil {
			logger.Warn("cache conversation upsert failed", zap.Error(err))
		}
	}
	logger.Info("conversations refreshed", zap.Int("count", len(convs)))
}
