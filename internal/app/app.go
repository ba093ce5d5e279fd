// Package app assembles the feedback bot from configuration: database,
// conversation store, engine and Telegram routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/feedbot/core/bootstrap"
	"github.com/m3rciful/feedbot/core/logger"
	coretelegram "github.com/m3rciful/feedbot/core/telegram"
	"github.com/m3rciful/feedbot/core/telegram/middleware"
	"github.com/m3rciful/feedbot/core/telegram/router"
	"github.com/m3rciful/feedbot/core/telegram/ui"
	"github.com/m3rciful/feedbot/internal/bot"
	"github.com/m3rciful/feedbot/internal/config"
	"github.com/m3rciful/feedbot/internal/feedback"
	"github.com/m3rciful/feedbot/internal/redisstore"
	"github.com/m3rciful/feedbot/internal/storage"
	"github.com/m3rciful/feedbot/migrations"

	tele "gopkg.in/telebot.v4"
)

// minSweepInterval keeps the memory sweeper from spinning on tiny TTLs.
const minSweepInterval = time.Minute

// Options replace infrastructure constructors, mostly in tests.
type Options struct {
	Bootstrap    func(bootstrap.Options) (*bootstrap.Result, error)
	ConnectRedis func(ctx context.Context, url string) (*redis.Client, error)
}

// App owns the long-lived resources of a running bot.
type App struct {
	cfg    *config.Config
	db     *sqlx.DB
	redis  *redis.Client
	memory *feedback.MemoryStore
	engine *feedback.Engine
	bot    *bot.Bot

	stopSweep context.CancelFunc
}

// Bootstrap builds the App with the default infrastructure.
func Bootstrap(cfg *config.Config) (*App, error) {
	return New(cfg, Options{})
}

// New runs the bootstrap pipeline and wires the conversation engine.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	run := opts.Bootstrap
	if run == nil {
		run = bootstrap.Run
	}
	res, err := run(bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, db: res.DB}
	store, err := a.buildStore(opts)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	repo := storage.NewFeedbackRepository(a.db)
	a.engine = feedback.NewEngine(store, repo, feedback.Options{Texts: &cfg.Texts})
	a.bot = bot.New(a.engine, repo)
	return a, nil
}

func (a *App) buildStore(opts Options) (feedback.Store, error) {
	conv := a.cfg.Conversation
	if conv.Store != config.StoreRedis {
		a.memory = feedback.NewMemoryStore(conv.IdleTTL)
		logger.Conversation.Info("conversation store ready",
			slog.String("event", "store.init"),
			slog.String("store", config.StoreMemory),
			slog.Duration("idle_ttl", conv.IdleTTL),
		)
		return a.memory, nil
	}

	connect := opts.ConnectRedis
	if connect == nil {
		connect = redisstore.Connect
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := connect(ctx, conv.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("app: conversation store: %w", err)
	}
	a.redis = client
	return redisstore.New(client, conv.RedisPrefix, conv.IdleTTL), nil
}

// Engine exposes the conversation engine.
func (a *App) Engine() *feedback.Engine {
	return a.engine
}

// TelegramRunOptions builds the registry, routes and middleware chain.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	reg := coretelegram.NewRegistry()
	if err := a.bot.Register(reg); err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}
	ui.InstallFallbacks(reg, a.bot)

	step := []tele.MiddlewareFunc{middleware.ConversationStep(a.bot)}
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: core.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{Wrap: step}))
	routes = append(routes, router.TextRoutes(a.bot, reg, router.TextOptions{Wrap: step})...)

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, a.bot.OnRateLimited),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, _ coretelegram.Runtime) error {
	if a.memory == nil || a.cfg.Conversation.IdleTTL <= 0 {
		return nil
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	a.stopSweep = cancel
	go a.sweepLoop(sweepCtx, sweepInterval(a.cfg.Conversation.IdleTTL))
	return nil
}

func (a *App) onStop(context.Context, coretelegram.Runtime) error {
	return a.Close()
}

func (a *App) sweepLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.memory.Sweep(); n > 0 {
				logger.Conversation.Debug("idle conversations dropped",
					slog.String("event", "store.sweep"),
					slog.Int("dropped", n),
				)
			}
		}
	}
}

func sweepInterval(ttl time.Duration) time.Duration {
	every := ttl / 4
	if every < minSweepInterval {
		every = minSweepInterval
	}
	return every
}

// Close releases the Redis client and the database pool.
func (a *App) Close() error {
	if a.stopSweep != nil {
		a.stopSweep()
		a.stopSweep = nil
	}
	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		a.redis = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
		a.db = nil
	}
	return errors.Join(errs...)
}
