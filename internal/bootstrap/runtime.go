// Package bootstrap assembles the process runtime from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"huddle/internal/auth"
	"huddle/internal/cache"
	"huddle/internal/config"
	"huddle/internal/database"
	"huddle/internal/featureflags"
	"huddle/internal/feed"
	"huddle/internal/likes"
	"huddle/internal/notifications"
	"huddle/internal/observability"
	"huddle/internal/repository"
	"huddle/internal/server"
	"huddle/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime is every long-lived component of one server process.
type Runtime struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client

	Tokens       *auth.Issuer
	FeatureFlags *featureflags.Manager

	LikeStore  *repository.LikeStore
	Engine     *likes.Engine
	Reconciler *likes.Reconciler

	Registry   *notifications.Registry
	Notifier   *notifications.Notifier
	Router     *notifications.Router
	Hub        *notifications.Hub
	Dispatcher *feed.Dispatcher

	Communities *service.CommunityService
	Posts       *service.PostService
	Users       *service.UserService

	Server *server.Server
}

// InitRuntime connects to the database and Redis and wires the runtime.
// Redis is optional outside production: without it events are delivered
// in-process only and websocket tickets are unavailable.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = cache.InitRedis(ctx, cfg.RedisURL)
		if err != nil {
			if cfg.IsProduction() {
				_ = database.Close(db)
				return nil, fmt.Errorf("redis connection failed: %w", err)
			}
			observability.Logger.Warn("redis_unavailable_running_single_process",
				slog.String("error", err.Error()))
			rdb = nil
		}
	}

	rt, err := Wire(cfg, db, rdb)
	if err != nil {
		_ = database.Close(db)
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}
	return rt, nil
}

// Wire builds the runtime over already-initialized connections. rdb may be nil.
func Wire(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Runtime, error) {
	tokens, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience,
		time.Duration(cfg.TokenTTLHours)*time.Hour)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:       cfg,
		DB:           db,
		Redis:        rdb,
		Tokens:       tokens,
		FeatureFlags: featureflags.NewManager(cfg.FeatureFlags),
	}

	rt.Registry = notifications.NewRegistry(rt.FeatureFlags.Policy(featureflags.MultiRoom))
	if rdb != nil {
		rt.Notifier = notifications.NewNotifier(rdb)
		rt.Router = notifications.NewRouter(rt.Registry, rt.Notifier)
	} else {
		rt.Router = notifications.NewRouter(rt.Registry, nil)
	}
	rt.Hub = notifications.NewHub(rt.Registry, notifications.HubConfig{
		SendBuffer:   cfg.WSSendBuffer,
		InboundRPS:   cfg.WSInboundRPS,
		InboundBurst: cfg.WSInboundBurst,
	})
	rt.Dispatcher = feed.NewDispatcher(rt.Router)

	communityRepo := repository.NewCommunityRepository(db)
	postRepo := repository.NewPostRepository(db)
	userRepo := repository.NewUserRepository(db)

	rt.LikeStore = repository.NewLikeStore(db)
	rt.Engine = likes.NewEngine(rt.LikeStore, likes.WithListener(rt.Dispatcher))
	if cfg.LikesReconcileCron != "" {
		rt.Reconciler, err = likes.NewReconciler(rt.LikeStore, cfg.LikesReconcileCron)
		if err != nil {
			return nil, err
		}
	}

	rt.Communities = service.NewCommunityService(communityRepo, postRepo, cache.New(rdb))
	rt.Posts = service.NewPostService(postRepo, communityRepo, rt.Engine, rt.Dispatcher)
	rt.Users = service.NewUserService(userRepo)

	rt.Server = server.NewServer(server.Deps{
		Config:       cfg,
		DB:           db,
		Redis:        rdb,
		Tokens:       tokens,
		Hub:          rt.Hub,
		FeatureFlags: rt.FeatureFlags,
		Communities:  rt.Communities,
		Posts:        rt.Posts,
		Users:        rt.Users,
	})
	return rt, nil
}

// StartBackground starts the relay subscriber and the like reconciler. Both
// stop when ctx is done.
func (rt *Runtime) StartBackground(ctx context.Context) error {
	if rt.Notifier != nil {
		if err := rt.Router.StartWiring(ctx, rt.Notifier); err != nil {
			return fmt.Errorf("start feed relay: %w", err)
		}
	}
	if rt.Reconciler != nil {
		go rt.Reconciler.Run(ctx)
	}
	return nil
}

// Close releases the relay, Redis and the database.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Notifier != nil {
		errs = append(errs, rt.Notifier.Close())
	}
	if rt.Redis != nil {
		errs = append(errs, rt.Redis.Close())
	}
	if rt.DB != nil {
		errs = append(errs, database.Close(rt.DB))
	}
	return errors.Join(errs...)
}
