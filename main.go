package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	csh_auth "github.com/computersciencehouse/csh-auth"
	"github.com/courtside/livevote/api"
	"github.com/courtside/livevote/bridge"
	"github.com/courtside/livevote/config"
	"github.com/courtside/livevote/database"
	"github.com/courtside/livevote/database/memory"
	"github.com/courtside/livevote/leaderboard"
	"github.com/courtside/livevote/logging"
	"github.com/courtside/livevote/sse"
	"github.com/courtside/livevote/voting"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// backend is everything the service needs from persistence.
type backend interface {
	database.Store
	database.MatchFeed
	database.PlayerDirectory
}

func main() {
	log := logging.Logger.WithFields(logrus.Fields{"module": "main"})

	cfg, err := config.Load()
	if err != nil {
		log.WithField("error", err).Fatal("invalid configuration")
	}
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		log.WithField("error", err).Warn("unknown log level, keeping info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.WithField("error", err).Fatal("error opening store")
	}
	defer closeStore()

	broker := sse.NewBroker(logging.Logger)
	go broker.Listen(ctx)

	svc := voting.NewService(store, voting.Options{
		Notifier: broker,
		Logger:   logging.Logger,
		Retry: voting.RetryPolicy{
			MaxTries:        cfg.RetryMaxTries,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     cfg.RetryMaxInterval,
		},
	})

	dir, err := leaderboard.LoadDirectory(ctx, store)
	if err != nil {
		log.WithField("error", err).Warn("player directory unavailable, leaderboards will show ids")
		dir = leaderboard.StaticDirectory{}
	}

	matches := bridge.New(store, svc, svc, logging.Logger)
	go matches.Run(ctx, cfg.ScanInterval)
	if cfg.WatchMatches {
		unsubscribe, err := matches.Watch(ctx)
		if err != nil {
			log.WithField("error", err).Warn("match watch unavailable, relying on scans")
		} else {
			defer unsubscribe()
		}
	}

	csh := csh_auth.CSHAuth{}
	csh.Init(
		cfg.Auth.ClientID,
		cfg.Auth.ClientSecret,
		cfg.Auth.JWTSecret,
		cfg.Auth.State,
		cfg.Auth.Host,
		cfg.Auth.Host+"/auth/callback",
		cfg.Auth.Host+"/auth/login",
		[]string{"profile", "email", "groups"},
	)

	r := gin.Default()
	r.GET("/auth/login", csh.AuthRequest)
	r.GET("/auth/callback", csh.AuthCallback)
	r.GET("/auth/logout", csh.AuthLogout)

	api.NewServer(svc, dir, api.Options{
		Auth:            func(h gin.HandlerFunc) gin.HandlerFunc { return csh.AuthWrapper(h) },
		AdminGroups:     cfg.AdminGroups,
		LeaderboardSize: cfg.LeaderboardSize,
		Events:          broker.ServeHTTP,
		Logger:          logging.Logger,
	}).Register(r)

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			log.WithField("error", err).Error("error shutting down")
		}
	}()

	log.WithFields(logrus.Fields{"addr": cfg.Addr, "store": cfg.Store}).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithField("error", err).Fatal("server stopped")
	}
}

func openStore(ctx context.Context, cfg config.Config) (backend, func(), error) {
	if cfg.Store == config.StoreMemory {
		return memory.New(), func() {}, nil
	}

	mongo, err := database.Connect(ctx, cfg.MongoURI, cfg.Database, cfg.StoreTimeout, logging.Logger)
	if err != nil {
		return nil, nil, err
	}
	if err := mongo.EnsureIndexes(ctx); err != nil {
		_ = mongo.Disconnect(context.Background())
		return nil, nil, err
	}
	return mongo, func() {
		if err := mongo.Disconnect(context.Background()); err != nil {
			logging.Logger.WithFields(logrus.Fields{"module": "main", "error": err}).Error("error disconnecting")
		}
	}, nil
}
