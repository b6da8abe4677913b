package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/virtualdj/server/backend/catalog"
	"github.com/virtualdj/server/backend/config"
	"github.com/virtualdj/server/backend/history"
	"github.com/virtualdj/server/backend/identity"
	"github.com/virtualdj/server/backend/rooms"
	httpServer "github.com/virtualdj/server/backend/server/http"
	websocketServer "github.com/virtualdj/server/backend/server/websocket"
	"github.com/virtualdj/server/backend/service"
	sw "github.com/virtualdj/server/backend/switch"
)

const redisPingTimeout = 5 * time.Second

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)

	var (
		apiListenAddr = fs.StringP("api-listen-addr", "a", ":8080", "api listen address")
		wsListenAddr  = fs.StringP("ws-listen-addr", "w", ":8888", "websocket listen address")
		logLevel      = fs.StringP("log-level", "l", "debug", "log level")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	hist := newHistoryStore(cfg, &logger)

	fanout := sw.NewSwitch(&logger)
	dir := rooms.NewDirectory(rooms.Config{
		MinGuests:          cfg.MinGuests,
		MaxGuests:          cfg.MaxGuests,
		SuggestionCooldown: cfg.SuggestionCooldown,
		DebounceWindow:     cfg.DebounceWindow,
		RecentChatLimit:    cfg.RecentChatLimit,
		EmptyRoomGrace:     cfg.EmptyRoomGrace,
	}, fanout, &logger)

	svc := service.NewService(service.Config{
		Directory: dir,
		Fanout:    fanout,
		History:   hist,
		Catalog: catalog.NewYouTube(catalog.Config{
			Logger:  &logger,
			APIKey:  cfg.YouTubeAPIKey,
			BaseURL: cfg.YouTubeBaseURL,
		}),
		Logger: &logger,
	})

	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:      &logger,
		RoomService: svc,
		ListenAddr:  *apiListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:      &logger,
		RoomService: svc,
		Identity:    identity.NewProvider(cfg.AuthSecret),
		ListenAddr:  *wsListenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}

func newHistoryStore(cfg *config.Config, logger *zerolog.Logger) history.Store {
	if cfg.HistoryBackend != "redis" {
		return history.NewMemStore(cfg.HistoryMaxLen)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis is unreachable")
	}
	return history.NewRedisStore(client, cfg.HistoryMaxLen)
}
