package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/driveby/internal/command/music"
	"github.com/keshon/driveby/internal/config"
	"github.com/keshon/driveby/internal/discord"
	"github.com/keshon/driveby/internal/middleware"
	"github.com/keshon/driveby/internal/music/parsers"
	"github.com/keshon/driveby/internal/music/parsers/ffmpeg"
	"github.com/keshon/driveby/internal/music/parsers/kkdai"
	"github.com/keshon/driveby/internal/music/parsers/ytdlp"
	"github.com/keshon/driveby/internal/music/resolver"
	"github.com/keshon/driveby/internal/music/session"
	"github.com/keshon/driveby/internal/music/sources/link"
	"github.com/keshon/driveby/internal/music/sources/youtube"
	"github.com/keshon/driveby/internal/music/stream"
	"github.com/keshon/driveby/internal/music/supervisor"
	"github.com/keshon/driveby/internal/statusserver"
	"github.com/keshon/driveby/internal/storage"
	"github.com/keshon/driveby/internal/voice"
	"github.com/keshon/driveby/pkg/cmd"
	"github.com/keshon/driveby/pkg/jobmgr"
	"github.com/keshon/driveby/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "[Main] Failed to load configuration")
	}
	log.Setup(log.Options{Level: cfg.LogLevel, File: cfg.LogFile, AppEnv: cfg.AppEnv})
	log.Info(nil, "[Main] Starting driveby bot")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatal(log.Fields{"path": cfg.StoragePath, "error": err.Error()}, "[Main] Failed to open storage")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(log.Fields{"error": err.Error()}, "[Main] Failed to flush storage")
		}
	}()

	yt := youtube.New(youtube.NewHTTPClient(cfg.YouTubeProxy))
	res := resolver.New(yt, link.New())
	streams := stream.Registry{
		parsers.KkdaiLink:  kkdai.New(yt.Client()),
		parsers.YtdlpLink:  ytdlp.Streamer{},
		parsers.FFmpegLink: ffmpeg.Streamer{},
	}

	dg, err := discord.NewSession(cfg.DiscordToken)
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "[Main] Failed to create Discord session")
	}
	transport := voice.NewTransport(dg, streams)
	defer transport.Close()
	dg.AddHandler(transport.OnVoiceStateUpdate)

	lanes := jobmgr.NewManager(ctx, func(s string) {
		log.Debug(log.Fields{"job": s}, "[Jobs] Status")
	})
	defer lanes.Close()

	registry := cmd.NewRegistry()
	sup := supervisor.New(cfg.IdleTimeout, cfg.DisconnectSettle)

	var ctrl *session.Controller
	bot := discord.New(dg, discord.Options{
		AudioChannelID: cfg.AudioChannelID,
		Registry:       registry,
		Lanes:          lanes,
		OnShutdown:     func() { ctrl.Shutdown("process exit") },
	})
	ctrl = session.New(session.Options{
		Dialer:         transport,
		Chat:           bot.Chat(),
		Resolver:       res,
		Supervisor:     sup,
		History:        store,
		ResolveTimeout: cfg.ResolveTimeout,
	})

	limiter := middleware.NewUserLimiter(cfg.CommandRate, cfg.CommandBurst)
	for _, c := range music.Commands(ctrl) {
		wrapped := cmd.Apply(c,
			middleware.WithRateLimit(limiter),
			middleware.WithGuildOnly(),
			middleware.WithCommandLogger(store),
		)
		if err := registry.Register(wrapped); err != nil {
			log.Fatal(log.Fields{"error": err.Error()}, "[Main] Failed to register command")
		}
	}

	go sup.Run(ctx, transport.Events(), ctrl)

	if cfg.StatusAddr != "" {
		srv := statusserver.New(statusserver.Options{
			Addr:    cfg.StatusAddr,
			Session: ctrl,
			History: store,
			Jobs:    lanes,
		})
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Error(log.Fields{"error": err.Error()}, "[Main] Status server stopped")
			}
		}()
	}

	if err := bot.Run(ctx); err != nil {
		log.Error(log.Fields{"error": err.Error()}, "[Main] Discord bot error")
		stop()
		ctrl.Shutdown("bot error")
	}

	log.Info(nil, "[Main] Discord bot exited cleanly")
}
