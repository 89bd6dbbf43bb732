// Package statusserver exposes a read-only HTTP view of the voice session
// and the stored history.
package statusserver

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/keshon/driveby/internal/music/session"
	"github.com/keshon/driveby/internal/storage"
	"github.com/keshon/driveby/pkg/log"
)

type SessionView interface {
	Snapshot() session.Snapshot
}

type HistoryView interface {
	FetchCommandHistory(guildID string) ([]storage.CommandHistoryRecord, error)
	FetchTrackHistory(guildID string) ([]storage.TrackHistoryRecord, error)
}

type JobsView interface {
	List() []string
}

type Server struct {
	app  *fiber.App
	addr string
}

type Options struct {
	Addr    string
	Session SessionView
	History HistoryView
	Jobs    JobsView
}

func New(opts Options) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "driveby status",
		DisableStartupMessage: true,
		StrictRouting:         true,
		CaseSensitive:         true,
		JSONEncoder:           jsoniter.Marshal,
		JSONDecoder:           jsoniter.Unmarshal,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/queue", func(c *fiber.Ctx) error {
		return c.JSON(opts.Session.Snapshot())
	})

	if opts.Jobs != nil {
		app.Get("/jobs", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"lanes": opts.Jobs.List()})
		})
	}

	if opts.History != nil {
		app.Get("/history/:guildID", func(c *fiber.Ctx) error {
			guildID := c.Params("guildID")
			cmds, err := opts.History.FetchCommandHistory(guildID)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
			tracks, err := opts.History.FetchTrackHistory(guildID)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
			return c.JSON(fiber.Map{"guild_id": guildID, "commands": cmds, "tracks": tracks})
		})
	}

	return &Server{app: app, addr: opts.Addr}
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info(log.Fields{"addr": s.addr}, "[Status] Listening")
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
