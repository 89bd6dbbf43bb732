// Package music maps each accepted command shape onto the session
// controller. Command names match grammar.Command.Name().
package music

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/keshon/driveby/internal/apperr"
	"github.com/keshon/driveby/internal/music/session"
	"github.com/keshon/driveby/pkg/cmd"
)

// Player is the part of the session controller the commands drive.
type Player interface {
	Help() string
	List() (string, error)
	Pause() error
	Resume() error
	Skip() error
	Stop() error
	Clear() error
	Leave() error
	Goto(idx int) error
	Remove(idx ...int) error
	Play(ctx context.Context, req session.Request, url string) error
	PlaySearch(ctx context.Context, req session.Request, query string) error
	Driveby(ctx context.Context, req session.Request, url string) error
	DrivebySearch(ctx context.Context, req session.Request, query string) error
	Enqueue(ctx context.Context, req session.Request, urls []string) error
	Next(ctx context.Context, req session.Request, urls []string) error
}

type runFunc func(ctx context.Context, p Player, inv *cmd.Invocation) error

type musicCommand struct {
	name string
	desc string
	p    Player
	run  runFunc
}

func (c *musicCommand) Name() string        { return c.name }
func (c *musicCommand) Description() string { return c.desc }

func (c *musicCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	return c.run(ctx, c.p, inv)
}

// Commands returns one command per grammar row, bound to p.
func Commands(p Player) []cmd.Command {
	defs := []struct {
		name, desc string
		run        runFunc
	}{
		{"help", "Show the command reference", help},
		{"list", "Show the queue", list},
		{"pause", "Pause the current track", simple(Player.Pause)},
		{"resume", "Resume the current track", simple(Player.Resume)},
		{"skip", "Skip the current track", simple(Player.Skip)},
		{"clear", "Drop every queued track but the current one", simple(Player.Clear)},
		{"stop", "Stop playback and empty the queue", simple(Player.Stop)},
		{"leave", "Leave the voice channel", simple(Player.Leave)},
		{"play", "Play a link right now in your channel", single(Player.Play)},
		{"play search", "Search a title and play it right now", search(Player.PlaySearch)},
		{"driveby", "Play a link once in the busiest channel, then leave", single(Player.Driveby)},
		{"driveby search", "Search a title and drive by with it", search(Player.DrivebySearch)},
		{"queue", "Append links to the queue", multi(Player.Enqueue)},
		{"next", "Queue links right after the current track", multi(Player.Next)},
		{"goto", "Jump to a queue position", gotoIndex},
		{"rm", "Remove queue positions", remove},
	}

	out := make([]cmd.Command, 0, len(defs))
	for _, d := range defs {
		out = append(out, &musicCommand{name: d.name, desc: d.desc, p: p, run: d.run})
	}
	return out
}

func requestOf(inv *cmd.Invocation) session.Request {
	return session.Request{
		GuildID:   inv.GuildID,
		ChannelID: inv.ChannelID,
		UserID:    inv.UserID,
		MessageID: inv.MessageID,
	}
}

func help(_ context.Context, p Player, inv *cmd.Invocation) error {
	return inv.Respond(p.Help())
}

func list(_ context.Context, p Player, inv *cmd.Invocation) error {
	out, err := p.List()
	if err != nil {
		return err
	}
	return inv.Respond(out)
}

func simple(fn func(Player) error) runFunc {
	return func(_ context.Context, p Player, _ *cmd.Invocation) error {
		return fn(p)
	}
}

func single(fn func(Player, context.Context, session.Request, string) error) runFunc {
	return func(ctx context.Context, p Player, inv *cmd.Invocation) error {
		if len(inv.Args) != 1 {
			return argCountError(1, len(inv.Args))
		}
		return fn(p, ctx, requestOf(inv), inv.Args[0])
	}
}

func search(fn func(Player, context.Context, session.Request, string) error) runFunc {
	return func(ctx context.Context, p Player, inv *cmd.Invocation) error {
		if len(inv.Args) == 0 {
			return argCountError(1, 0)
		}
		return fn(p, ctx, requestOf(inv), strings.Join(inv.Args, " "))
	}
}

func multi(fn func(Player, context.Context, session.Request, []string) error) runFunc {
	return func(ctx context.Context, p Player, inv *cmd.Invocation) error {
		if len(inv.Args) == 0 {
			return argCountError(1, 0)
		}
		return fn(p, ctx, requestOf(inv), inv.Args)
	}
}

func gotoIndex(_ context.Context, p Player, inv *cmd.Invocation) error {
	if len(inv.Args) != 1 {
		return argCountError(1, len(inv.Args))
	}
	idx, err := parseIndex(inv.Args[0])
	if err != nil {
		return err
	}
	return p.Goto(idx)
}

func remove(_ context.Context, p Player, inv *cmd.Invocation) error {
	if len(inv.Args) == 0 {
		return argCountError(1, 0)
	}
	idx := make([]int, 0, len(inv.Args))
	for _, a := range inv.Args {
		i, err := parseIndex(a)
		if err != nil {
			return err
		}
		idx = append(idx, i)
	}
	return p.Remove(idx...)
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindParse, fmt.Errorf("%q is not a queue position", s))
	}
	return i, nil
}

func argCountError(want, got int) error {
	return apperr.Wrap(apperr.KindParse, fmt.Errorf("expected %d argument(s), got %d", want, got))
}
