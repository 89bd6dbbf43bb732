// Package middleware holds the cmd.Middleware chain applied to every chat
// command.
package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/keshon/driveby/internal/apperr"
	"github.com/keshon/driveby/internal/storage"
	"github.com/keshon/driveby/pkg/cmd"
	"github.com/keshon/driveby/pkg/log"
)

var (
	ErrGuildOnly   = apperr.New(apperr.KindSession, "this command only works inside a server")
	ErrRateLimited = apperr.New(apperr.KindThrottle, "slow down, too many commands")
)

// CommandLog is where executed commands are recorded.
type CommandLog interface {
	AppendCommandToHistory(guildID string, rec storage.CommandHistoryRecord) error
}

// WithGuildOnly rejects invocations that did not come from a guild.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if inv.GuildID == "" {
				return ErrGuildOnly
			}
			return c.Run(ctx, inv)
		})
	}
}

// WithCommandLogger logs each command with its outcome and appends it to
// the guild's command history.
func WithCommandLogger(history CommandLog) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)

			fields := log.Fields{
				"command":  c.Name(),
				"args":     inv.Args,
				"guild":    inv.GuildID,
				"user":     inv.UserID,
				"duration": time.Since(start).String(),
			}
			if err != nil {
				fields["error"] = err.Error()
				fields["kind"] = apperr.KindOf(err).String()
				log.Warn(fields, "[Command] Failed")
			} else {
				log.Info(fields, "[Command] Executed")
			}

			if history != nil && inv.GuildID != "" {
				rec := storage.CommandHistoryRecord{
					ChannelID: inv.ChannelID,
					UserID:    inv.UserID,
					Username:  inv.Username,
					Command:   c.Name(),
					Param:     strings.Join(inv.Args, " "),
					Failed:    err != nil,
				}
				if e := history.AppendCommandToHistory(inv.GuildID, rec); e != nil {
					log.Warn(log.Fields{"command": c.Name(), "error": e.Error()}, "[Command] Failed to record command")
				}
			}
			return err
		})
	}
}

// UserLimiter hands out one token bucket per user.
type UserLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

// NewUserLimiter allows perSecond commands per user with the given burst.
// A non-positive rate disables limiting.
func NewUserLimiter(perSecond float64, burst int) *UserLimiter {
	if burst < 1 {
		burst = 1
	}
	return &UserLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (u *UserLimiter) Allow(userID string) bool {
	if u.limit <= 0 {
		return true
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.buckets[userID]
	if !ok {
		l = rate.NewLimiter(u.limit, u.burst)
		u.buckets[userID] = l
	}
	return l.Allow()
}

// WithRateLimit rejects a user's command once their bucket is empty.
func WithRateLimit(u *UserLimiter) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if !u.Allow(inv.UserID) {
				log.Debug(log.Fields{"user": inv.UserID, "command": c.Name()}, "[Command] Rate limited")
				return ErrRateLimited
			}
			return c.Run(ctx, inv)
		})
	}
}
