package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/driveby/internal/apperr"
	"github.com/keshon/driveby/internal/grammar"
	"github.com/keshon/driveby/pkg/cmd"
	"github.com/keshon/driveby/pkg/jobmgr"
	"github.com/keshon/driveby/pkg/log"
)

type message struct {
	GuildID   string
	ChannelID string
	MessageID string
	AuthorID  string
	Username  string
	Content   string
	Mentions  []string
}

type outbox interface {
	SendMessage(channelID, text string) error
	React(channelID, messageID, emoji string) error
}

// intake filters messages, parses each line and runs the matching command
// on the author's lane in that channel.
type intake struct {
	audioChannelID string
	registry       *cmd.Registry
	lanes          *jobmgr.Manager
	out            outbox
	self           selfID
}

func (in *intake) setSelf(id string) { in.self.set(id) }

func (in *intake) accepts(m message) bool {
	self := in.self.get()
	if m.AuthorID == self {
		return false
	}
	if in.audioChannelID != "" {
		return m.ChannelID == in.audioChannelID
	}
	for _, id := range m.Mentions {
		if id == self {
			return true
		}
	}
	return false
}

func (in *intake) handle(m message) {
	if !in.accepts(m) {
		return
	}

	content := stripMention(m.Content, in.self.get())
	lane := m.ChannelID + ":" + m.AuthorID

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		err := in.lanes.Submit(lane, "message", func(ctx context.Context) error {
			return in.execute(ctx, m, line)
		})
		if err != nil {
			log.Warn(log.Fields{"lane": lane, "error": err.Error()}, "[Discord] Dropped command")
		}
	}
}

func (in *intake) execute(ctx context.Context, m message, line string) error {
	err := in.dispatch(ctx, m, line)
	if err == nil {
		in.react(m, reactionOK)
		return nil
	}

	in.react(m, reactionFail)
	if sendErr := in.out.SendMessage(m.ChannelID, err.Error()); sendErr != nil {
		log.Warn(log.Fields{"channel": m.ChannelID, "error": sendErr.Error()}, "[Discord] Failed to send error reply")
	}
	return err
}

func (in *intake) dispatch(ctx context.Context, m message, line string) error {
	parsed, err := grammar.Parse(line)
	if err != nil {
		return err
	}

	c := in.registry.Get(parsed.Name())
	if c == nil {
		return apperr.Wrap(apperr.KindParse, fmt.Errorf("command %q is not available", parsed.Name()))
	}

	inv := &cmd.Invocation{
		Args:      parsed.Args,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.AuthorID,
		Username:  m.Username,
		MessageID: m.MessageID,
		Reply:     func(text string) error { return in.out.SendMessage(m.ChannelID, text) },
	}
	return c.Run(ctx, inv)
}

func (in *intake) react(m message, emoji string) {
	if err := in.out.React(m.ChannelID, m.MessageID, emoji); err != nil {
		log.Warn(log.Fields{"message": m.MessageID, "error": err.Error()}, "[Discord] Failed to react")
	}
}

// stripMention removes <@id> and <@!id> mentions of the bot.
func stripMention(content, self string) string {
	if self == "" {
		return content
	}
	content = strings.ReplaceAll(content, "<@"+self+">", "")
	return strings.ReplaceAll(content, "<@!"+self+">", "")
}
