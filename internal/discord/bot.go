// Package discord connects the command registry and the voice session to a
// Discord bot account.
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/driveby/pkg/cmd"
	"github.com/keshon/driveby/pkg/jobmgr"
	"github.com/keshon/driveby/pkg/log"
)

const (
	reactionOK   = "✅"
	reactionFail = "❌"
)

type Options struct {
	// AudioChannelID limits intake to one text channel. When empty the bot
	// only listens to messages that mention it.
	AudioChannelID string
	Registry       *cmd.Registry
	Lanes          *jobmgr.Manager
	// OnShutdown runs after ctx is done and before the gateway closes.
	OnShutdown func()
}

type Bot struct {
	dg         *discordgo.Session
	chat       *Chat
	in         *intake
	onShutdown func()
}

// NewSession creates a discordgo session with the intents the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildVoiceStates |
		discordgo.IntentMessageContent
	dg.StateEnabled = true
	dg.State.TrackVoice = true
	dg.State.TrackChannels = true
	return dg, nil
}

func New(dg *discordgo.Session, opts Options) *Bot {
	chat := NewChat(dg)
	return &Bot{
		dg:         dg,
		chat:       chat,
		onShutdown: opts.OnShutdown,
		in: &intake{
			audioChannelID: opts.AudioChannelID,
			registry:       opts.Registry,
			lanes:          opts.Lanes,
			out:            chat,
		},
	}
}

func (b *Bot) Chat() *Chat {
	return b.chat
}

// Run opens the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onMessageCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	log.Info(nil, "[Discord] Shutdown signal received, closing gateway")
	if b.onShutdown != nil {
		b.onShutdown()
	}
	return nil
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.in.setSelf(r.User.ID)
	log.Info(log.Fields{"user": r.User.Username, "guilds": len(r.Guilds)}, "[Discord] Bot is running")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	msg := message{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		AuthorID:  m.Author.ID,
		Username:  m.Author.Username,
		Content:   m.Content,
	}
	for _, u := range m.Mentions {
		msg.Mentions = append(msg.Mentions, u.ID)
	}
	b.in.handle(msg)
}

// selfID is shared between the intake and the chat capability.
type selfID struct {
	mu sync.RWMutex
	id string
}

func (s *selfID) set(id string) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

func (s *selfID) get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}
