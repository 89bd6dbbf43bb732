package discord

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/driveby/internal/music/join"
)

const maxMessageLength = 2000

// Chat is the chat capability backed by the gateway state cache.
type Chat struct {
	dg *discordgo.Session
}

func NewChat(dg *discordgo.Session) *Chat {
	return &Chat{dg: dg}
}

// SelfID is the bot's user ID, empty until the gateway is ready.
func (c *Chat) SelfID() string {
	if c.dg.State == nil || c.dg.State.User == nil {
		return ""
	}
	return c.dg.State.User.ID
}

// VoiceChannels lists the guild's voice channels with their current members.
func (c *Chat) VoiceChannels(guildID string) ([]join.VoiceChannel, error) {
	g, err := c.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("guild %s not in state: %w", guildID, err)
	}
	return voiceChannels(g), nil
}

func voiceChannels(g *discordgo.Guild) []join.VoiceChannel {
	members := make(map[string][]string)
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != "" {
			members[vs.ChannelID] = append(members[vs.ChannelID], vs.UserID)
		}
	}

	var out []join.VoiceChannel
	for _, ch := range g.Channels {
		if ch.Type != discordgo.ChannelTypeGuildVoice {
			continue
		}
		out = append(out, join.VoiceChannel{
			ID:      ch.ID,
			Name:    ch.Name,
			Bitrate: ch.Bitrate,
			Members: members[ch.ID],
		})
	}
	return out
}

// Members returns the user IDs currently in a voice channel.
func (c *Chat) Members(guildID, channelID string) ([]string, error) {
	chans, err := c.VoiceChannels(guildID)
	if err != nil {
		return nil, err
	}
	for _, ch := range chans {
		if ch.ID == channelID {
			return ch.Members, nil
		}
	}
	return nil, fmt.Errorf("voice channel %s not found", channelID)
}

func (c *Chat) SendMessage(channelID, text string) error {
	_, err := c.dg.ChannelMessageSend(channelID, fitMessage(text))
	return err
}

func (c *Chat) React(channelID, messageID, emoji string) error {
	return c.dg.MessageReactionAdd(channelID, messageID, emoji)
}

// fitMessage trims text to Discord's message limit, closing a code fence
// that would otherwise be cut.
func fitMessage(text string) string {
	if len(text) <= maxMessageLength {
		return text
	}
	const tail = "\n…\n```"
	n := maxMessageLength - len(tail)
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	cut := text[:n]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	if strings.HasPrefix(text, "```") {
		return cut + tail
	}
	return cut + "\n…"
}
