// Package voice is the bot's side of a voice connection: joining channels,
// loading tracks into the call and reporting what happens on the transport.
package voice

import (
	"context"

	"github.com/google/uuid"

	"github.com/keshon/driveby/internal/music"
	"github.com/keshon/driveby/internal/music/sources"
)

// Event is something the transport observed. It is one of TrackEnded or
// ClientDisconnected.
type Event interface {
	guild() string
}

// TrackEnded is sent once for every started track when it finishes, fails
// or is stopped.
type TrackEnded struct {
	GuildID string
	TrackID uuid.UUID
}

// ClientDisconnected is sent when a user leaves a voice channel.
type ClientDisconnected struct {
	GuildID   string
	ChannelID string
	UserID    string
}

func (e TrackEnded) guild() string         { return e.GuildID }
func (e ClientDisconnected) guild() string { return e.GuildID }

// Call is a joined voice channel.
type Call interface {
	GuildID() string
	ChannelID() string
	SetBitrate(bitrate int)
	// Load prepares a track for playback. Nothing is sent until the
	// returned handle is played.
	Load(id uuid.UUID, info sources.TrackInfo) music.Handle
	Leave() error
}

// Dialer joins voice channels. Joining a channel in a guild that already has
// a call moves that call.
type Dialer interface {
	Join(ctx context.Context, guildID, channelID string) (Call, error)
}
