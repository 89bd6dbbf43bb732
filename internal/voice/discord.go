package voice

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/keshon/driveby/internal/music"
	"github.com/keshon/driveby/internal/music/sources"
	"github.com/keshon/driveby/internal/music/stream"
	"github.com/keshon/driveby/pkg/log"
)

// Transport is the discordgo backed Dialer. It also turns gateway voice
// state updates into ClientDisconnected events.
type Transport struct {
	dg      *discordgo.Session
	streams stream.Registry
	events  chan Event
	done    chan struct{}
	once    sync.Once

	connect    func(guildID, channelID string) (*discordgo.VoiceConnection, error)
	disconnect func(vc *discordgo.VoiceConnection) error
}

func NewTransport(dg *discordgo.Session, streams stream.Registry) *Transport {
	return &Transport{
		dg:      dg,
		streams: streams,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		connect: func(guildID, channelID string) (*discordgo.VoiceConnection, error) {
			return dg.ChannelVoiceJoin(guildID, channelID, false, true)
		},
		disconnect: func(vc *discordgo.VoiceConnection) error {
			return vc.Disconnect()
		},
	}
}

func (t *Transport) Events() <-chan Event {
	return t.events
}

// Close stops event delivery. Pending senders are released.
func (t *Transport) Close() {
	t.once.Do(func() { close(t.done) })
}

func (t *Transport) Join(ctx context.Context, guildID, channelID string) (Call, error) {
	type result struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	ch := make(chan result, 1)
	go func() {
		vc, err := t.connect(guildID, channelID)
		ch <- result{vc, err}
	}()

	select {
	case <-ctx.Done():
		// The join still completes in the background; nobody owns it.
		go func() {
			if r := <-ch; r.err == nil && r.vc != nil {
				if err := t.disconnect(r.vc); err != nil {
					log.Warn(log.Fields{"guild": guildID, "error": err.Error()}, "[Voice] Failed to drop abandoned voice connection")
				}
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("failed to join voice channel: %w", r.err)
		}
		log.Info(log.Fields{"guild": guildID, "channel": channelID}, "[Voice] Joined voice channel")
		return &discordCall{t: t, vc: r.vc, guildID: guildID}, nil
	}
}

// OnVoiceStateUpdate is registered as a discordgo handler.
func (t *Transport) OnVoiceStateUpdate(_ *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	before := vsu.BeforeUpdate
	if vsu.VoiceState == nil || before == nil || before.ChannelID == "" || before.ChannelID == vsu.ChannelID {
		return
	}
	t.emit(ClientDisconnected{GuildID: vsu.GuildID, ChannelID: before.ChannelID, UserID: vsu.UserID})
}

func (t *Transport) emit(ev Event) {
	select {
	case t.events <- ev:
	case <-t.done:
	}
}

type discordCall struct {
	t       *Transport
	guildID string

	mu      sync.Mutex
	vc      *discordgo.VoiceConnection
	bitrate int
}

func (c *discordCall) GuildID() string { return c.guildID }

func (c *discordCall) ChannelID() string {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.ChannelID
}

// SetBitrate applies to tracks loaded afterwards.
func (c *discordCall) SetBitrate(bitrate int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bitrate = bitrate
}

func (c *discordCall) Load(id uuid.UUID, info sources.TrackInfo) music.Handle {
	c.mu.Lock()
	bitrate := c.bitrate
	c.mu.Unlock()

	return stream.NewPlayback(stream.Config{
		Name: info.Metadata().Title,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			s, err := c.t.streams.Open(ctx, info)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Sink:    sink{c.vc},
		Bitrate: bitrate,
		OnEnd:   func() { c.t.emit(TrackEnded{GuildID: c.guildID, TrackID: id}) },
	})
}

func (c *discordCall) Leave() error {
	return c.t.disconnect(c.vc)
}

type sink struct {
	vc *discordgo.VoiceConnection
}

func (s sink) Frames() chan<- []byte  { return s.vc.OpusSend }
func (s sink) Speaking(on bool) error { return s.vc.Speaking(on) }
