// Package session owns the single voice call the bot can be in and turns
// chat commands into queue operations on it.
//
// Every method takes the controller lock for short sections only. Media
// resolution and transport joins happen outside the lock, and anything
// that reacquires it checks the session epoch first: work started for a
// session that has since been torn down is discarded.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keshon/driveby/internal/apperr"
	"github.com/keshon/driveby/internal/music"
	"github.com/keshon/driveby/internal/music/join"
	"github.com/keshon/driveby/internal/music/queue"
	"github.com/keshon/driveby/internal/music/sources"
	"github.com/keshon/driveby/internal/music/supervisor"
	"github.com/keshon/driveby/internal/voice"
	"github.com/keshon/driveby/pkg/log"
	"github.com/keshon/driveby/pkg/util"
)

// resolveWorkers bounds concurrent lookups for a multi-link queue command.
const resolveWorkers = 4

var (
	ErrNoActiveSession = apperr.New(apperr.KindSession, "not in a voice channel")
	ErrSessionGone     = apperr.New(apperr.KindSession, "the voice session ended before the track was ready")
	ErrSessionBusy     = apperr.New(apperr.KindSession, "already playing in another server")
)

// Chat is the read side of the chat platform.
type Chat interface {
	VoiceChannels(guildID string) ([]join.VoiceChannel, error)
	Members(guildID, channelID string) ([]string, error)
	SelfID() string
}

type Resolver interface {
	Resolve(ctx context.Context, input string) (sources.TrackInfo, error)
	Search(ctx context.Context, query string) (sources.TrackInfo, error)
}

// History records tracks as they are queued for playback.
type History interface {
	AppendTrack(guildID string, meta music.Metadata) error
}

// Request identifies who issued a command and where.
type Request struct {
	GuildID   string
	ChannelID string
	UserID    string
	MessageID string
}

// CallSession exists only while the bot is in a voice channel.
type CallSession struct {
	GuildID   string
	ChannelID string
	call      voice.Call
	queue     *queue.Queue
	bitrate   int
	action    music.TrackEndAction
	epoch     uint64
}

type Options struct {
	Dialer         voice.Dialer
	Chat           Chat
	Resolver       Resolver
	Supervisor     *supervisor.Supervisor
	History        History
	ResolveTimeout time.Duration
	NewID          func() uuid.UUID
}

type Controller struct {
	mu    sync.Mutex
	sess  *CallSession
	epoch uint64

	// loading counts play and queue commands between their first countdown
	// cancel and their final locked section. While it is non-zero no idle
	// countdown runs; a countdown asked for in the meantime is remembered in
	// rearm and started once the last load finishes.
	loading int
	rearm   bool

	dialer         voice.Dialer
	chat           Chat
	resolver       Resolver
	sup            *supervisor.Supervisor
	history        History
	resolveTimeout time.Duration
	newID          func() uuid.UUID
}

func New(opts Options) *Controller {
	if opts.Supervisor == nil {
		opts.Supervisor = supervisor.New(supervisor.DefaultTimeout, supervisor.DefaultSettle)
	}
	if opts.NewID == nil {
		opts.NewID = uuid.New
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = time.Minute
	}
	return &Controller{
		dialer:         opts.Dialer,
		chat:           opts.Chat,
		resolver:       opts.Resolver,
		sup:            opts.Supervisor,
		history:        opts.History,
		resolveTimeout: opts.ResolveTimeout,
		newID:          opts.NewID,
	}
}

// Play resolves url and plays it right away, ahead of the queue.
func (c *Controller) Play(ctx context.Context, req Request, url string) error {
	return c.playNow(ctx, req, join.StrategySummoner, music.ActionTimeout, c.resolveFunc(url))
}

func (c *Controller) PlaySearch(ctx context.Context, req Request, query string) error {
	return c.playNow(ctx, req, join.StrategySummoner, music.ActionTimeout, c.searchFunc(query))
}

// Driveby joins the busiest channel, plays url, drops the rest of the
// queue and leaves once the track is done.
func (c *Controller) Driveby(ctx context.Context, req Request, url string) error {
	return c.playNow(ctx, req, join.StrategyMostCrowded, music.ActionLeave, c.resolveFunc(url))
}

func (c *Controller) DrivebySearch(ctx context.Context, req Request, query string) error {
	return c.playNow(ctx, req, join.StrategyMostCrowded, music.ActionLeave, c.searchFunc(query))
}

// Enqueue appends urls to the queue.
func (c *Controller) Enqueue(ctx context.Context, req Request, urls []string) error {
	return c.add(ctx, req, urls, (*queue.Queue).Enqueue)
}

// Next puts urls right after the current track.
func (c *Controller) Next(ctx context.Context, req Request, urls []string) error {
	return c.add(ctx, req, urls, (*queue.Queue).Next)
}

type resolveFn func(ctx context.Context) (sources.TrackInfo, error)

func (c *Controller) resolveFunc(url string) resolveFn {
	return func(ctx context.Context) (sources.TrackInfo, error) { return c.resolver.Resolve(ctx, url) }
}

func (c *Controller) searchFunc(query string) resolveFn {
	return func(ctx context.Context) (sources.TrackInfo, error) { return c.resolver.Search(ctx, query) }
}

func (c *Controller) playNow(ctx context.Context, req Request, strategy join.Strategy, action music.TrackEndAction, resolve resolveFn) (err error) {
	c.beginLoad()
	defer func() { c.endLoad(err != nil) }()

	epoch, joinedNow, err := c.join(ctx, req, strategy)
	if err != nil {
		return err
	}

	rctx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
	info, err := resolve(rctx)
	cancel()
	if err != nil {
		if joinedNow {
			c.hangupIfIdle(epoch)
		}
		return apperr.Wrap(apperr.KindResolution, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	if s == nil || s.epoch != epoch {
		return ErrSessionGone
	}

	track := c.loadLocked(s, info)
	s.action = action
	if err := s.queue.Play(track); err != nil {
		return err
	}
	if action == music.ActionLeave {
		if err := s.queue.Clear(); err != nil && !errors.Is(err, queue.ErrEmptyQueueCannotClear) {
			return err
		}
	}

	log.Info(log.Fields{"guild": s.GuildID, "track": track.DisplayTitle(), "action": action.String()}, "[Session] Playing now")
	c.recordLocked(s, track)
	return nil
}

func (c *Controller) add(ctx context.Context, req Request, urls []string, insert func(*queue.Queue, ...*music.Track) error) (err error) {
	c.beginLoad()
	defer func() { c.endLoad(err != nil) }()

	epoch, joinedNow, err := c.join(ctx, req, join.StrategySummoner)
	if err != nil {
		return err
	}

	rctx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
	defer cancel()

	infos, err := util.Map(rctx, urls, resolveWorkers, func(ctx context.Context, u string) (sources.TrackInfo, error) {
		info, err := c.resolver.Resolve(ctx, u)
		if err != nil {
			return info, fmt.Errorf("%s: %w", u, err)
		}
		return info, nil
	})
	if err != nil {
		if joinedNow {
			c.hangupIfIdle(epoch)
		}
		return apperr.Wrap(apperr.KindResolution, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	if s == nil || s.epoch != epoch {
		return ErrSessionGone
	}

	tracks := make([]*music.Track, len(infos))
	for i, info := range infos {
		tracks[i] = c.loadLocked(s, info)
	}

	// Only a command that starts playback sets the end-of-track policy; an
	// insert behind a drive-by keeps it leaving.
	if s.queue.Len() == 0 {
		s.action = music.ActionTimeout
	}
	if err := insert(s.queue, tracks...); err != nil {
		return err
	}

	log.Info(log.Fields{"guild": s.GuildID, "added": len(tracks), "len": s.queue.Len()}, "[Session] Queued tracks")
	for _, t := range tracks {
		c.recordLocked(s, t)
	}
	return nil
}

// join puts the bot into the channel picked by strategy. joinedNow is true
// only when a new session was created by this call.
func (c *Controller) join(ctx context.Context, req Request, strategy join.Strategy) (epoch uint64, joinedNow bool, err error) {
	channels, err := c.chat.VoiceChannels(req.GuildID)
	if err != nil {
		return 0, false, apperr.Wrap(apperr.KindJoin, fmt.Errorf("list voice channels: %w", err))
	}
	target, err := join.Pick(strategy, channels, req.UserID, c.chat.SelfID())
	if err != nil {
		return 0, false, err
	}

	c.mu.Lock()
	if s := c.sess; s != nil {
		if s.GuildID != req.GuildID {
			c.mu.Unlock()
			return 0, false, ErrSessionBusy
		}
		if s.ChannelID == target.ID {
			s.bitrate = target.Bitrate
			s.call.SetBitrate(target.Bitrate)
			epoch := s.epoch
			c.mu.Unlock()
			log.Debug(log.Fields{"channel": target.Name}, "[Session] Already in this channel")
			return epoch, false, nil
		}
	}
	c.mu.Unlock()

	call, err := c.dialer.Join(ctx, req.GuildID, target.ID)
	if err != nil {
		return 0, false, apperr.Wrap(apperr.KindJoin, fmt.Errorf("join %s: %w", target.Name, err))
	}
	call.SetBitrate(target.Bitrate)

	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.sess; s != nil {
		if s.GuildID != req.GuildID {
			if err := call.Leave(); err != nil {
				log.Warn(log.Fields{"error": err.Error()}, "[Session] Failed to leave after losing a join race")
			}
			return 0, false, ErrSessionBusy
		}
		s.call = call
		s.ChannelID = target.ID
		s.bitrate = target.Bitrate
		log.Info(log.Fields{"channel": target.Name, "bitrate": target.Bitrate}, "[Session] Moved to channel")
		return s.epoch, false, nil
	}

	c.epoch++
	c.sess = &CallSession{
		GuildID:   req.GuildID,
		ChannelID: target.ID,
		call:      call,
		queue:     queue.New(),
		bitrate:   target.Bitrate,
		action:    music.ActionTimeout,
		epoch:     c.epoch,
	}
	c.sup.MarkActive()
	log.Info(log.Fields{"guild": req.GuildID, "channel": target.Name, "bitrate": target.Bitrate}, "[Session] Joined channel")
	return c.epoch, true, nil
}

func (c *Controller) loadLocked(s *CallSession, info sources.TrackInfo) *music.Track {
	id := c.newID()
	return music.NewTrack(id, info.Metadata(), s.call.Load(id, info))
}

func (c *Controller) recordLocked(s *CallSession, t *music.Track) {
	if c.history == nil {
		return
	}
	if err := c.history.AppendTrack(s.GuildID, t.Metadata); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "[Session] Failed to record track history")
	}
}

// hangupIfIdle leaves a session this command just created when nothing
// else has started using it.
func (c *Controller) hangupIfIdle(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.sess; s != nil && s.epoch == epoch && s.queue.Len() == 0 && c.loading == 1 {
		c.shutdownLocked("resolution failed")
	}
}

func (c *Controller) beginLoad() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading++
	c.sup.Cancel()
}

// endLoad closes a section opened by beginLoad. The last load to finish
// restarts the countdown if one was deferred, or if this load failed and
// left the session with nothing playing.
func (c *Controller) endLoad(failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loading--
	c.rearm = c.rearm || failed
	if c.loading > 0 {
		return
	}
	rearm := c.rearm
	c.rearm = false

	s := c.sess
	if s == nil || !rearm || !idle(s) {
		return
	}
	c.armLocked(s)
}

func idle(s *CallSession) bool {
	cur := s.queue.Current()
	return cur == nil || cur.Handle.State() != music.StatePlaying
}

func (c *Controller) armLocked(s *CallSession) {
	if c.loading > 0 {
		c.rearm = true
		return
	}
	epoch := s.epoch
	c.sup.Arm(func(gen uint64) { c.countdownExpired(epoch, gen) })
}

func (c *Controller) withSession(fn func(s *CallSession) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ErrNoActiveSession
	}
	return fn(c.sess)
}

func (c *Controller) Pause() error {
	return c.withSession(func(s *CallSession) error { return s.queue.Pause() })
}

func (c *Controller) Resume() error {
	return c.withSession(func(s *CallSession) error { return s.queue.Resume() })
}

func (c *Controller) Skip() error {
	return c.withSession(func(s *CallSession) error { return s.queue.Skip() })
}

// Stop empties the queue but stays in the channel.
func (c *Controller) Stop() error {
	return c.withSession(func(s *CallSession) error { return s.queue.Stop() })
}

func (c *Controller) Clear() error {
	return c.withSession(func(s *CallSession) error { return s.queue.Clear() })
}

// Goto jumps to the 1-based queue position idx.
func (c *Controller) Goto(idx int) error {
	return c.withSession(func(s *CallSession) error { return s.queue.Goto(idx) })
}

// Remove drops the 1-based queue positions in idx.
func (c *Controller) Remove(idx ...int) error {
	return c.withSession(func(s *CallSession) error { return s.queue.Remove(idx) })
}

// List renders the queue as a code block.
func (c *Controller) List() (string, error) {
	var out string
	err := c.withSession(func(s *CallSession) error {
		var err error
		out, err = renderQueue(s.queue.Tracks())
		return err
	})
	return out, err
}

// Leave stops everything and leaves the channel.
func (c *Controller) Leave() error {
	return c.withSession(func(*CallSession) error {
		c.shutdownLocked("leave command")
		return nil
	})
}

// Shutdown tears down any session. Used on process exit.
func (c *Controller) Shutdown(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdownLocked(reason)
}

func (c *Controller) shutdownLocked(reason string) {
	s := c.sess
	if s == nil {
		return
	}

	c.sup.Cancel()
	s.queue.Drain()
	if err := s.call.Leave(); err != nil {
		log.Warn(log.Fields{"guild": s.GuildID, "error": err.Error()}, "[Session] Error leaving call")
	}
	c.sess = nil
	c.rearm = false
	c.sup.MarkLeft()

	log.Info(log.Fields{"guild": s.GuildID, "channel": s.ChannelID, "reason": reason}, "[Session] Left voice channel")
}

// TrackEnded advances the queue and applies the end-of-track policy.
func (c *Controller) TrackEnded(ev voice.TrackEnded) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	if s == nil || s.GuildID != ev.GuildID {
		return
	}

	wasCurrent := s.queue.Advance(ev.TrackID)
	switch supervisor.OnTrackEnd(s.action, wasCurrent, s.queue.Len() == 0) {
	case supervisor.DecisionCountdown:
		c.armLocked(s)
	case supervisor.DecisionShutdown:
		c.shutdownLocked("drive-by finished")
	}
}

func (c *Controller) countdownExpired(epoch, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sup.Claim(gen) {
		return
	}
	s := c.sess
	if s == nil || s.epoch != epoch {
		return
	}
	if c.loading > 0 {
		c.rearm = true
		return
	}

	state := music.StateIdle
	if cur := s.queue.Current(); cur != nil {
		state = cur.Handle.State()
	}
	if supervisor.OnExpiry(s.queue.Len() == 0, state) == supervisor.DecisionShutdown {
		c.shutdownLocked("idle timeout")
	}
}

// ClientDisconnected leaves when nobody but the bot is left in its channel.
func (c *Controller) ClientDisconnected(ev voice.ClientDisconnected) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	self := c.chat.SelfID()
	if s == nil || s.GuildID != ev.GuildID || ev.UserID == self {
		return
	}
	if ev.ChannelID != "" && ev.ChannelID != s.ChannelID {
		return
	}

	members, err := c.chat.Members(s.GuildID, s.ChannelID)
	if err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "[Session] Could not recount channel members")
		return
	}
	if supervisor.OnRecount(members, self) == supervisor.DecisionShutdown {
		c.shutdownLocked("channel empty")
	}
}

// Help is the command reference.
func (c *Controller) Help() string {
	return helpText
}

const helpText = "```\n" +
	"help - show this\n" +
	"play <url> - plays the given url, inserts into the front of the queue\n" +
	"play search <words> - plays the first search result, inserts into the front of the queue\n" +
	"driveby <url> - drive-by the busiest channel with the given url\n" +
	"driveby search <words> - drive-by with the first search result\n" +
	"queue <url> ... - queue up the given url(s), starts playing if queue was empty\n" +
	"next <url> ... - queue up the given url(s) to play next\n" +
	"goto X (>0) - jump to and play the queue index given\n" +
	"rm X Y ... (>0) - remove queue elements, indices separated by spaces\n" +
	"list - lists the current queue\n" +
	"pause - pause currently playing track\n" +
	"resume - resume a currently paused track\n" +
	"skip - skip the current track\n" +
	"clear - clears everything in the queue but the song playing\n" +
	"stop - stop the player, but don't leave\n" +
	"leave - tells the player to get out\n" +
	"```"

func renderQueue(tracks []*music.Track) (string, error) {
	if len(tracks) == 0 {
		return "", queue.ErrEmptyQueue
	}

	var b strings.Builder
	b.WriteString("```\n")
	for i, t := range tracks {
		if i == 0 {
			b.WriteString(">>> ")
		} else {
			fmt.Fprintf(&b, "%d - ", i)
		}
		b.WriteString(t.DisplayTitle())
		if t.Artist != "" {
			b.WriteString(", " + t.Artist)
		}
		if t.Duration > 0 {
			b.WriteString(", " + t.Duration.Truncate(time.Second).String())
		}
		b.WriteString("\n")
	}
	b.WriteString("```")
	return b.String(), nil
}
