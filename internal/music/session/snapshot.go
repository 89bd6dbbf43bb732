package session

import "time"

type TrackView struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist,omitempty"`
	Source   string `json:"source"`
	Duration string `json:"duration,omitempty"`
	State    string `json:"state"`
}

// Snapshot is a read-only view of the session for the status endpoint.
type Snapshot struct {
	Active     bool        `json:"active"`
	GuildID    string      `json:"guild_id,omitempty"`
	ChannelID  string      `json:"channel_id,omitempty"`
	Bitrate    int         `json:"bitrate,omitempty"`
	Action     string      `json:"action,omitempty"`
	Supervisor string      `json:"supervisor"`
	Tracks     []TrackView `json:"tracks"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{Supervisor: c.sup.State().String(), Tracks: []TrackView{}}
	s := c.sess
	if s == nil {
		return snap
	}

	snap.Active = true
	snap.GuildID = s.GuildID
	snap.ChannelID = s.ChannelID
	snap.Bitrate = s.bitrate
	snap.Action = s.action.String()
	for i, t := range s.queue.Tracks() {
		v := TrackView{
			Position: i,
			ID:       t.ID.String(),
			Title:    t.DisplayTitle(),
			Artist:   t.Artist,
			Source:   t.Source,
			State:    t.Handle.State().String(),
		}
		if t.Duration > 0 {
			v.Duration = t.Duration.Truncate(time.Second).String()
		}
		snap.Tracks = append(snap.Tracks, v)
	}
	return snap
}
