// Package storage keeps per-guild command and track history in the
// datastore.
package storage

import (
	"time"

	"github.com/keshon/driveby/internal/datastore"
	"github.com/keshon/driveby/internal/music"
)

const (
	commandHistoryLimit int = 20
	tracksHistoryLimit  int = 12
)

type Storage struct {
	ds  *datastore.DataStore
	now func() time.Time
}

type CommandHistoryRecord struct {
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Command   string    `json:"command"`
	Param     string    `json:"param"`
	Failed    bool      `json:"failed,omitempty"`
	Datetime  time.Time `json:"datetime"`
}

type TrackHistoryRecord struct {
	Title    string        `json:"title"`
	Artist   string        `json:"artist,omitempty"`
	Source   string        `json:"source"`
	Duration time.Duration `json:"duration,omitempty"`
	PlayedAt time.Time     `json:"played_at"`
}

// Record is everything stored for one guild.
type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
	TracksHistoryList   []TrackHistoryRecord   `json:"tracks_history"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return NewWithStore(ds), nil
}

func NewWithStore(ds *datastore.DataStore) *Storage {
	return &Storage{ds: ds, now: time.Now}
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// AppendCommandToHistory appends a command history record for a guild,
// keeping only the most recent entries.
func (s *Storage) AppendCommandToHistory(guildID string, rec CommandHistoryRecord) error {
	if rec.Datetime.IsZero() {
		rec.Datetime = s.now()
	}
	return datastore.Update(s.ds, guildID, func(r *Record) error {
		r.CommandsHistoryList = keepLast(append(r.CommandsHistoryList, rec), commandHistoryLimit)
		return nil
	})
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	r, err := s.record(guildID)
	if err != nil {
		return nil, err
	}
	return r.CommandsHistoryList, nil
}

// AppendTrack records a track that was handed to the player.
func (s *Storage) AppendTrack(guildID string, meta music.Metadata) error {
	rec := TrackHistoryRecord{
		Title:    meta.Title,
		Artist:   meta.Artist,
		Source:   meta.Source,
		Duration: meta.Duration,
		PlayedAt: s.now(),
	}
	return datastore.Update(s.ds, guildID, func(r *Record) error {
		r.TracksHistoryList = keepLast(append(r.TracksHistoryList, rec), tracksHistoryLimit)
		return nil
	})
}

func (s *Storage) FetchTrackHistory(guildID string) ([]TrackHistoryRecord, error) {
	r, err := s.record(guildID)
	if err != nil {
		return nil, err
	}
	return r.TracksHistoryList, nil
}

func (s *Storage) record(guildID string) (Record, error) {
	var r Record
	if _, err := s.ds.Get(guildID, &r); err != nil {
		return Record{}, err
	}
	if r.CommandsHistoryList == nil {
		r.CommandsHistoryList = []CommandHistoryRecord{}
	}
	if r.TracksHistoryList == nil {
		r.TracksHistoryList = []TrackHistoryRecord{}
	}
	return r, nil
}

func keepLast[T any](list []T, n int) []T {
	if len(list) > n {
		return list[len(list)-n:]
	}
	return list
}
