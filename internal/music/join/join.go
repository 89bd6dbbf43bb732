// Package join picks the voice channel a command should play into.
package join

import (
	"github.com/keshon/driveby/internal/apperr"
)

var (
	ErrSummonerNotFound  = apperr.New(apperr.KindJoin, "you are not in a voice channel")
	ErrNoOccupiedChannel = apperr.New(apperr.KindJoin, "no voice channel has anyone in it")
)

// VoiceChannel is a guild voice channel with the users currently in it.
type VoiceChannel struct {
	ID      string
	Name    string
	Bitrate int
	Members []string
}

// Has reports whether userID is in the channel.
func (c VoiceChannel) Has(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

type Strategy int

const (
	StrategySummoner Strategy = iota
	StrategyMostCrowded
)

func (s Strategy) String() string {
	if s == StrategyMostCrowded {
		return "most-crowded"
	}
	return "summoner"
}

// Summoner returns the channel userID is sitting in.
func Summoner(channels []VoiceChannel, userID string) (VoiceChannel, error) {
	for _, c := range channels {
		if c.Has(userID) {
			return c, nil
		}
	}
	return VoiceChannel{}, ErrSummonerNotFound
}

// MostCrowded returns the channel with the most members, not counting
// selfID. Ties go to the channel listed first.
func MostCrowded(channels []VoiceChannel, selfID string) (VoiceChannel, error) {
	best, bestCount := -1, 0
	for i, c := range channels {
		n := len(c.Members)
		if c.Has(selfID) {
			n--
		}
		if n > bestCount {
			best, bestCount = i, n
		}
	}
	if best < 0 {
		return VoiceChannel{}, ErrNoOccupiedChannel
	}
	return channels[best], nil
}

func Pick(s Strategy, channels []VoiceChannel, userID, selfID string) (VoiceChannel, error) {
	if s == StrategyMostCrowded {
		return MostCrowded(channels, selfID)
	}
	return Summoner(channels, userID)
}
