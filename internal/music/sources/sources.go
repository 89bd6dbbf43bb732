// Package sources turns user input (links or search text) into resolved
// track descriptions that the stream layer knows how to open.
package sources

import (
	"context"
	"strings"
	"time"

	"github.com/keshon/driveby/internal/music"
)

const (
	SourceYouTube = "youtube"
	SourceLink    = "link"
)

// TrackInfo is a resolved track. Parsers lists the stream openers to try,
// in order.
type TrackInfo struct {
	URL        string
	Title      string
	Artist     string
	Duration   time.Duration
	SourceName string
	Parsers    []string
}

func (t TrackInfo) Metadata() music.Metadata {
	return music.Metadata{
		Title:    t.Title,
		Artist:   t.Artist,
		Duration: t.Duration,
		Source:   t.URL,
	}
}

type Source interface {
	// Match checks if this source can handle the given link.
	Match(input string) bool
	Resolve(ctx context.Context, input string) (TrackInfo, error)
	SourceName() string
	// AvailableParsers returns the stream openers for this source, preferred first.
	AvailableParsers() []string
}

// Searcher finds a playable link for free text.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// MoveToFront returns a new slice where item is the first element.
func MoveToFront(list []string, item string) []string {
	if len(list) == 0 || item == "" || list[0] == item {
		return list
	}

	ordered := make([]string, 0, len(list))
	ordered = append(ordered, item)
	for _, v := range list {
		if v != item {
			ordered = append(ordered, v)
		}
	}
	return ordered
}
