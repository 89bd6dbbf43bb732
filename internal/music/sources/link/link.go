// Package link plays direct media links (files, radio streams) through ffmpeg.
package link

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/keshon/driveby/internal/apperr"
	"github.com/keshon/driveby/internal/music/parsers"
	"github.com/keshon/driveby/internal/music/sources"
	"github.com/keshon/driveby/pkg/log"
)

type LinkSource struct {
	prober *Prober
}

func New() *LinkSource {
	return &LinkSource{prober: NewProber()}
}

func (l *LinkSource) Match(input string) bool {
	return sources.IsURL(input)
}

func (l *LinkSource) Resolve(ctx context.Context, input string) (sources.TrackInfo, error) {
	input = strings.TrimSpace(input)
	if !l.Match(input) {
		return sources.TrackInfo{}, apperr.New(apperr.KindResolution, "not a link: "+input)
	}

	contentType, finalURL, err := l.prober.Probe(ctx, input)
	if err != nil {
		return sources.TrackInfo{}, apperr.Wrap(apperr.KindResolution, err)
	}
	log.Debug(log.Fields{"url": finalURL, "content_type": contentType}, "[Link] Probed direct link")

	return sources.TrackInfo{
		URL:        input,
		Title:      titleFromURL(finalURL),
		SourceName: sources.SourceLink,
		Parsers:    l.AvailableParsers(),
	}, nil
}

func (l *LinkSource) SourceName() string {
	return sources.SourceLink
}

func (l *LinkSource) AvailableParsers() []string {
	return []string{parsers.FFmpegLink}
}

// titleFromURL uses the last path element, e.g. "song.mp3".
func titleFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		return unescaped
	}
	return base
}
