// Package youtube resolves YouTube links and title searches.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	youtube "github.com/kkdai/youtube/v2"

	"github.com/keshon/driveby/internal/apperr"
	"github.com/keshon/driveby/internal/music/parsers"
	"github.com/keshon/driveby/internal/music/sources"
	"github.com/keshon/driveby/pkg/log"
)

type YouTubeSource struct {
	client   *youtube.Client
	searcher *SearchResolver
}

func New(httpClient *http.Client) *YouTubeSource {
	return &YouTubeSource{
		client:   NewClient(httpClient),
		searcher: NewSearchResolver(httpClient),
	}
}

func (y *YouTubeSource) Match(input string) bool {
	return isYouTubeURL(input)
}

// Resolve looks up title, channel and duration for a video link. If the
// metadata lookup fails the track is still returned so that the yt-dlp
// parser gets a chance to play it.
func (y *YouTubeSource) Resolve(ctx context.Context, input string) (sources.TrackInfo, error) {
	input = strings.TrimSpace(input)
	if !isYouTubeVideoURL(input) {
		return sources.TrackInfo{}, apperr.New(apperr.KindResolution, "invalid YouTube URL format")
	}

	info := sources.TrackInfo{
		URL:        CleanVideoURL(input),
		SourceName: sources.SourceYouTube,
		Parsers:    y.AvailableParsers(),
	}

	id, err := ExtractVideoID(info.URL)
	if err != nil {
		return sources.TrackInfo{}, apperr.Wrap(apperr.KindResolution, err)
	}

	video, err := y.client.GetVideoContext(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return sources.TrackInfo{}, apperr.Wrap(apperr.KindResolution, ctx.Err())
		}
		log.Warn(log.Fields{"video": id, "error": err.Error()}, "[YouTube] Metadata lookup failed, relying on yt-dlp")
		info.Parsers = sources.MoveToFront(info.Parsers, parsers.YtdlpLink)
		return info, nil
	}

	info.Title = video.Title
	info.Artist = video.Author
	info.Duration = video.Duration
	return info, nil
}

// Search resolves free text to the first matching video.
func (y *YouTubeSource) Search(ctx context.Context, query string) (string, error) {
	u, err := y.searcher.Search(ctx, query)
	if err != nil {
		return "", apperr.Wrap(apperr.KindResolution, fmt.Errorf("could not find YouTube video for %q: %w", query, err))
	}
	log.Debug(log.Fields{"query": query, "url": u}, "[YouTube] Search hit")
	return u, nil
}

func (y *YouTubeSource) SourceName() string {
	return sources.SourceYouTube
}

func (y *YouTubeSource) AvailableParsers() []string {
	return []string{parsers.KkdaiLink, parsers.YtdlpLink}
}

// Client exposes the kkdai client for the stream layer.
func (y *YouTubeSource) Client() *youtube.Client {
	return y.client
}
