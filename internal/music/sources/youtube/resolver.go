package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/keshon/driveby/pkg/retrylimit"
)

var (
	videoPattern    = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)
	ErrNoVideoMatch = errors.New("no video found for the given title")
)

// statusError carries the HTTP status so retrylimit can classify it.
type statusError struct {
	code int
}

func (e *statusError) Error() string   { return fmt.Sprintf("YouTube search failed with status code %d", e.code) }
func (e *statusError) StatusCode() int { return e.code }

// SearchResolver scrapes the YouTube results page for the first video.
type SearchResolver struct {
	BaseURL string
	Client  *http.Client
	Limiter *retrylimit.AdaptiveLimiter
	Retries int
}

func NewSearchResolver(client *http.Client) *SearchResolver {
	return &SearchResolver{
		BaseURL: "https://www.youtube.com",
		Client:  client,
		Limiter: retrylimit.NewAdaptiveLimiter(2, 1, 5, 1, 0.5),
		Retries: 3,
	}
}

// Search returns the watch URL of the first result for query.
func (r *SearchResolver) Search(ctx context.Context, query string) (string, error) {
	var videoURL string
	err := retrylimit.WithRetryMax(ctx, func() error {
		u, err := r.searchOnce(ctx, query)
		if errors.Is(err, ErrNoVideoMatch) {
			return &retrylimit.FatalError{Err: err}
		}
		videoURL = u
		return err
	}, r.Limiter, r.Retries)
	if err != nil {
		var fatal *retrylimit.FatalError
		if errors.As(err, &fatal) {
			return "", fatal.Err
		}
		return "", err
	}
	return videoURL, nil
}

func (r *SearchResolver) searchOnce(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", r.BaseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	m := videoPattern.FindStringSubmatch(string(body))
	if len(m) < 2 {
		return "", ErrNoVideoMatch
	}
	return fmt.Sprintf("%s/watch?v=%s", r.BaseURL, m[1]), nil
}
