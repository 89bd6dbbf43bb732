package youtube

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var youtubeURLPattern = regexp.MustCompile(`^(?:https?://)?(?:www\.|music\.|m\.)?(youtube\.com|youtu\.be)/\S+`)

func isYouTubeURL(input string) bool {
	return youtubeURLPattern.MatchString(input)
}

func isYouTubeVideoURL(s string) bool {
	return strings.Contains(s, "youtube.com/watch?v=") ||
		strings.Contains(s, "youtu.be/") ||
		strings.Contains(s, "youtube.com/shorts/")
}

// CleanVideoURL drops everything but the video id from a YouTube link.
func CleanVideoURL(raw string) string {
	id, err := ExtractVideoID(raw)
	if err != nil {
		return raw
	}
	u, _ := url.Parse(raw)
	if u.Hostname() == "youtu.be" {
		return "https://youtu.be/" + id
	}
	return fmt.Sprintf("https://%s/watch?v=%s", u.Hostname(), id)
}

// ExtractVideoID handles watch, short and shorts links.
func ExtractVideoID(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	var id string
	switch host := u.Hostname(); {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case strings.HasSuffix(host, "youtube.com"):
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.TrimPrefix(u.Path, "/shorts/")
		}
	default:
		return "", errors.New("unsupported URL format")
	}

	if id == "" {
		return "", errors.New("invalid YouTube URL format")
	}
	return id, nil
}
