// Package ytdlp asks yt-dlp for the best audio URL and decodes it with ffmpeg.
package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/keshon/driveby/internal/music/parsers/ffmpeg"
)

// Binary is the yt-dlp executable to run.
var Binary = "yt-dlp"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type format struct {
	URL string `json:"url"`
}

type info struct {
	URL     string   `json:"url"`
	Formats []format `json:"formats"`
}

// parseInfo picks the direct URL from `yt-dlp -j` output.
func parseInfo(raw []byte) (string, error) {
	var i info
	if err := json.Unmarshal(raw, &i); err != nil {
		return "", fmt.Errorf("json unmarshal error: %w", err)
	}

	link := strings.TrimSpace(i.URL)
	if link == "" && len(i.Formats) > 0 {
		link = strings.TrimSpace(i.Formats[len(i.Formats)-1].URL)
	}
	if link == "" {
		return "", errors.New("empty URL returned from yt-dlp")
	}
	return link, nil
}

type Streamer struct{}

func (Streamer) Open(ctx context.Context, url string) (io.ReadCloser, func(), error) {
	out, err := exec.CommandContext(ctx, Binary, "-j", "-f", "bestaudio", url).Output()
	if err != nil {
		return nil, nil, fmt.Errorf("yt-dlp error: %w", err)
	}

	link, err := parseInfo(out)
	if err != nil {
		return nil, nil, err
	}
	return ffmpeg.Transcode(ctx, link, nil)
}
