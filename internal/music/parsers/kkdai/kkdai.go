// Package kkdai fetches YouTube audio stream URLs with the kkdai client and
// decodes them with ffmpeg.
package kkdai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kkdai/youtube/v2"

	"github.com/keshon/driveby/internal/music/parsers/ffmpeg"
)

type Streamer struct {
	Client *youtube.Client
}

func New(client *youtube.Client) *Streamer {
	return &Streamer{Client: client}
}

func (s *Streamer) Open(ctx context.Context, url string) (io.ReadCloser, func(), error) {
	video, err := s.Client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("[kkdai] youtube client error: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, nil, errors.New("[kkdai] no audio formats found for video")
	}

	link, err := s.Client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return nil, nil, fmt.Errorf("[kkdai] get stream URL error: %w", err)
	}
	return ffmpeg.Transcode(ctx, link, nil)
}
