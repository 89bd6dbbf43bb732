// Package parsers opens a resolved link as raw PCM: signed 16-bit little
// endian, 48kHz, stereo. Each parser is a different way of getting there.
package parsers

import (
	"context"
	"io"
)

const (
	Channels   = 2
	SampleRate = 48000
	FrameSize  = 960 // 20ms at 48kHz
)

// Parser names as listed in sources.TrackInfo.Parsers.
const (
	KkdaiLink  = "kkdai-link"
	YtdlpLink  = "ytdlp-link"
	FFmpegLink = "ffmpeg-link"
)

// Streamer opens url as PCM. The returned cleanup kills any helper process
// and must be called once the stream is no longer read.
type Streamer interface {
	Open(ctx context.Context, url string) (io.ReadCloser, func(), error)
}
