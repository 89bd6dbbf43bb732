// Package ffmpeg decodes anything ffmpeg understands into PCM.
package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/keshon/driveby/internal/music/parsers"
)

// Binary is the ffmpeg executable to run.
var Binary = "ffmpeg"

// Transcode starts ffmpeg reading from input. With input "pipe:0" the
// stdin reader is fed to the process.
func Transcode(ctx context.Context, input string, stdin io.Reader) (io.ReadCloser, func(), error) {
	args := []string{}
	if input != "pipe:0" {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	args = append(args,
		"-i", input,
		"-f", "s16le",
		"-ar", strconv.Itoa(parsers.SampleRate),
		"-ac", strconv.Itoa(parsers.Channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, Binary, args...)
	cmd.Stdin = stdin

	reader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	cleanup := func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	return reader, cleanup, nil
}

// Streamer plays direct links.
type Streamer struct{}

func (Streamer) Open(ctx context.Context, url string) (io.ReadCloser, func(), error) {
	return Transcode(ctx, url, nil)
}
