// Package stream opens resolved tracks as PCM and plays them into a voice
// connection as Opus frames.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/keshon/driveby/internal/music/parsers"
	"github.com/keshon/driveby/internal/music/sources"
	"github.com/keshon/driveby/pkg/log"
)

// Registry maps parser names to streamers.
type Registry map[string]parsers.Streamer

// TrackStream is an open PCM stream and the parser that produced it.
type TrackStream struct {
	io.ReadCloser
	Parser  string
	cleanup func()
}

// Close closes the reader and releases helper processes.
func (s *TrackStream) Close() error {
	err := s.ReadCloser.Close()
	if s.cleanup != nil {
		s.cleanup()
	}
	return err
}

// Open tries every parser listed for the track, in order, and returns the
// first stream that opens.
func (r Registry) Open(ctx context.Context, info sources.TrackInfo) (*TrackStream, error) {
	if len(info.Parsers) == 0 {
		return nil, fmt.Errorf("no parsers available for %s", info.URL)
	}

	var errs []error
	for _, name := range info.Parsers {
		streamer, ok := r[name]
		if !ok {
			errs = append(errs, fmt.Errorf("streamer not found for parser %s", name))
			continue
		}

		rc, cleanup, err := streamer.Open(ctx, info.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("parser %s failed: %w", name, err))
			log.Warn(log.Fields{"parser": name, "url": info.URL, "error": err.Error()}, "[Stream] Parser failed, trying next")
			continue
		}

		log.Debug(log.Fields{"parser": name, "url": info.URL}, "[Stream] Stream opened")
		return &TrackStream{ReadCloser: rc, Parser: name, cleanup: cleanup}, nil
	}

	return nil, fmt.Errorf("all parsers failed for %s: %w", info.URL, errors.Join(errs...))
}
