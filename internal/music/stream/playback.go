package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"layeh.com/gopus"

	"github.com/keshon/driveby/internal/apperr"
	"github.com/keshon/driveby/internal/music"
	"github.com/keshon/driveby/internal/music/parsers"
	"github.com/keshon/driveby/pkg/log"
)

var ErrTrackEnded = apperr.New(apperr.KindTransport, "track has already ended")

// Opener opens the PCM stream for one track.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Encoder turns one PCM frame into an Opus packet.
type Encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

type EncoderFactory func(bitrate int) (Encoder, error)

// NewOpusEncoder is the gopus backed EncoderFactory. A bitrate of zero
// keeps the encoder default.
func NewOpusEncoder(bitrate int) (Encoder, error) {
	enc, err := gopus.NewEncoder(parsers.SampleRate, parsers.Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}
	if bitrate > 0 {
		enc.SetBitrate(bitrate)
	}
	return enc, nil
}

// Sink receives Opus packets, e.g. a discordgo voice connection.
type Sink interface {
	Frames() chan<- []byte
	Speaking(on bool) error
}

type Config struct {
	Name    string
	Open    Opener
	Sink    Sink
	Encoder EncoderFactory
	Bitrate int
	// OnEnd runs once, after a started track stops sending for any reason.
	OnEnd func()
}

// Playback is the Handle of one track. The stream is opened on the first
// Play; pausing holds the sender without closing the stream.
type Playback struct {
	mu     sync.Mutex
	resume *sync.Cond
	state  music.PlayState
	cfg    Config
	stop   chan struct{}
	cancel context.CancelFunc
}

func NewPlayback(cfg Config) *Playback {
	if cfg.Encoder == nil {
		cfg.Encoder = NewOpusEncoder
	}
	p := &Playback{cfg: cfg, stop: make(chan struct{})}
	p.resume = sync.NewCond(&p.mu)
	return p
}

func (p *Playback) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case music.StateEnded:
		return ErrTrackEnded
	case music.StatePlaying:
		return nil
	case music.StatePaused:
		p.state = music.StatePlaying
		p.resume.Broadcast()
		return nil
	}

	p.state = music.StatePlaying
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)
	return nil
}

func (p *Playback) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == music.StatePlaying {
		p.state = music.StatePaused
	}
	return nil
}

// Stop is idempotent. A track that never started ends silently.
func (p *Playback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == music.StateEnded {
		return nil
	}
	p.state = music.StateEnded
	close(p.stop)
	p.resume.Broadcast()
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func (p *Playback) State() music.PlayState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Playback) run(ctx context.Context) {
	defer p.finish()

	fields := log.Fields{"track": p.cfg.Name}

	rc, err := p.cfg.Open(ctx)
	if err != nil {
		fields["error"] = err.Error()
		log.Error(fields, "[Playback] Failed to open stream")
		return
	}
	defer rc.Close()

	enc, err := p.cfg.Encoder(p.cfg.Bitrate)
	if err != nil {
		fields["error"] = err.Error()
		log.Error(fields, "[Playback] Failed to create encoder")
		return
	}

	if err := p.cfg.Sink.Speaking(true); err != nil {
		log.Debug(log.Fields{"error": err.Error()}, "[Playback] Speaking(true) failed")
	}
	defer func() { _ = p.cfg.Sink.Speaking(false) }()

	log.Info(fields, "[Playback] Started")

	pcm := make([]byte, parsers.FrameSize*parsers.Channels*2)
	samples := make([]int16, parsers.FrameSize*parsers.Channels)
	frames := p.cfg.Sink.Frames()

	for p.waitPlaying() {
		if _, err := io.ReadFull(rc, pcm); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				log.Info(fields, "[Playback] Finished")
			} else if ctx.Err() == nil {
				fields["error"] = err.Error()
				log.Warn(fields, "[Playback] Read error")
			}
			return
		}

		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		}

		packet, err := enc.Encode(samples, parsers.FrameSize, len(pcm))
		if err != nil {
			fields["error"] = err.Error()
			log.Error(fields, "[Playback] Encode error")
			return
		}

		select {
		case frames <- packet:
		case <-p.stop:
			return
		}
	}
}

// waitPlaying blocks while paused and reports whether to keep sending.
func (p *Playback) waitPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.state == music.StatePaused {
		p.resume.Wait()
	}
	return p.state == music.StatePlaying
}

func (p *Playback) finish() {
	p.mu.Lock()
	if p.state != music.StateEnded {
		p.state = music.StateEnded
		close(p.stop)
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	if p.cfg.OnEnd != nil {
		p.cfg.OnEnd()
	}
}
