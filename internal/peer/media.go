package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"

	"github.com/BioHazard786/duobooth/internal/session"
)

const (
	streamID = "duobooth"

	// oggPageDuration paces Opus pages; pages written by common encoders
	// hold 20ms of audio.
	oggPageDuration = 20 * time.Millisecond
	opusSampleRate  = 48000
)

// LocalMedia is the camera and microphone a transport publishes. The CLI
// has no capture device, so tracks are fed from an IVF (VP8) and an Ogg
// (Opus) file when given and stay silent otherwise.
type LocalMedia struct {
	Video *webrtc.TrackLocalStaticSample
	Audio *webrtc.TrackLocalStaticSample

	videoFile string
	audioFile string
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

// NewLocalMedia creates the local tracks. Files are checked up front so a
// bad path fails media acquisition rather than the call.
func NewLocalMedia(videoFile, audioFile string, log *slog.Logger) (*LocalMedia, error) {
	if log == nil {
		log = slog.Default()
	}

	if videoFile != "" {
		if err := probeIVF(videoFile); err != nil {
			return nil, err
		}
	}
	if audioFile != "" {
		if err := probeOgg(audioFile); err != nil {
			return nil, err
		}
	}

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to create video track: %w", err)
	}
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio track: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LocalMedia{
		Video:     video,
		Audio:     audio,
		videoFile: videoFile,
		audioFile: audioFile,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Acquire returns a session.MediaFunc producing LocalMedia.
func Acquire(videoFile, audioFile string, log *slog.Logger) session.MediaFunc {
	return func(ctx context.Context) (session.Media, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewLocalMedia(videoFile, audioFile, log)
	}
}

func (m *LocalMedia) tracks() []*webrtc.TrackLocalStaticSample {
	return []*webrtc.TrackLocalStaticSample{m.Video, m.Audio}
}

// Play starts feeding the media files into the tracks. Only the first call
// has an effect.
func (m *LocalMedia) Play() {
	m.once.Do(func() {
		if m.videoFile != "" {
			m.feed("video", m.playVideo)
		}
		if m.audioFile != "" {
			m.feed("audio", m.playAudio)
		}
	})
}

func (m *LocalMedia) feed(kind string, play func(context.Context) error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := play(m.ctx); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			m.log.Warn("media playback stopped", "kind", kind, "error", err)
		}
	}()
}

// Close stops playback and waits for the feeders to exit.
func (m *LocalMedia) Close() error {
	m.cancel()
	m.wg.Wait()
	return nil
}

func (m *LocalMedia) playVideo(ctx context.Context) error {
	f, err := os.Open(m.videoFile)
	if err != nil {
		return err
	}
	defer f.Close()

	ivf, header, err := ivfreader.NewWith(f)
	if err != nil {
		return err
	}
	frameDuration := ivfFrameDuration(header)

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, _, err := ivf.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := m.Video.WriteSample(media.Sample{Data: frame, Duration: frameDuration}); err != nil {
			return err
		}
	}
}

func (m *LocalMedia) playAudio(ctx context.Context) error {
	f, err := os.Open(m.audioFile)
	if err != nil {
		return err
	}
	defer f.Close()

	ogg, _, err := oggreader.NewWith(f)
	if err != nil {
		return err
	}

	var lastGranule uint64
	ticker := time.NewTicker(oggPageDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		page, header, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(samples) * time.Second / opusSampleRate
		if err := m.Audio.WriteSample(media.Sample{Data: page, Duration: duration}); err != nil {
			return err
		}
	}
}

func ivfFrameDuration(h *ivfreader.IVFFileHeader) time.Duration {
	if h.TimebaseDenominator == 0 || h.TimebaseNumerator == 0 {
		return 33 * time.Millisecond
	}
	return time.Duration(h.TimebaseNumerator) * time.Second / time.Duration(h.TimebaseDenominator)
}

func probeIVF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open video file: %w", err)
	}
	defer f.Close()

	_, header, err := ivfreader.NewWith(f)
	if err != nil {
		return fmt.Errorf("invalid IVF file %s: %w", path, err)
	}
	if header.FourCC != "VP80" {
		return fmt.Errorf("unsupported video codec %q in %s: only VP8 is supported", header.FourCC, path)
	}
	return nil
}

func probeOgg(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	if _, _, err := oggreader.NewWith(f); err != nil {
		return fmt.Errorf("invalid Ogg file %s: %w", path, err)
	}
	return nil
}
