// Package local captures from the default microphone and plays to the
// default speaker through miniaudio.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"captionkit/core"
	"captionkit/utils/audio"

	"github.com/gen2brain/malgo"
)

type Config struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

func DefaultConfig() Config {
	return Config{SampleRate: 16000, Channels: 1}
}

// Microphone streams 16-bit PCM from the default capture device.
type Microphone struct {
	config Config
	logger *core.Logger

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	out    chan core.AudioChunk
	stamp  *stamper
}

func NewMicrophone(config Config, logger *core.Logger) *Microphone {
	if config.SampleRate == 0 {
		config.SampleRate = 16000
	}
	if config.Channels == 0 {
		config.Channels = 1
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Microphone{config: config, logger: logger.With(map[string]any{"device": "microphone"})}
}

// Open starts capture. Any failure is a core.DeviceError.
func (m *Microphone) Open(ctx context.Context) (<-chan core.AudioChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		return nil, core.NewDeviceError("microphone", fmt.Errorf("already open"))
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, core.NewDeviceError("microphone", fmt.Errorf("initializing audio context: %w", err))
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = uint32(m.config.Channels)
	deviceCfg.SampleRate = uint32(m.config.SampleRate)

	m.out = make(chan core.AudioChunk, 256)
	m.stamp = newStamper(m.config.SampleRate, m.config.Channels)
	device, err := malgo.InitDevice(mctx.Context, deviceCfg, malgo.DeviceCallbacks{Data: m.onData})
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return nil, core.NewDeviceError("microphone", fmt.Errorf("initializing capture device: %w", err))
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		mctx.Free()
		return nil, core.NewDeviceError("microphone", fmt.Errorf("starting capture device: %w", err))
	}
	m.ctx, m.device = mctx, device
	m.logger.Info("capture started", "sampleRate", m.config.SampleRate, "channels", m.config.Channels)
	return m.out, nil
}

// onData runs on the audio thread; it never blocks.
func (m *Microphone) onData(_, pSample []byte, frameCount uint32) {
	m.mu.Lock()
	out, stamp := m.out, m.stamp
	m.mu.Unlock()
	if out == nil {
		return
	}
	chunk := stamp.next(append([]byte(nil), pSample...), time.Now())
	select {
	case out <- chunk:
	default:
		m.logger.Warn("capture buffer full, dropping frames", "frames", frameCount)
	}
}

func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.out != nil {
		close(m.out)
		m.out = nil
	}
	if m.ctx != nil {
		err := m.ctx.Uninit()
		m.ctx.Free()
		m.ctx = nil
		if err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
	}
	return nil
}

// stamper assigns contiguous stream timestamps to captured chunks, anchored
// at the wall clock of the first callback.
type stamper struct {
	sampleRate, channels int
	origin               time.Time
	frames               int64
}

func newStamper(sampleRate, channels int) *stamper {
	return &stamper{sampleRate: sampleRate, channels: channels}
}

func (s *stamper) next(data []byte, now time.Time) core.AudioChunk {
	if s.origin.IsZero() {
		s.origin = now
	}
	chunk := core.AudioChunk{
		Data:       data,
		SampleRate: s.sampleRate,
		Channels:   s.channels,
		Format:     core.PCM,
		Timestamp:  s.origin.Add(time.Duration(s.frames) * time.Second / time.Duration(s.sampleRate)),
	}
	s.frames += int64(len(data) / (2 * s.channels))
	return chunk
}

// Speaker plays clips on the default playback device, one device per clip so
// each clip keeps its own format.
type Speaker struct {
	logger *core.Logger
}

func NewSpeaker(logger *core.Logger) *Speaker {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Speaker{logger: logger.With(map[string]any{"device": "speaker"})}
}

func (s *Speaker) Play(ctx context.Context, clip core.AudioClip) error {
	pcm, err := audio.StripWAVHeaderIfPresent(clip.Data)
	if err != nil {
		return err
	}
	if len(pcm) == 0 {
		return nil
	}
	channels := clip.Channels
	if channels == 0 {
		channels = 1
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return core.NewDeviceError("speaker", fmt.Errorf("initializing audio context: %w", err))
	}
	defer func() {
		mctx.Uninit()
		mctx.Free()
	}()

	src := newClipReader(pcm)
	deviceCfg := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceCfg.Playback.Format = malgo.FormatS16
	deviceCfg.Playback.Channels = uint32(channels)
	deviceCfg.SampleRate = uint32(clip.SampleRate)

	device, err := malgo.InitDevice(mctx.Context, deviceCfg, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, _ uint32) {
			src.fill(pOutput)
		},
	})
	if err != nil {
		return core.NewDeviceError("speaker", fmt.Errorf("initializing playback device: %w", err))
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return core.NewDeviceError("speaker", fmt.Errorf("starting playback device: %w", err))
	}
	s.logger.Debug("playing clip", "clip", clip.ID, "seconds", audio.PCMDuration(len(pcm), channels, clip.SampleRate))

	select {
	case <-src.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// clipReader copies PCM into device buffers and closes done after the last
// byte has been handed over.
type clipReader struct {
	mu   sync.Mutex
	pcm  []byte
	pos  int
	done chan struct{}
	once sync.Once
}

func newClipReader(pcm []byte) *clipReader {
	return &clipReader{pcm: pcm, done: make(chan struct{})}
}

func (r *clipReader) fill(dst []byte) {
	r.mu.Lock()
	n := copy(dst, r.pcm[r.pos:])
	r.pos += n
	finished := r.pos >= len(r.pcm)
	r.mu.Unlock()

	clear(dst[n:])
	if finished {
		r.once.Do(func() { close(r.done) })
	}
}
