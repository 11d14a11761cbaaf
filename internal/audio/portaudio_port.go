package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
)

// ErrAudioUnavailable is returned by Start when the host has no usable
// audio driver or device. Fatal for this endpoint; there is no
// degraded mode without audio.
var ErrAudioUnavailable = errors.New("audio: audio device unavailable")

// PortAudioPort is the real sound-card-backed Port, built on
// gordonklaus/portaudio. It keeps an input stream open continuously and
// plays transmissions through a short-lived output stream: receive is
// callback-fed into a channel, transmit uses a direct blocking write
// since callback-based output misbehaves with some audio backends.
type PortAudioPort struct {
	cfg Config
	log *log.Logger

	mu           sync.Mutex
	running      bool
	inStream     *portaudio.Stream
	rx           chan []float32
	transmitting bool
	lastTxEnd    time.Time

	capture *Capture
}

// NewPortAudioPort builds a PortAudioPort from cfg. The portaudio
// library itself is not initialized until Start is called. If
// cfg.CaptureDir is set, every received block is additionally written
// to a timestamped WAV file there for offline debugging; a capture
// that fails to initialize (e.g. an unwritable directory) only logs a
// warning, since it is a debugging aid, not part of the data path.
func NewPortAudioPort(cfg Config) *PortAudioPort {
	cfg = cfg.withDefaults()
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "audio"})

	p := &PortAudioPort{
		cfg: cfg,
		log: logger,
		rx:  make(chan []float32, 64),
	}
	if cfg.CaptureDir != "" {
		capturer, err := NewCapture(cfg.CaptureDir, cfg.CapturePattern, cfg.SampleRate)
		if err != nil {
			logger.Warn("capture disabled", "err", err)
		} else {
			p.capture = capturer
		}
	}
	return p
}

func (p *PortAudioPort) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}

	inDevice, err := p.resolveInputDevice()
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}

	buf := make([]float32, p.cfg.BlockSize)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   inDevice,
			Channels: p.cfg.Channels,
			Latency:  inDevice.DefaultLowInputLatency,
		},
		SampleRate:      float64(p.cfg.SampleRate),
		FramesPerBuffer: len(buf),
	}

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		p.onInput(in)
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}

	p.inStream = stream
	p.running = true
	return nil
}

func (p *PortAudioPort) onInput(in []float32) {
	p.mu.Lock()
	suppressed := p.transmitting || time.Since(p.lastTxEnd) < DefaultEchoGuard
	p.mu.Unlock()
	if suppressed {
		return
	}

	cp := make([]float32, len(in))
	copy(cp, in)
	select {
	case p.rx <- cp:
	default:
		p.log.Warn("receive buffer full, dropping block")
	}

	if p.capture != nil {
		if _, err := p.capture.WriteBlock(cp); err != nil {
			p.log.Debug("capture write failed", "err", err)
		}
	}
}

func (p *PortAudioPort) resolveInputDevice() (*portaudio.DeviceInfo, error) {
	if p.cfg.InputDevice != nil {
		devices, err := portaudio.Devices()
		if err != nil {
			return nil, err
		}
		if *p.cfg.InputDevice >= 0 && *p.cfg.InputDevice < len(devices) {
			return devices[*p.cfg.InputDevice], nil
		}
	}
	return portaudio.DefaultInputDevice()
}

func (p *PortAudioPort) resolveOutputDevice() (*portaudio.DeviceInfo, error) {
	if p.cfg.OutputDevice != nil {
		devices, err := portaudio.Devices()
		if err != nil {
			return nil, err
		}
		if *p.cfg.OutputDevice >= 0 && *p.cfg.OutputDevice < len(devices) {
			return devices[*p.cfg.OutputDevice], nil
		}
	}
	return portaudio.DefaultOutputDevice()
}

func (p *PortAudioPort) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	p.running = false
	if p.inStream != nil {
		p.inStream.Stop()
		p.inStream.Close()
		p.inStream = nil
	}
	return portaudio.Terminate()
}

func (p *PortAudioPort) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Transmit plays samples through a dedicated output stream and waits
// for completion when blocking. The echo-suppression window stays
// active for DefaultEchoGuard after playback ends.
func (p *PortAudioPort) Transmit(samples []float32, blocking bool) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.transmitting = true
	p.mu.Unlock()
	p.ClearReceiveBuffer()

	outDevice, err := p.resolveOutputDevice()
	if err != nil {
		p.endTransmit()
		return err
	}

	out := make([]float32, len(samples))
	copy(out, samples)

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   outDevice,
			Channels: p.cfg.Channels,
			Latency:  outDevice.DefaultLowOutputLatency,
		},
		SampleRate:      float64(p.cfg.SampleRate),
		FramesPerBuffer: len(out),
	}

	stream, err := portaudio.OpenStream(params, &out)
	if err != nil {
		p.endTransmit()
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		p.endTransmit()
		return err
	}
	if err := stream.Write(); err != nil {
		stream.Stop()
		p.endTransmit()
		return err
	}
	if blocking {
		stream.Stop()
	}

	p.endTransmit()
	return nil
}

func (p *PortAudioPort) endTransmit() {
	p.mu.Lock()
	p.transmitting = false
	p.lastTxEnd = time.Now()
	p.mu.Unlock()
	p.ClearReceiveBuffer()
}

func (p *PortAudioPort) ClearReceiveBuffer() {
	for {
		select {
		case <-p.rx:
		default:
			return
		}
	}
}

func (p *PortAudioPort) Receive(numSamples int, timeout time.Duration) ([]float32, error) {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return nil, ErrNotRunning
	}

	deadline := time.After(timeout)
	out := make([]float32, 0, numSamples)
	for len(out) < numSamples {
		select {
		case block := <-p.rx:
			out = append(out, block...)
		case <-deadline:
			return out, nil
		}
	}
	return out[:numSamples], nil
}

func (p *PortAudioPort) ReceiveUntilSilence(opts SilenceOptions) ([]float32, error) {
	deadline := time.Now().Add(opts.Timeout)
	silenceSamples := int(opts.SilenceDuration.Seconds() * float64(p.cfg.SampleRate))

	var samples []float32
	signalSeen := false

	for time.Now().Before(deadline) {
		block, err := p.Receive(p.cfg.BlockSize, 100*time.Millisecond)
		if err != nil {
			return nil, err
		}
		if len(block) == 0 {
			continue
		}
		samples = append(samples, block...)

		if rmsOf(block) > opts.Threshold*2 {
			signalSeen = true
		}

		if signalSeen && len(samples) >= opts.MinSamples && len(samples) >= silenceSamples {
			tail := samples[len(samples)-silenceSamples:]
			if rmsOf(tail) < opts.Threshold {
				break
			}
		}
	}
	return samples, nil
}
