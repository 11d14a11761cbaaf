// Package audio implements the audio port at the bottom of the stack:
// a half-duplex sample-block transport between the modem and either a
// real sound card or an in-process loopback, plus the PTT keying and
// timestamped capture side channels that sit next to it.
package audio

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default tunables.
const (
	DefaultSampleRate = 48000
	DefaultBlockSize  = 1024
	DefaultEchoGuard  = 80 * time.Millisecond
)

// Port is a half-duplex block-oriented audio transport. Implementations
// must suppress self-echo around Transmit so a transmission is never
// read back as received signal.
type Port interface {
	Start() error
	Stop() error

	// Transmit plays samples. If blocking, it returns only once playback
	// has completed.
	Transmit(samples []float32, blocking bool) error

	// Receive collects up to numSamples samples, waiting at most timeout.
	// A partial (possibly empty) read is not an error.
	Receive(numSamples int, timeout time.Duration) ([]float32, error)

	// ReceiveUntilSilence accumulates samples until a contiguous silent
	// run of SilenceDuration is observed after a signal has been seen, or
	// timeout elapses.
	ReceiveUntilSilence(opts SilenceOptions) ([]float32, error)

	// ClearReceiveBuffer discards any buffered but unread input.
	ClearReceiveBuffer()

	IsRunning() bool
}

// SilenceOptions parameterizes ReceiveUntilSilence's onset detection
// and trailing-silence capture window.
type SilenceOptions struct {
	Threshold       float64
	MinSamples      int
	SilenceDuration time.Duration
	Timeout         time.Duration
}

// DefaultSilenceOptions is tuned for a single frame's burst at a few
// hundred baud.
func DefaultSilenceOptions() SilenceOptions {
	return SilenceOptions{
		Threshold:       0.01,
		MinSamples:      1000,
		SilenceDuration: 200 * time.Millisecond,
		Timeout:         10 * time.Second,
	}
}

// Config selects and configures a Port. Device selection precedence is
// argument > environment > default.
type Config struct {
	SampleRate   int
	Channels     int
	BlockSize    int
	InputDevice  *int
	OutputDevice *int
	Loopback     bool
	Audible      bool

	// CaptureDir, if non-empty, makes a real PortAudioPort write every
	// received block to a timestamped WAV file under this directory,
	// named from CapturePattern (an strftime pattern). Offline
	// demodulator debugging only; the LoopbackPort ignores it.
	CaptureDir     string
	CapturePattern string
}

func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.BlockSize == 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.InputDevice == nil {
		c.InputDevice = deviceFromEnv("MODEM_INPUT_DEVICE")
	}
	if c.OutputDevice == nil {
		c.OutputDevice = deviceFromEnv("MODEM_OUTPUT_DEVICE")
	}
	if !c.Loopback {
		c.Loopback = boolFromEnv("MODEM_LOOPBACK")
	}
	if !c.Audible {
		c.Audible = boolFromEnv("MODEM_AUDIBLE")
	}
	if c.CaptureDir != "" && c.CapturePattern == "" {
		c.CapturePattern = "rx-%Y%m%d-%H%M%S.wav"
	}
	return c
}

// NewPort builds the appropriate Port implementation for cfg: Loopback
// selects the in-process LoopbackPort, otherwise a real PortAudioPort.
func NewPort(cfg Config) Port {
	cfg = cfg.withDefaults()
	if cfg.Loopback {
		return NewLoopbackPort(cfg)
	}
	return NewPortAudioPort(cfg)
}

func deviceFromEnv(name string) *int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func boolFromEnv(name string) bool {
	v := strings.ToLower(os.Getenv(name))
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func rmsOf(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
