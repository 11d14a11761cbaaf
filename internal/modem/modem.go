// Package modem provides the byte-oriented glue between the AFSK codec
// and the audio port: Send modulates and transmits a byte slice,
// Receive listens for a burst of audio and demodulates it back.
package modem

import (
	"sync"
	"time"

	"github.com/jtexp/modumb/internal/afsk"
	"github.com/jtexp/modumb/internal/audio"
)

// Turnaround is the half-duplex settle time after a blocking send,
// before the link is ready to receive again.
const Turnaround = 50 * time.Millisecond

// Padding silence bracketing every transmission, so the audio system's
// filters and the receiver's onset detector have room to settle before
// and after the real signal.
const (
	leadSilence  = 150 * time.Millisecond
	trailSilence = 50 * time.Millisecond
)

// Modem is a byte-oriented half-duplex link over one audio.Port.
type Modem struct {
	port audio.Port
	ptt  audio.PTTControl
	mod  *afsk.Modulator
	demo *afsk.Demodulator

	sampleRate int
	baudRate   int

	mu sync.Mutex
}

// New builds a Modem over port using the given AFSK parameters, with no
// PTT hardware to key (a pure sound-card-to-sound-card acoustic link).
func New(port audio.Port, params afsk.Params) *Modem {
	return NewKeyed(port, audio.NoopPTT{}, params)
}

// NewKeyed builds a Modem that keys ptt (a GPIO line or a CAT-
// controlled rig) around every blocking transmission.
func NewKeyed(port audio.Port, ptt audio.PTTControl, params afsk.Params) *Modem {
	return &Modem{
		port:       port,
		ptt:        ptt,
		mod:        afsk.NewModulator(params),
		demo:       afsk.NewDemodulator(params),
		sampleRate: params.SampleRate,
		baudRate:   params.BaudRate,
	}
}

func (m *Modem) Start() error { return m.port.Start() }

func (m *Modem) Stop() error { return m.port.Stop() }

func (m *Modem) IsRunning() bool { return m.port.IsRunning() }

// Send modulates data and transmits it, bracketed by settling silence.
// When blocking, it also waits out the half-duplex Turnaround delay
// before returning.
func (m *Modem) Send(data []byte, blocking bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mod.Reset()
	payload := m.mod.Modulate(data)

	samples := make([]float32, 0, samplesIn(leadSilence, m.sampleRate)+len(payload)+samplesIn(trailSilence, m.sampleRate))
	samples = append(samples, make([]float32, samplesIn(leadSilence, m.sampleRate))...)
	samples = append(samples, payload...)
	samples = append(samples, make([]float32, samplesIn(trailSilence, m.sampleRate))...)

	if blocking {
		if err := audio.KeyedTransmit(m.port, m.ptt, samples); err != nil {
			return err
		}
		time.Sleep(Turnaround)
		return nil
	}
	return m.port.Transmit(samples, false)
}

// Receive listens for one burst of audio (onset to trailing silence)
// and demodulates it to bytes. An empty result is not an error; it
// means nothing was heard before timeout.
func (m *Modem) Receive(timeout time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	opts := audio.DefaultSilenceOptions()
	opts.Timeout = timeout
	opts.MinSamples = samplesIn(200*time.Millisecond, m.sampleRate)
	opts.SilenceDuration = 300 * time.Millisecond

	samples, err := m.port.ReceiveUntilSilence(opts)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}
	decoded, _ := m.demo.Demodulate(samples)
	return decoded, nil
}

// ReceiveBytes listens for 1.5 times the nominal duration of numBytes
// and demodulates it, for callers that know the expected
// length, e.g. a fixed-size frame header peek.
func (m *Modem) ReceiveBytes(numBytes int, timeout time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	spb := m.sampleRate / m.baudRate
	needed := int(float64(numBytes*8*spb) * 1.5)

	samples, err := m.port.Receive(needed, timeout)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}
	decoded, _ := m.demo.Demodulate(samples)
	if len(decoded) > numBytes {
		decoded = decoded[:numBytes]
	}
	return decoded, nil
}

// BytesPerSecond returns the nominal data rate of the link.
func (m *Modem) BytesPerSecond() float64 {
	return float64(m.baudRate) / 8
}

func samplesIn(d time.Duration, sampleRate int) int {
	return int(d.Seconds() * float64(sampleRate))
}
