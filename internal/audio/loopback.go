package audio

import (
	"errors"
	"sync"
	"time"
)

// ErrNotRunning is returned by Transmit/Receive before Start or after
// Stop.
var ErrNotRunning = errors.New("audio: port not running")

// LoopbackPort feeds transmitted samples straight back to the receiver,
// with no sound hardware involved. It exists for tests and for demo
// modes. It plays nothing through a sound card: Config.Audible is
// carried in its config but has no effect on it.
type LoopbackPort struct {
	cfg Config

	// peer, when set, receives this port's transmissions instead of the
	// port itself. See NewLoopbackPair.
	peer *LoopbackPort

	mu      sync.Mutex
	running bool
	buf     [][]float32
	woken   chan struct{}
}

// NewLoopbackPort builds a LoopbackPort from cfg.
func NewLoopbackPort(cfg Config) *LoopbackPort {
	return &LoopbackPort{cfg: cfg.withDefaults()}
}

// NewLoopbackPair builds two cross-connected LoopbackPorts: a Transmit
// on either one appears as received blocks on the other, like two sound
// cards joined by a cable. This lets two full protocol stacks talk to
// each other in one process; the single-port form above keeps
// self-receive semantics.
func NewLoopbackPair(cfg Config) (*LoopbackPort, *LoopbackPort) {
	a := NewLoopbackPort(cfg)
	b := NewLoopbackPort(cfg)
	a.peer, b.peer = b, a
	return a, b
}

func (p *LoopbackPort) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = true
	p.woken = make(chan struct{})
	return nil
}

func (p *LoopbackPort) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	p.buf = nil
	return nil
}

func (p *LoopbackPort) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *LoopbackPort) Transmit(samples []float32, blocking bool) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrNotRunning
	}
	target := p
	if p.peer != nil {
		target = p.peer
	}
	p.mu.Unlock()

	cp := make([]float32, len(samples))
	copy(cp, samples)

	target.mu.Lock()
	if !target.running {
		// Nobody listening on the far end; the sound just dissipates.
		target.mu.Unlock()
		return nil
	}
	target.buf = append(target.buf, cp)
	woken := target.woken
	target.woken = make(chan struct{})
	target.mu.Unlock()
	close(woken)
	return nil
}

func (p *LoopbackPort) ClearReceiveBuffer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = nil
}

// Receive returns the next transmitted block whole, however long it is;
// numSamples does not split or bound it.
func (p *LoopbackPort) Receive(numSamples int, timeout time.Duration) ([]float32, error) {
	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		if !p.running {
			p.mu.Unlock()
			return nil, ErrNotRunning
		}
		if len(p.buf) > 0 {
			block := p.buf[0]
			p.buf = p.buf[1:]
			p.mu.Unlock()
			return block, nil
		}
		woken := p.woken
		p.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return make([]float32, 0), nil
		}
		select {
		case <-woken:
		case <-time.After(remaining):
			return make([]float32, 0), nil
		}
	}
}

// ReceiveUntilSilence returns the next transmitted block, waiting at
// most opts.Timeout; no silence detection is done, since each block is
// one whole transmission.
func (p *LoopbackPort) ReceiveUntilSilence(opts SilenceOptions) ([]float32, error) {
	block, err := p.Receive(p.cfg.BlockSize, opts.Timeout)
	if err != nil {
		return nil, err
	}
	return block, nil
}
