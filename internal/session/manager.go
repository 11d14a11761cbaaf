package session

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jtexp/modumb/internal/frameio"
	"github.com/jtexp/modumb/internal/transport"
)

// Manager multiplexes multiple Sessions over one shared Framer (and
// thus one shared half-duplex audio link). Only one session can
// usefully be ESTABLISHED and exchanging data at a time on a true
// half-duplex acoustic link; Manager's job is bookkeeping identity
// across connect/accept cycles, not concurrent multiplexing.
type Manager struct {
	framer *frameio.Framer
	cfg    Config
	log    *log.Logger

	mu       sync.Mutex
	sessions map[int]*Session
	nextID   int
}

// NewManager builds a Manager over framer. A zero Config uses
// DefaultConfig for every session it creates.
func NewManager(framer *frameio.Framer, cfg Config, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{framer: framer, cfg: cfg.withDefaults(), log: logger, sessions: make(map[int]*Session)}
}

// CreateSession builds a new Session (and its own Transport) over the
// shared Framer, assigning it the next sequential ID.
func (m *Manager) CreateSession() (int, *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := transport.New(m.framer, 0, 0, 0, m.log)
	s := New(t, m.framer, m.cfg, m.log)

	id := m.nextID
	m.nextID++
	m.sessions[id] = s
	return id, s
}

// GetSession looks up a previously created session by ID.
func (m *Manager) GetSession(id int) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// CloseAll gracefully closes every tracked session and forgets them.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Close()
	}
	m.sessions = make(map[int]*Session)
}

// CreateClientSession creates a session and connects it as a client,
// returning false if the handshake never completes.
func (m *Manager) CreateClientSession() (*Session, bool) {
	_, s := m.CreateSession()
	return s, s.Connect()
}

// AcceptServerSession creates a session and accepts an incoming
// connection as a server, returning false on timeout. A zero timeout
// uses twice the session's configured connect timeout.
func (m *Manager) AcceptServerSession(timeout time.Duration) (*Session, bool) {
	_, s := m.CreateSession()
	return s, s.Accept(timeout)
}
