//go:build !windows

package hostio

import (
	"os"

	"github.com/creack/pty"

	"github.com/charmbracelet/log"

	"github.com/jtexp/modumb/internal/session"
)

// SymlinkPath is a fixed path symlinked to the pty's slave side, so a
// host application that expects a stable device path doesn't need to
// parse the pty's generated name.
const SymlinkPath = "/tmp/modumbtnc"

// PTY is a pseudo-terminal pair exposing a Session's byte stream. The
// host application opens Slave.Name() (or SymlinkPath) and reads and
// writes it like a serial device.
type PTY struct {
	Master *os.File
	Slave  *os.File

	bridge *Bridge
}

// OpenPTY allocates a pty pair, symlinks SymlinkPath to the slave side
// (removing any stale symlink first), and builds a Bridge between the
// master side and sess. Pumping begins when Run is called.
func OpenPTY(sess *session.Session, logger *log.Logger) (*PTY, error) {
	if logger == nil {
		logger = log.Default()
	}

	master, slave, err := pty.Open()
	if err != nil {
		return nil, err
	}

	_ = os.Remove(SymlinkPath)
	if err := os.Symlink(slave.Name(), SymlinkPath); err != nil {
		logger.Debug("could not create pty symlink", "path", SymlinkPath, "err", err)
	} else {
		logger.Debug("virtual TNC available", "path", SymlinkPath, "pty", slave.Name())
	}

	p := &PTY{Master: master, Slave: slave, bridge: New(master, sess, logger)}
	return p, nil
}

// Run blocks, pumping bytes between the pty and the session until
// either side closes. Callers typically run this in a goroutine.
func (p *PTY) Run() error {
	return p.bridge.Run()
}

// Close stops the bridge, closes both ends of the pty and removes the
// symlink.
func (p *PTY) Close() error {
	err := p.bridge.Close()
	_ = p.Slave.Close()
	_ = os.Remove(SymlinkPath)
	return err
}
