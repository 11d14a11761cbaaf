// Command modumb is the CLI front end for the acoustic modem stack: a
// send/receive/loopback demo and a device-listing utility.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/jtexp/modumb/internal/audio"
	"github.com/jtexp/modumb/internal/frameio"
	"github.com/jtexp/modumb/internal/modem"
	"github.com/jtexp/modumb/internal/modemcfg"
	"github.com/jtexp/modumb/internal/session"
	"github.com/jtexp/modumb/internal/transport"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "send":
		err = runSend(os.Args[2:])
	case "receive":
		err = runReceive(os.Args[2:])
	case "loopback":
		err = runLoopback(os.Args[2:])
	case "list-devices":
		err = runListDevices(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "modumb: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "modumb: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `modumb: acoustic AFSK modem

Usage:
  modumb send --connect <message text>
  modumb receive
  modumb loopback <message text>
  modumb list-devices

Each subcommand accepts --config <path> plus the flags described by
--help on that subcommand.`)
}

// buildConfig registers every config flag on fs and parses args,
// returning the fully layered Config (YAML < env < flags).
func buildConfig(fs *pflag.FlagSet, args []string) (modemcfg.Config, error) {
	configPath := fs.String("config", "", "path to a YAML config file")

	// A first pass just to discover --config before registering the
	// rest of the layered flags against its contents.
	preArgs := append([]string{}, args...)
	pre := pflag.NewFlagSet("pre", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.String("config", "", "")
	_ = pre.Parse(preArgs)
	if v, err := pre.GetString("config"); err == nil {
		*configPath = v
	}

	base, err := modemcfg.Load(*configPath)
	if err != nil {
		return modemcfg.Config{}, err
	}

	cf := modemcfg.RegisterFlags(fs, base)
	if err := fs.Parse(args); err != nil {
		return modemcfg.Config{}, err
	}
	return cf.Apply(base), nil
}

func newLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.InfoLevel})
}

// buildStack wires a Config into a running protocol stack, establishing
// the layers in order: audio port, AFSK modem, framer, reliable
// transport, session. The transport is returned alongside the session
// for the sessionless (no handshake) send/receive paths.
func buildStack(cfg modemcfg.Config, logger *log.Logger) (*session.Session, *transport.Transport, func(), error) {
	port := audio.NewPort(cfg.AudioConfig())
	if err := port.Start(); err != nil {
		return nil, nil, nil, err
	}

	m := modem.New(port, cfg.AFSKParams())
	if err := m.Start(); err != nil {
		_ = port.Stop()
		return nil, nil, nil, err
	}

	framer := frameio.New(m, 0, logger)
	timeout, retries, fragment := cfg.TransportArgs()
	tr := transport.New(framer, timeout, retries, fragment, logger)
	sess := session.New(tr, framer, cfg.SessionConfig(), logger)

	cleanup := func() {
		_ = m.Stop()
		_ = port.Stop()
	}
	return sess, tr, cleanup, nil
}

func runSend(args []string) error {
	fs := pflag.NewFlagSet("send", pflag.ExitOnError)
	connect := fs.Bool("connect", false, "perform a session handshake before sending (client side)")
	cfg, err := buildConfig(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("send: a message is required")
	}
	message := fs.Arg(0)

	logger := newLogger()
	sess, tr, cleanup, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if *connect {
		if !sess.Connect() {
			return fmt.Errorf("send: handshake failed")
		}
		defer sess.Close()
		if !sess.Send([]byte(message)) {
			return fmt.Errorf("send: delivery failed")
		}
	} else if !tr.Send([]byte(message)) {
		return fmt.Errorf("send: delivery failed")
	}
	fmt.Println("sent")
	return nil
}

func runReceive(args []string) error {
	fs := pflag.NewFlagSet("receive", pflag.ExitOnError)
	accept := fs.Bool("accept", false, "wait for a session handshake before receiving (server side)")
	timeoutSec := fs.Int("timeout", 30, "seconds to wait for data")
	cfg, err := buildConfig(fs, args)
	if err != nil {
		return err
	}

	logger := newLogger()
	sess, tr, cleanup, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	timeout := time.Duration(*timeoutSec) * time.Second
	var data []byte
	if *accept {
		if !sess.Accept(timeout) {
			return fmt.Errorf("receive: handshake timed out")
		}
		defer sess.Close()
		data, err = sess.Receive(timeout)
	} else {
		data, err = tr.Receive(timeout)
		if errors.Is(err, transport.ErrClosed) {
			data, err = nil, nil
		}
	}
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("receive: nothing arrived before timeout")
	}
	fmt.Println(string(data))
	return nil
}

// runLoopback demonstrates the full stack with a single process talking
// to itself: two independent Modem+Framer+Transport stacks over a
// cross-connected pair of in-process loopback ports, so a Send on one
// side is a Receive on the other, as if two sound cards shared a cable.
func runLoopback(args []string) error {
	fs := pflag.NewFlagSet("loopback", pflag.ExitOnError)
	cfg, err := buildConfig(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("loopback: a message is required")
	}
	message := fs.Arg(0)

	logger := newLogger()
	portA, portB := audio.NewLoopbackPair(cfg.AudioConfig())

	afskParams := cfg.AFSKParams()
	timeout, retries, fragment := cfg.TransportArgs()

	modemTx := modem.New(portA, afskParams)
	modemRx := modem.New(portB, afskParams)
	if err := modemTx.Start(); err != nil {
		return err
	}
	defer modemTx.Stop()
	if err := modemRx.Start(); err != nil {
		return err
	}
	defer modemRx.Stop()

	tx := transport.New(frameio.New(modemTx, 0, logger), timeout, retries, fragment, logger)
	rx := transport.New(frameio.New(modemRx, 0, logger), timeout, retries, fragment, logger)

	done := make(chan bool, 1)
	go func() { done <- tx.Send([]byte(message)) }()

	got := rx.ReceiveAll(2 * timeout)
	<-done
	fmt.Printf("looped back: %q\n", got)
	return nil
}

func runListDevices(args []string) error {
	fs := pflag.NewFlagSet("list-devices", pflag.ExitOnError)
	_ = fs.Parse(args)

	devices, err := audio.ListDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Printf("%3d  in=%-2d out=%-2d %6.0fHz  %s\n", d.Index, d.ChannelsIn, d.ChannelsOut, d.SampleRate, d.Name)
	}
	return nil
}
