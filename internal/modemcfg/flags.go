package modemcfg

import (
	"github.com/spf13/pflag"
)

// FlagSet holds the pflag.FlagSet-bound variables for every
// configuration key, so cmd/modumb can parse command-line overrides
// the same way atest.go/kissutil.go build their flag sets.
type FlagSet struct {
	fs *pflag.FlagSet

	inputDevice  int
	outputDevice int
	sampleRate   int
	baudRate     int
	markFreq     int
	spaceFreq    int
	fragmentSize int
	timeoutMS    int
	retries      int
	connectMS    int
	handshake    int
	loopback     bool
	audible      bool
}

// RegisterFlags binds every configuration key to fs, seeded with base's
// current values as defaults.
func RegisterFlags(fs *pflag.FlagSet, base Config) *FlagSet {
	f := &FlagSet{fs: fs}

	f.fs.IntVar(&f.inputDevice, "input-device", intOr(base.InputDevice, -1), "input audio device index (-1 = default)")
	f.fs.IntVar(&f.outputDevice, "output-device", intOr(base.OutputDevice, -1), "output audio device index (-1 = default)")
	f.fs.IntVar(&f.sampleRate, "sample-rate", base.SampleRate, "audio sample rate in Hz")
	f.fs.IntVar(&f.baudRate, "baud-rate", base.BaudRate, "bits per second")
	f.fs.IntVar(&f.markFreq, "mark-freq", base.MarkFreq, "AFSK mark tone in Hz")
	f.fs.IntVar(&f.spaceFreq, "space-freq", base.SpaceFreq, "AFSK space tone in Hz")
	f.fs.IntVar(&f.fragmentSize, "fragment-size", base.FragmentSize, "transport fragment size in bytes")
	f.fs.IntVar(&f.timeoutMS, "timeout-ms", base.TimeoutMS, "ARQ ACK timeout in milliseconds")
	f.fs.IntVar(&f.retries, "retries", base.Retries, "ARQ retransmit attempts")
	f.fs.IntVar(&f.connectMS, "connect-timeout-ms", base.ConnectTimeoutMS, "session handshake timeout in milliseconds")
	f.fs.IntVar(&f.handshake, "handshake-retries", base.HandshakeRetries, "session handshake retry attempts")
	f.fs.BoolVar(&f.loopback, "loopback", base.Loopback, "use the in-process loopback audio port instead of a sound card")
	f.fs.BoolVar(&f.audible, "audible", base.Audible, "audible testing mode (stored in the config; the loopback port plays no audio)")

	return f
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

// Apply overlays fs's parsed values onto base, returning the merged
// Config. Only flags the caller explicitly set on the command line
// override base; unset flags keep base's value (YAML/env/default), so
// precedence runs argument > environment > file > default.
func (f *FlagSet) Apply(base Config) Config {
	cfg := base

	f.fs.Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "input-device":
			cfg.InputDevice = &f.inputDevice
		case "output-device":
			cfg.OutputDevice = &f.outputDevice
		case "sample-rate":
			cfg.SampleRate = f.sampleRate
		case "baud-rate":
			cfg.BaudRate = f.baudRate
		case "mark-freq":
			cfg.MarkFreq = f.markFreq
		case "space-freq":
			cfg.SpaceFreq = f.spaceFreq
		case "fragment-size":
			cfg.FragmentSize = f.fragmentSize
		case "timeout-ms":
			cfg.TimeoutMS = f.timeoutMS
		case "retries":
			cfg.Retries = f.retries
		case "connect-timeout-ms":
			cfg.ConnectTimeoutMS = f.connectMS
		case "handshake-retries":
			cfg.HandshakeRetries = f.handshake
		case "loopback":
			cfg.Loopback = f.loopback
		case "audible":
			cfg.Audible = f.audible
		}
	})

	return cfg
}
