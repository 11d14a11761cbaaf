// Package modemcfg loads the modem's configuration (device selection,
// acoustic parameters, ARQ and handshake knobs, and testing modes)
// from a YAML file, environment variables and CLI flags, in that
// increasing order of precedence.
package modemcfg

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jtexp/modumb/internal/afsk"
	"github.com/jtexp/modumb/internal/audio"
	"github.com/jtexp/modumb/internal/frame"
	"github.com/jtexp/modumb/internal/session"
	"github.com/jtexp/modumb/internal/transport"
)

// Config is the full set of knobs the stack recognizes. Acoustic and
// ARQ parameters must match on both ends of a link.
type Config struct {
	InputDevice  *int `yaml:"input_device"`
	OutputDevice *int `yaml:"output_device"`

	SampleRate int `yaml:"sample_rate"`
	BaudRate   int `yaml:"baud_rate"`
	MarkFreq   int `yaml:"mark_freq"`
	SpaceFreq  int `yaml:"space_freq"`

	FragmentSize int `yaml:"fragment_size"`
	TimeoutMS    int `yaml:"timeout_ms"`
	Retries      int `yaml:"retries"`

	ConnectTimeoutMS int `yaml:"connect_timeout_ms"`
	HandshakeRetries int `yaml:"handshake_retries"`

	Loopback bool `yaml:"loopback"`
	Audible  bool `yaml:"audible"`
}

// Default returns the configuration key table's documented defaults.
func Default() Config {
	p := afsk.DefaultParams()
	return Config{
		SampleRate:       p.SampleRate,
		BaudRate:         p.BaudRate,
		MarkFreq:         p.MarkFreq,
		SpaceFreq:        p.SpaceFreq,
		FragmentSize:     frame.MaxPayload,
		TimeoutMS:        int(transport.DefaultTimeout.Milliseconds()),
		Retries:          transport.DefaultRetries,
		ConnectTimeoutMS: int(session.DefaultConfig().ConnectTimeout.Milliseconds()),
		HandshakeRetries: session.DefaultConfig().HandshakeRetries,
	}
}

// Load reads a YAML file at path into a Config seeded with Default(),
// then applies environment-variable overrides. A missing file is not an
// error; the built-in defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides device selection and testing-mode keys from
// MODEM_INPUT_DEVICE / MODEM_OUTPUT_DEVICE / MODEM_LOOPBACK /
// MODEM_AUDIBLE.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("MODEM_INPUT_DEVICE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.InputDevice = &n
		}
	}
	if v, ok := os.LookupEnv("MODEM_OUTPUT_DEVICE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.OutputDevice = &n
		}
	}
	if v, ok := os.LookupEnv("MODEM_LOOPBACK"); ok {
		c.Loopback = isTruthy(v)
	}
	if v, ok := os.LookupEnv("MODEM_AUDIBLE"); ok {
		c.Audible = isTruthy(v)
	}
}

func isTruthy(v string) bool {
	switch v {
	case "1", "true", "True", "TRUE", "yes", "on":
		return true
	default:
		return false
	}
}

// AudioConfig projects the device/rate/testing-mode keys into an
// audio.Config for audio.NewPort.
func (c Config) AudioConfig() audio.Config {
	return audio.Config{
		SampleRate:   c.SampleRate,
		InputDevice:  c.InputDevice,
		OutputDevice: c.OutputDevice,
		Loopback:     c.Loopback,
		Audible:      c.Audible,
	}
}

// AFSKParams projects the acoustic keys into an afsk.Params.
func (c Config) AFSKParams() afsk.Params {
	return afsk.Params{
		SampleRate: c.SampleRate,
		MarkFreq:   c.MarkFreq,
		SpaceFreq:  c.SpaceFreq,
		BaudRate:   c.BaudRate,
	}
}

// SessionConfig projects the handshake keys into a session.Config.
func (c Config) SessionConfig() session.Config {
	return session.Config{
		ConnectTimeout:   msDuration(c.ConnectTimeoutMS),
		HandshakeRetries: c.HandshakeRetries,
	}
}

// TransportArgs returns the (timeout, retries, fragment) triple
// transport.New expects.
func (c Config) TransportArgs() (timeout time.Duration, retries, fragment int) {
	return msDuration(c.TimeoutMS), c.Retries, c.FragmentSize
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
