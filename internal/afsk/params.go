// Package afsk implements Bell-202-style Audio Frequency Shift Keying:
// a continuous-phase modulator and an envelope-/DFT-correlation
// demodulator with preamble-based alignment search and closed-loop bit
// clock recovery.
package afsk

// Reference Bell-202-style parameters.
const (
	DefaultSampleRate = 48000
	DefaultMarkFreq   = 1200 // binary 1
	DefaultSpaceFreq  = 2200 // binary 0
	DefaultBaudRate   = 300

	// DefaultAmplitude keeps the transmitted waveform well under full
	// scale, avoiding clipping and receiver AGC overshoot.
	DefaultAmplitude = 0.1
)

// Params bundles the tone/timing configuration shared by the modulator
// and the demodulator. Both ends of a link must agree on these (except
// Amplitude, which is a transmit-only gain and has no bearing on the
// receiver's RMS-normalized envelope decode).
type Params struct {
	SampleRate int
	MarkFreq   int
	SpaceFreq  int
	BaudRate   int
	Amplitude  float64
}

// DefaultParams returns the reference Bell-202-style configuration.
func DefaultParams() Params {
	return Params{
		SampleRate: DefaultSampleRate,
		MarkFreq:   DefaultMarkFreq,
		SpaceFreq:  DefaultSpaceFreq,
		BaudRate:   DefaultBaudRate,
		Amplitude:  DefaultAmplitude,
	}
}

func (p Params) withDefaults() Params {
	if p.SampleRate == 0 {
		p.SampleRate = DefaultSampleRate
	}
	if p.MarkFreq == 0 {
		p.MarkFreq = DefaultMarkFreq
	}
	if p.SpaceFreq == 0 {
		p.SpaceFreq = DefaultSpaceFreq
	}
	if p.BaudRate == 0 {
		p.BaudRate = DefaultBaudRate
	}
	if p.Amplitude == 0 {
		p.Amplitude = DefaultAmplitude
	}
	return p
}

// SamplesPerBit is the number of audio samples making up one bit period.
func (p Params) SamplesPerBit() int {
	return p.SampleRate / p.BaudRate
}
