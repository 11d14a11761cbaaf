package afsk

import "math"

// Modulator produces a continuous-phase AFSK waveform: the oscillator's
// phase accumulator carries across bit boundaries so that a run of
// identical bits (or a transition between mark and space) never clicks.
type Modulator struct {
	params Params
	phase  float64 // radians, wrapped to [0, 2*pi)
}

// NewModulator builds a Modulator. A zero Params uses DefaultParams.
func NewModulator(p Params) *Modulator {
	return &Modulator{params: p.withDefaults()}
}

// Reset zeroes the phase accumulator, starting a new independent
// transmission.
func (m *Modulator) Reset() {
	m.phase = 0
}

// ModulateBit appends one bit period of waveform (mark for 1, space for
// 0) to the oscillator, returning the generated samples.
func (m *Modulator) ModulateBit(bit int) []float32 {
	freq := float64(m.params.SpaceFreq)
	if bit != 0 {
		freq = float64(m.params.MarkFreq)
	}

	spb := m.params.SamplesPerBit()
	out := make([]float32, spb)
	step := 2 * math.Pi * freq / float64(m.params.SampleRate)

	amplitude := m.params.Amplitude
	for i := 0; i < spb; i++ {
		out[i] = float32(amplitude * math.Sin(m.phase))
		m.phase += step
		if m.phase >= 2*math.Pi {
			m.phase -= 2 * math.Pi
		}
	}
	return out
}

// Modulate encodes data as a sequence of bits, LSB-first per byte, and
// returns the full continuous-phase waveform.
func (m *Modulator) Modulate(data []byte) []float32 {
	spb := m.params.SamplesPerBit()
	out := make([]float32, 0, len(data)*8*spb)
	for _, b := range data {
		for bitPos := 0; bitPos < 8; bitPos++ {
			bit := int((b >> uint(bitPos)) & 1)
			out = append(out, m.ModulateBit(bit)...)
		}
	}
	return out
}
