package afsk

import "math"

// passbandWidth is the mark/space bandpass width in Hz: each tone
// filter passes its frequency +/-400Hz.
const passbandWidth = 800.0

// Demodulator recovers bits from a block of audio samples:
// bandpass-filtered, RMS-normalized envelopes locate the preamble and a
// coarse-then-fine search finds the byte boundary; a closed-loop clock
// recovery pass and an independent DFT-correlation pass then each decode
// the whole block, and the higher-scoring output wins.
type Demodulator struct {
	params Params

	markFilter     *Biquad
	spaceFilter    *Biquad
	envelopeFilter *Biquad
}

// NewDemodulator builds a Demodulator. A zero Params uses DefaultParams.
// Filter coefficients are designed once, at construction.
func NewDemodulator(p Params) *Demodulator {
	p = p.withDefaults()
	envelopeCutoff := 2.0 * float64(p.BaudRate)
	return &Demodulator{
		params:         p,
		markFilter:     BandpassButterworth(float64(p.MarkFreq), passbandWidth, p.SampleRate),
		spaceFilter:    BandpassButterworth(float64(p.SpaceFreq), passbandWidth, p.SampleRate),
		envelopeFilter: LowpassButterworth(envelopeCutoff, p.SampleRate),
	}
}

// Demodulate recovers a byte stream from a block of samples. It returns
// ok=false when the block is shorter than eight bit periods, too short
// to carry even one byte.
func (d *Demodulator) Demodulate(samples []float32) ([]byte, bool) {
	spb := d.params.SamplesPerBit()
	if len(samples) < spb*8 {
		return nil, false
	}

	raw := toFloat64(samples)
	markEnv, spaceEnv := d.envelopes(raw)

	onset := findOnset(raw, spb)
	offset := d.findAlignment(markEnv, spaceEnv, onset)

	positions, envBits := d.recoverPositions(markEnv, spaceEnv, offset)
	envelopeBytes := bitsToBytes(envBits)

	dftBits := d.decodeDFT(raw, positions)
	dftBytes := bitsToBytes(dftBits)

	if scoreAlignment(dftBytes) > scoreAlignment(envelopeBytes) {
		return dftBytes, true
	}
	return envelopeBytes, true
}

// envelopes bandpass-filters samples at the mark and space tones,
// rectifies, lowpass-smooths and RMS-normalizes each.
func (d *Demodulator) envelopes(raw []float64) (markEnv, spaceEnv []float64) {
	markFiltered := d.markFilter.Clone().Filter(raw)
	spaceFiltered := d.spaceFilter.Clone().Filter(raw)

	markRect := absF64(markFiltered)
	spaceRect := absF64(spaceFiltered)

	markEnv = normalize(d.envelopeFilter.Clone().Filter(markRect))
	spaceEnv = normalize(d.envelopeFilter.Clone().Filter(spaceRect))
	return
}

// findOnset locates the first sample where a sustained, sliding-window
// RMS amplitude crosses a fraction of the block's peak amplitude.
func findOnset(samples []float64, windowSize int) int {
	if windowSize <= 0 || len(samples) <= windowSize {
		return 0
	}

	peak := 0.0
	for _, x := range samples {
		if a := math.Abs(x); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return 0
	}
	threshold := 0.3 * peak * 0.5

	sumSq := 0.0
	for i := 0; i < windowSize; i++ {
		sumSq += samples[i] * samples[i]
	}
	for i := windowSize; i < len(samples); i++ {
		if math.Sqrt(sumSq/float64(windowSize)) >= threshold {
			return i
		}
		sumSq += samples[i]*samples[i] - samples[i-windowSize]*samples[i-windowSize]
	}
	return 0
}

// findAlignment runs a coarse search (quarter-bit steps over sixteen
// byte periods forward of onset) followed by a fine search
// (sixteenth-bit steps over one coarse step either side of the coarse
// winner), scoring each candidate by how preamble-like its fixed-step
// decode looks. Exits early once a candidate's score reaches 18, for
// example twelve preamble bytes plus a visible sync (a full sixteen-byte
// preamble plus sync scores 22).
func (d *Demodulator) findAlignment(markEnv, spaceEnv []float64, onset int) int {
	const earlyExitScore = 18
	spb := d.params.SamplesPerBit()

	lo := onset
	hi := onset + spb*8*16
	if maxOff := len(markEnv) - spb; hi > maxOff {
		hi = maxOff
	}
	if hi < lo {
		hi = lo
	}

	coarseStep := spb / 4
	if coarseStep < 1 {
		coarseStep = 1
	}
	fineStep := spb / 16
	if fineStep < 1 {
		fineStep = 1
	}

	bestOffset, bestScore := lo, -1
	for off := lo; off <= hi; off += coarseStep {
		s := scoreAlignment(decodeFixedStep(markEnv, spaceEnv, off, spb))
		if s > bestScore {
			bestScore, bestOffset = s, off
		}
		if bestScore >= earlyExitScore {
			return bestOffset
		}
	}

	fineLo, fineHi := bestOffset-coarseStep, bestOffset+coarseStep
	if fineLo < 0 {
		fineLo = 0
	}
	for off := fineLo; off <= fineHi; off += fineStep {
		s := scoreAlignment(decodeFixedStep(markEnv, spaceEnv, off, spb))
		if s > bestScore {
			bestScore, bestOffset = s, off
		}
		if bestScore >= earlyExitScore {
			break
		}
	}
	return bestOffset
}

// decodeFixedStep decodes at a constant bit period with no clock
// recovery; it exists only to score a candidate alignment offset.
func decodeFixedStep(markEnv, spaceEnv []float64, offset, spb int) []byte {
	const maxBits = 200
	bits := make([]int, 0, maxBits)
	pos := offset
	for len(bits) < maxBits {
		cs, ce := pos+spb/4, pos+spb*3/4
		if ce > len(markEnv) {
			break
		}
		bit := 0
		if mean(markEnv[cs:ce]) > mean(spaceEnv[cs:ce]) {
			bit = 1
		}
		bits = append(bits, bit)
		pos += spb
	}
	return bitsToBytes(bits)
}

// recoverPositions walks the envelopes one bit at a time from offset,
// nudging the bit clock at every 1/0 transition toward the nearest
// mark/space crossover within a search window: a first-order PLL with
// proportional gain and saturation, tolerant of several hundred ppm of
// sample-rate mismatch. It returns both the recovered sample position
// of every bit and the bit decided there, so the DFT decoder can reuse
// the same positions.
func (d *Demodulator) recoverPositions(markEnv, spaceEnv []float64, offset int) (positions []float64, bits []int) {
	const kp = 0.3
	spb := float64(d.params.SamplesPerBit())
	maxCorr := 0.15 * spb
	searchWindow := 0.4 * spb

	diff := make([]float64, len(markEnv))
	for i := range diff {
		diff[i] = markEnv[i] - spaceEnv[i]
	}

	pos := float64(offset)
	prevBit := -1
	for pos+0.75*spb <= float64(len(markEnv)) {
		cs, ce := int(pos+0.25*spb), int(pos+0.75*spb)
		if cs < 0 {
			cs = 0
		}
		if ce > len(markEnv) {
			ce = len(markEnv)
		}
		if cs >= ce {
			break
		}

		bit := 0
		if mean(markEnv[cs:ce]) > mean(spaceEnv[cs:ce]) {
			bit = 1
		}
		positions = append(positions, pos)
		bits = append(bits, bit)

		if prevBit >= 0 && bit != prevBit {
			pos += clockCorrection(diff, pos, searchWindow, maxCorr, kp)
		}
		prevBit = bit
		pos += spb
	}
	return
}

// clockCorrection finds the mark/space crossover nearest to boundary
// within +/-window samples and returns a proportional nudge toward it,
// clamped to +/-maxCorr.
func clockCorrection(diff []float64, boundary, window, maxCorr, kp float64) float64 {
	lo, hi := int(boundary-window), int(boundary+window)
	if lo < 0 {
		lo = 0
	}
	if hi > len(diff)-2 {
		hi = len(diff) - 2
	}

	bestIdx, bestDist := -1, math.MaxFloat64
	for k := lo; k <= hi; k++ {
		if sign(diff[k]) == 0 || sign(diff[k]) == sign(diff[k+1]) {
			continue
		}
		for _, idx := range [2]int{k, k + 1} {
			if d := math.Abs(float64(idx) - boundary); d < bestDist {
				bestDist, bestIdx = d, idx
			}
		}
	}
	if bestIdx < 0 {
		return 0
	}

	corr := kp * (float64(bestIdx) - boundary)
	if corr > maxCorr {
		return maxCorr
	}
	if corr < -maxCorr {
		return -maxCorr
	}
	return corr
}

// decodeDFT independently decides each bit at the positions recovered by
// the envelope decoder's clock loop, by comparing the mean-normalized
// DFT magnitude at the mark and space frequencies. Stateless across
// bits: no IIR memory, so no inter-symbol interference.
func (d *Demodulator) decodeDFT(samples []float64, positions []float64) []int {
	spb := d.params.SamplesPerBit()
	sr := float64(d.params.SampleRate)

	markMags := make([]float64, 0, len(positions))
	spaceMags := make([]float64, 0, len(positions))
	n := 0
	for _, p := range positions {
		start := int(p)
		end := start + spb
		if end > len(samples) {
			break
		}
		seg := samples[start:end]
		markMags = append(markMags, dftMagnitude(seg, float64(d.params.MarkFreq), sr))
		spaceMags = append(spaceMags, dftMagnitude(seg, float64(d.params.SpaceFreq), sr))
		n++
	}

	markMags = meanNormalize(markMags)
	spaceMags = meanNormalize(spaceMags)

	bits := make([]int, n)
	for i := 0; i < n; i++ {
		if markMags[i] > spaceMags[i] {
			bits[i] = 1
		}
	}
	return bits
}

// dftMagnitude correlates seg against cos/sin reference waveforms at
// freq and returns the magnitude of the resulting complex coefficient,
// a single-bin DFT equivalent to one Goertzel evaluation.
func dftMagnitude(seg []float64, freq, sampleRate float64) float64 {
	w := 2 * math.Pi * freq / sampleRate
	var sumCos, sumSin float64
	for i, x := range seg {
		sumCos += x * math.Cos(w*float64(i))
		sumSin += x * math.Sin(w*float64(i))
	}
	return math.Hypot(sumCos, sumSin)
}
