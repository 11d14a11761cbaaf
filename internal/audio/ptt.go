package audio

import "time"

// TxDelay is the settling time before transmit: keyed hardware, a
// GPIO-driven PA or a CAT-controlled rig, needs a short moment to come
// up to full power before audio starts.
const TxDelay = 50 * time.Millisecond

// PTTControl keys and unkeys a transmitter. Two hardware backends exist
// for anything beyond a sound-card-only acoustic link: a raw GPIO line
// (GPIOPTT) and CAT/rig control (HamlibPTT).
type PTTControl interface {
	Key() error
	Unkey() error
	Close() error
}

// NoopPTT is used for a pure acoustic (sound-card-to-sound-card) link,
// where there is no hardware to key.
type NoopPTT struct{}

func (NoopPTT) Key() error   { return nil }
func (NoopPTT) Unkey() error { return nil }
func (NoopPTT) Close() error { return nil }

// KeyedTransmit keys ptt, waits TxDelay, transmits samples through port,
// and unkeys once playback completes. This is the half-duplex
// turnaround sequence.
func KeyedTransmit(port Port, ptt PTTControl, samples []float32) error {
	if err := ptt.Key(); err != nil {
		return err
	}
	time.Sleep(TxDelay)

	err := port.Transmit(samples, true)

	if unkeyErr := ptt.Unkey(); err == nil {
		err = unkeyErr
	}
	return err
}
