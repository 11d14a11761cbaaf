package audio

import (
	"fmt"

	hamlib "github.com/xylo04/goHamlib"
)

// HamlibPTT keys a transceiver's PTT line through Hamlib's CAT control
// rather than a raw GPIO pin, for users keying an actual radio.
type HamlibPTT struct {
	rig *hamlib.Rig
	vfo hamlib.VFO
}

// NewHamlibPTT opens a rig of the given Hamlib model number on port
// (e.g. "/dev/ttyUSB0"). Run "rigctl --list" to find a model number.
func NewHamlibPTT(model int, port string) (*HamlibPTT, error) {
	rig := hamlib.RigInit(model)
	if rig == nil {
		return nil, fmt.Errorf("audio: hamlib: unknown rig model %d", model)
	}
	rig.SetConf("rig_pathname", port)
	if err := rig.Open(); err != nil {
		return nil, fmt.Errorf("audio: hamlib: rig open: %w", err)
	}
	return &HamlibPTT{rig: rig, vfo: hamlib.VFOCurrent}, nil
}

func (p *HamlibPTT) Key() error {
	return p.rig.SetPTT(p.vfo, hamlib.PTTOn)
}

func (p *HamlibPTT) Unkey() error {
	return p.rig.SetPTT(p.vfo, hamlib.PTTOff)
}

func (p *HamlibPTT) Close() error {
	_ = p.rig.SetPTT(p.vfo, hamlib.PTTOff)
	p.rig.Close()
	return nil
}
