package audio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOPTT drives a Linux GPIO line high/low through the gpiod character
// device to key an external PA or transceiver.
type GPIOPTT struct {
	line   *gpiocdev.Line
	invert bool
}

// NewGPIOPTT requests chipName/line (e.g. "gpiochip0", 17) as an output
// and drives it low initially.
func NewGPIOPTT(chipName string, line int, invert bool) (*GPIOPTT, error) {
	l, err := gpiocdev.RequestLine(chipName, line, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("audio: request gpio line %s:%d: %w", chipName, line, err)
	}
	return &GPIOPTT{line: l, invert: invert}, nil
}

func (p *GPIOPTT) Key() error {
	return p.line.SetValue(p.assertedValue(true))
}

func (p *GPIOPTT) Unkey() error {
	return p.line.SetValue(p.assertedValue(false))
}

func (p *GPIOPTT) assertedValue(on bool) int {
	if on != p.invert {
		return 1
	}
	return 0
}

func (p *GPIOPTT) Close() error {
	_ = p.line.SetValue(p.assertedValue(false))
	return p.line.Close()
}
