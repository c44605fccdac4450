package lmn

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/solostec/smf-gateway/internal/obis"
)

// Well-known OBIS selectors for port line settings, used for
// OBIS-addressed runtime reconfiguration.
var (
	OptionBaudRate = obis.New(0, 0, 96, 8, 0, 255)
	OptionParity   = obis.New(0, 0, 96, 8, 1, 255)
	OptionDataBits = obis.New(0, 0, 96, 8, 2, 255)
)

// SetOption reconfigures one line-setting attribute of the port
// without closing it.
func (p *Port) SetOption(code obis.Code, value int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	mode := p.mode
	switch code {
	case OptionBaudRate:
		mode.BaudRate = value
	case OptionParity:
		switch value {
		case 0:
			mode.Parity = serial.NoParity
		case 1:
			mode.Parity = serial.OddParity
		case 2:
			mode.Parity = serial.EvenParity
		default:
			return fmt.Errorf("lmn: unknown parity value %d", value)
		}
	case OptionDataBits:
		mode.DataBits = value
	default:
		return fmt.Errorf("lmn: unknown port option %s", code)
	}

	if err := p.dev.SetMode(&mode); err != nil {
		return fmt.Errorf("lmn: apply option %s: %w", code, err)
	}
	p.mode = mode
	return nil
}
