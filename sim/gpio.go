package sim

import (
	"sync"

	"github.com/distributed/periph/pad"
	"github.com/distributed/periph/pfr"
)

// GPIO models the pin controller: mode register at 0x00, output data
// register at 0x04, one bit per pin.
type GPIO struct {
	mu     sync.Mutex
	mode   uint32
	output uint32
}

func NewGPIO() *GPIO {
	return &GPIO{}
}

func (g *GPIO) Transact(tx *Transaction) (pfr.Status, uint16) {
	if len(tx.Data) != 4 {
		return pfr.StatusInvalidLength, 0
	}

	offset := tx.Addr & 0xff

	g.mu.Lock()
	defer g.mu.Unlock()

	if tx.Command.DoesRead() {
		switch offset {
		case pad.GPIOMode:
			pfr.PutPayloadU32(tx.Data, g.mode)
		case pad.GPIOOutput:
			pfr.PutPayloadU32(tx.Data, g.output)
		default:
			return pfr.StatusAddressError, 0
		}
	} else if tx.Command.DoesWrite() {
		switch offset {
		case pad.GPIOMode:
			g.mode = pfr.PayloadU32(tx.Data)
		case pad.GPIOOutput:
			g.output = pfr.PayloadU32(tx.Data)
		default:
			return pfr.StatusAddressError, 0
		}
	}

	return pfr.StatusOK, pad.AccessDelayTicks
}

func (g *GPIO) Pin(pin uint8) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.output&(1<<pin) != 0
}

func (g *GPIO) SetPin(pin uint8, state bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if state {
		g.output |= 1 << pin
	} else {
		g.output &^= 1 << pin
	}
}

func (g *GPIO) TogglePin(pin uint8) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.output ^= 1 << pin
}
