package sim

import (
	"io"
	"sync"

	"github.com/distributed/periph/pad"
	"github.com/distributed/periph/pfr"
)

// UART models the serial port: data register at 0x00 (write transmits
// the low byte, read consumes one received byte), status at 0x04 with
// bit 0 indicating a received byte is available.
type UART struct {
	mu sync.Mutex
	w  io.Writer
	rx []byte
}

func NewUART(w io.Writer) *UART {
	return &UART{w: w}
}

func (u *UART) Transact(tx *Transaction) (pfr.Status, uint16) {
	if len(tx.Data) != 4 {
		return pfr.StatusInvalidLength, 0
	}

	offset := tx.Addr & 0xff

	u.mu.Lock()
	defer u.mu.Unlock()

	if tx.Command.DoesRead() {
		switch offset {
		case pad.UARTData:
			var b uint8
			if len(u.rx) > 0 {
				b = u.rx[0]
				u.rx = u.rx[1:]
			}
			pfr.PutPayloadU32(tx.Data, uint32(b))
		case pad.UARTStatus:
			var st uint32
			if len(u.rx) > 0 {
				st |= pad.UARTRxReady
			}
			pfr.PutPayloadU32(tx.Data, st)
		default:
			return pfr.StatusAddressError, 0
		}
	} else if tx.Command.DoesWrite() {
		switch offset {
		case pad.UARTData:
			if u.w != nil {
				u.w.Write([]byte{uint8(pfr.PayloadU32(tx.Data))})
			}
		default:
			// status is read-only for the initiator
			return pfr.StatusAddressError, 0
		}
	}

	return pfr.StatusOK, pad.AccessDelayTicks
}

// Feed queues bytes on the receive side.
func (u *UART) Feed(b []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rx = append(u.rx, b...)
}

// Tx transmits bytes directly, bypassing the register interface. The
// firmware-style runner uses this for whole messages.
func (u *UART) Tx(b []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.w != nil {
		u.w.Write(b)
	}
}
