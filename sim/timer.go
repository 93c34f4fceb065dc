package sim

import (
	"sync"

	"github.com/distributed/periph/pad"
	"github.com/distributed/periph/pfr"
)

// Timer models the tick counter: control register at 0x00 (bit 0
// enables counting), counter at 0x04. Time is advanced explicitly by
// the owner so tests stay deterministic.
type Timer struct {
	mu      sync.Mutex
	control uint32
	counter uint32
}

func NewTimer() *Timer {
	return &Timer{}
}

func (t *Timer) Transact(tx *Transaction) (pfr.Status, uint16) {
	if len(tx.Data) != 4 {
		return pfr.StatusInvalidLength, 0
	}

	offset := tx.Addr & 0xff

	t.mu.Lock()
	defer t.mu.Unlock()

	if tx.Command.DoesRead() {
		switch offset {
		case pad.TimerCtrl:
			pfr.PutPayloadU32(tx.Data, t.control)
		case pad.TimerCounter:
			pfr.PutPayloadU32(tx.Data, t.counter)
		default:
			return pfr.StatusAddressError, 0
		}
	} else if tx.Command.DoesWrite() {
		switch offset {
		case pad.TimerCtrl:
			t.control = pfr.PayloadU32(tx.Data)
		case pad.TimerCounter:
			t.counter = pfr.PayloadU32(tx.Data)
		default:
			return pfr.StatusAddressError, 0
		}
	}

	return pfr.StatusOK, pad.AccessDelayTicks
}

// Advance moves simulated time forward. Ticks only accumulate while
// the enable bit is set.
func (t *Timer) Advance(ticks uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.control&pad.TimerEnable != 0 {
		t.counter += ticks
	}
}

func (t *Timer) Counter() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counter
}
