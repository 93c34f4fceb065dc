package sim

import (
	"github.com/distributed/periph/pfr"
)

// Transaction is one read or write against the machine. Addr is the
// full bus address; devices decode their register offset from it.
// Data is read from on writes and filled in on reads.
type Transaction struct {
	Command pfr.CommandType
	Addr    uint32
	Data    []byte
}

type Device interface {
	Transact(tx *Transaction) (pfr.Status, uint16)
}

type Mapping interface {
	Start() uint32
	Length() uint32
	Device() Device
}

type DevMapping struct {
	StartAddr   uint32
	LengthField uint32
	DeviceField Device
}

func (d DevMapping) Start() uint32  { return d.StartAddr }
func (d DevMapping) Length() uint32 { return d.LengthField }
func (d DevMapping) Device() Device { return d.DeviceField }
