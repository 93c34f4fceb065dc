package sim

import (
	"io"

	"github.com/distributed/periph/pad"
	"github.com/distributed/periph/pfr"
)

// Machine is the simulated board: flash and SRAM regions plus the
// memory-mapped devices, decoded over one address space.
type Machine struct {
	flash []byte
	sram  []byte

	mappings []Mapping

	sensor *Sensor
	uart   *UART
	gpio   *GPIO
	timer  *Timer
}

// NewMachine builds a machine from cfg. UART transmit bytes go to
// uartOut, which may be nil.
func NewMachine(cfg Config, uartOut io.Writer) (*Machine, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	scfg, err := cfg.Sensor.sensorConfig()
	if err != nil {
		return nil, err
	}

	m := &Machine{
		flash: make([]byte, cfg.FlashSize),
		sram:  make([]byte, cfg.SRAMSize),
	}

	m.sensor = NewSensor(scfg)
	m.uart = NewUART(uartOut)
	m.gpio = NewGPIO()
	m.timer = NewTimer()

	m.mappings = append(m.mappings, DevMapping{cfg.Timer.Base, pad.DeviceWindow, m.timer})
	m.mappings = append(m.mappings, DevMapping{cfg.UART.Base, pad.DeviceWindow, m.uart})
	m.mappings = append(m.mappings, DevMapping{cfg.Sensor.Base, pad.DeviceWindow, m.sensor})
	m.mappings = append(m.mappings, DevMapping{cfg.GPIO.Base, pad.DeviceWindow, m.gpio})

	return m, nil
}

func (m *Machine) Sensor() *Sensor { return m.sensor }
func (m *Machine) UART() *UART     { return m.uart }
func (m *Machine) GPIO() *GPIO     { return m.gpio }
func (m *Machine) Timer() *Timer   { return m.timer }

// LoadFlash copies an image into flash at the given offset.
func (m *Machine) LoadFlash(offset uint32, image []byte) {
	copy(m.flash[offset:], image)
}

func (m *Machine) Transact(tx *Transaction) (pfr.Status, uint16) {
	if mp := m.addrToMapping(tx.Addr); mp != nil {
		return mp.Device().Transact(tx)
	}

	if tx.Addr >= pad.FlashBase && tx.Addr < pad.FlashBase+uint32(len(m.flash)) {
		return m.memTransact(tx, m.flash, pad.FlashBase, true)
	}
	if tx.Addr >= pad.SRAMBase && tx.Addr < pad.SRAMBase+uint32(len(m.sram)) {
		return m.memTransact(tx, m.sram, pad.SRAMBase, false)
	}

	return pfr.StatusAddressError, 0
}

func (m *Machine) memTransact(tx *Transaction, mem []byte, base uint32, readonly bool) (pfr.Status, uint16) {
	if len(tx.Data) != 4 {
		return pfr.StatusInvalidLength, 0
	}

	offset := tx.Addr - base
	if int(offset)+4 > len(mem) {
		return pfr.StatusAddressError, 0
	}

	if tx.Command.DoesRead() {
		copy(tx.Data, mem[offset:offset+4])
	} else if tx.Command.DoesWrite() {
		if readonly {
			return pfr.StatusAddressError, 0
		}
		copy(mem[offset:offset+4], tx.Data)
	}

	return pfr.StatusOK, pad.AccessDelayTicks
}

func (m *Machine) addrToMapping(addr uint32) Mapping {
	for _, mp := range m.mappings {
		if addr >= mp.Start() && addr < (mp.Start()+mp.Length()) {
			return mp
		}
	}

	return nil
}

// Reset clears SRAM and the sensor registers. Flash contents survive.
func (m *Machine) Reset() {
	for i := range m.sram {
		m.sram[i] = 0
	}
	m.sensor.Reset()
}

func (m *Machine) Close() error {
	return m.sensor.Close()
}

const (
	maxDatagramsLen = 1470
)

// LoopFramer cycles frames against a machine in-process. It satisfies
// the commander layer's Framer interface, so the full wire path can be
// exercised without a transport.
type LoopFramer struct {
	oframes []*pfr.Frame

	Machine *Machine
}

func NewLoopFramer(m *Machine) *LoopFramer {
	return &LoopFramer{Machine: m}
}

func (b *LoopFramer) New(maxdatalen int) (fr *pfr.Frame, err error) {
	var vframe pfr.Frame
	buf := make([]byte, maxDatagramsLen+pfr.FrameOverheadLen)
	vframe, err = pfr.PointFrameTo(buf)
	if err != nil {
		return
	}

	vframe.Header.SetType(1)

	fr = &vframe
	b.oframes = append(b.oframes, fr)
	return
}

func (b *LoopFramer) Cycle() (iframes []*pfr.Frame, err error) {
	defer func() {
		b.oframes = nil
	}()

	for _, oframe := range b.oframes {
		var obytes []byte

		obytes, err = oframe.Commit()
		if err != nil {
			return
		}

		coframe := new(pfr.Frame)
		cbytes := make([]byte, len(obytes))
		copy(cbytes, obytes)
		_, err = coframe.Overlay(cbytes)
		if err != nil {
			return
		}

		for _, dg := range coframe.Datagrams {
			tx := Transaction{
				Command: dg.Command,
				Addr:    dg.Addr,
				Data:    dg.Data,
			}
			dg.Status, dg.DelayTicks = b.Machine.Transact(&tx)
		}

		iframes = append(iframes, coframe)
	}

	return
}

func (b *LoopFramer) Close() error { return nil }
