package sim

import (
	"testing"
	"time"

	"github.com/distributed/periph/pad"
	"github.com/distributed/periph/pcm"
	"github.com/distributed/periph/pfr"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := NewMachine(Config{
		Sensor: SensorSection{
			Latency: "1ms",
			Source:  func() uint32 { return 0x1234 },
		},
	}, nil)
	if err != nil {
		t.Fatalf("NewMachine returned %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMachineDecode(t *testing.T) {
	m := newTestMachine(t)

	// every device answers within its window
	for _, addr := range []uint32{
		pad.TimerBase + pad.TimerCtrl,
		pad.UARTBase + pad.UARTStatus,
		pad.SensorBase + pad.CtrlReg,
		pad.GPIOBase + pad.GPIOOutput,
	} {
		st, delay, _ := transact4(m, pfr.RD, addr, 0)
		mustOK(t, st, delay, "device read")
	}

	// unmapped addresses fail without side effects
	for _, addr := range []uint32{0x50000000, pad.PeriphBase + 0x00030000, 0x00000000} {
		st, delay, _ := transact4(m, pfr.RD, addr, 0)
		if st != pfr.StatusAddressError {
			t.Fatalf("read %#08x: expected AddressError, got %v", addr, st)
		}
		if delay != 0 {
			t.Fatalf("read %#08x: failed transaction reported %d delay ticks", addr, delay)
		}
	}

	// device offsets outside the register set are the device's problem
	st, _, _ := transact4(m, pfr.RD, pad.SensorBase+0x40, 0)
	if st != pfr.StatusAddressError {
		t.Fatalf("sensor offset 0x40: expected AddressError, got %v", st)
	}
}

func TestMachineMemory(t *testing.T) {
	m := newTestMachine(t)

	st, delay, _ := transact4(m, pfr.WR, pad.SRAMBase+0x100, 0xdeadbeef)
	mustOK(t, st, delay, "sram write")

	st, delay, v := transact4(m, pfr.RD, pad.SRAMBase+0x100, 0)
	mustOK(t, st, delay, "sram read")
	if v != 0xdeadbeef {
		t.Fatalf("sram readback: expected 0xdeadbeef, got %#08x", v)
	}

	// flash is read-only for the initiator
	st, _, _ = transact4(m, pfr.WR, pad.FlashBase, 1)
	if st != pfr.StatusAddressError {
		t.Fatalf("flash write: expected AddressError, got %v", st)
	}

	m.LoadFlash(0, []byte{0x11, 0x00, 0x02, 0x00})
	st, _, v = transact4(m, pfr.RD, pad.FlashBase, 0)
	if st != pfr.StatusOK {
		t.Fatalf("flash read failed with %v", st)
	}
	if v != pfr.PayloadU32([]byte{0x11, 0x00, 0x02, 0x00}) {
		t.Fatalf("flash readback mangled: %#08x", v)
	}

	// accesses straddling the end of a region do not interact
	st, _, _ = transact4(m, pfr.RD, pad.SRAMBase+pad.SRAMSize-2, 0)
	if st != pfr.StatusAddressError {
		t.Fatalf("straddling read: expected AddressError, got %v", st)
	}
}

func TestMachineLoopback(t *testing.T) {
	m := newTestMachine(t)

	commander := pcm.NewTransactionFramer(NewLoopFramer(m))
	defer commander.Close()

	err := pcm.WriteRegister(commander, pad.SRAMBase+0x40, 0x01020304)
	if err != nil {
		t.Fatalf("WriteRegister returned %v", err)
	}

	v, err := pcm.ReadRegister(commander, pad.SRAMBase+0x40)
	if err != nil {
		t.Fatalf("ReadRegister returned %v", err)
	}
	if v != 0x01020304 {
		t.Fatalf("register roundtrip: expected 0x01020304, got %#08x", v)
	}

	// errors travel back in the trailer
	_, err = pcm.ReadRegister(commander, 0x50000000)
	if !pcm.IsStatusError(err) {
		t.Fatalf("expected a status error for an unmapped read, got %v", err)
	}
	if se := err.(pcm.StatusError); se.Status != pfr.StatusAddressError {
		t.Fatalf("expected AddressError in the status error, got %v", se.Status)
	}

	_, _, err = pcm.ExecuteRead(commander, pad.SensorBase+pad.CtrlReg, 2)
	if !pcm.IsStatusError(err) {
		t.Fatalf("expected a status error for a short read, got %v", err)
	}
	if se := err.(pcm.StatusError); se.Status != pfr.StatusInvalidLength {
		t.Fatalf("expected InvalidLength in the status error, got %v", se.Status)
	}
}

// TestMachineScenario walks the full protocol through the wire path:
// initialize, trigger, wait, harvest.
func TestMachineScenario(t *testing.T) {
	m := newTestMachine(t)

	commander := pcm.NewTransactionFramer(NewLoopFramer(m))
	defer commander.Close()

	base := uint32(pad.SensorBase)

	control, status, data := m.Sensor().Snapshot()
	if control != 0 || status != 0 || data != 0 {
		t.Fatalf("sensor registers not zero after construction")
	}

	err := pcm.WriteRegister(commander, base+pad.CtrlReg, pad.CtrlStart)
	if err != nil {
		t.Fatalf("trigger write returned %v", err)
	}

	tot := time.Now().Add(time.Second)
	for {
		status, err := pcm.ReadRegister(commander, base+pad.StatusReg)
		if err != nil {
			t.Fatalf("status read returned %v", err)
		}
		if status&pad.StatusReady != 0 {
			break
		}
		if time.Now().After(tot) {
			t.Fatalf("ready bit did not appear")
		}
		time.Sleep(100 * time.Microsecond)
	}

	v, err := pcm.ReadRegister(commander, base+pad.DataReg)
	if err != nil {
		t.Fatalf("data read returned %v", err)
	}
	if v != 0x1234 {
		t.Fatalf("expected generated value 0x1234, got %#08x", v)
	}

	status, err = pcm.ReadRegister(commander, base+pad.StatusReg)
	if err != nil {
		t.Fatalf("status read returned %v", err)
	}
	if status&pad.StatusReady != 0 {
		t.Fatalf("ready bit survived the data read")
	}
}
