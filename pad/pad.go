// Package pad holds the address map of the simulated machine. Device
// bases follow the reference board layout; register offsets are
// relative to the owning device's window.
package pad

const (
	FlashBase = 0x08000000
	FlashSize = 256 * 1024
	SRAMBase  = 0x20000000
	SRAMSize  = 64 * 1024

	PeriphBase = 0x40000000

	TimerBase  = 0x40000000
	UARTBase   = 0x40004400
	SensorBase = 0x40010000
	GPIOBase   = 0x40020000

	// every device decodes one 256 byte window
	DeviceWindow = 0x100
)

// sensor peripheral registers
const (
	CtrlReg   = 0x00
	StatusReg = 0x04
	DataReg   = 0x08

	CtrlStart   = 0x01 // write 1 to trigger data generation
	StatusReady = 0x01 // set by the generator, cleared by a data read
)

// uart registers
const (
	UARTData   = 0x00
	UARTStatus = 0x04

	UARTRxReady = 0x01
)

// gpio registers
const (
	GPIOMode   = 0x00
	GPIOOutput = 0x04

	LEDPin = 13
)

// timer registers
const (
	TimerCtrl    = 0x00
	TimerCounter = 0x04

	TimerEnable = 0x01
)

const (
	// advisory cost reported for every successful register access
	AccessDelayTicks = 10
)
