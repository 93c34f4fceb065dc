package sim

import (
	"github.com/distributed/periph/pad"
	"github.com/distributed/periph/pfr"
	"github.com/distributed/periph/proto"
)

const (
	DefaultHeartbeatPeriod = 1000
	commandQueueSize       = 16
)

// System drives the machine the way the firmware main loop does:
// commands come in over a queue, a heartbeat toggles the LED pin every
// heartbeat period of timer ticks. Time advances only through Step, so
// tests control it completely.
type System struct {
	machine *Machine

	cmds       chan proto.Command
	lastBeat   uint32
	beatPeriod uint32
}

func NewSystem(m *Machine) *System {
	s := &System{
		machine:    m,
		cmds:       make(chan proto.Command, commandQueueSize),
		beatPeriod: DefaultHeartbeatPeriod,
	}

	s.init()

	return s
}

// init performs the register writes the firmware does on boot: enable
// the timer, put the LED pin into output mode.
func (s *System) init() {
	s.writeReg(s.machine.Timer(), pad.TimerCtrl, pad.TimerEnable)
	s.writeReg(s.machine.GPIO(), pad.GPIOMode, 1<<pad.LEDPin)
}

func (s *System) writeReg(dev Device, offset uint32, v uint32) {
	data := make([]byte, 4)
	pfr.PutPayloadU32(data, v)
	dev.Transact(&Transaction{Command: pfr.WR, Addr: offset, Data: data})
}

// Commands is the queue the initiator side enqueues into. Enqueueing
// blocks once the queue is full.
func (s *System) Commands() chan<- proto.Command {
	return s.cmds
}

// Step advances simulated time and runs one iteration of the firmware
// loop: at most one queued command, then the heartbeat.
func (s *System) Step(ticks uint32) {
	select {
	case cmd := <-s.cmds:
		s.processCommand(cmd)
	default:
	}

	s.machine.Timer().Advance(ticks)

	now := s.machine.Timer().Counter()
	if now-s.lastBeat >= s.beatPeriod {
		s.machine.GPIO().TogglePin(pad.LEDPin)
		s.lastBeat = now
	}
}

func (s *System) processCommand(cmd proto.Command) {
	switch cmd := cmd.(type) {
	case proto.SetGpio:
		s.machine.GPIO().SetPin(cmd.Pin, cmd.State)
	case proto.SendMessage:
		s.machine.UART().Tx(cmd.Data)
	case proto.Reset:
		s.machine.Reset()
	}
}
