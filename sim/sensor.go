package sim

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/distributed/periph/pad"
	"github.com/distributed/periph/pfr"
	"gopkg.in/tomb.v2"
)

// RetriggerPolicy decides what a control-register start does while the
// generator is already producing a value.
type RetriggerPolicy int

const (
	// RetriggerCoalesce queues at most one pending start; further
	// starts before the pending one is consumed are folded into it.
	RetriggerCoalesce RetriggerPolicy = iota
	// RetriggerIgnore drops starts while the generator is busy.
	RetriggerIgnore
)

var retriggerPolicyName = map[RetriggerPolicy]string{
	RetriggerCoalesce: "coalesce",
	RetriggerIgnore:   "ignore",
}

func (p RetriggerPolicy) String() string {
	if pn, ok := retriggerPolicyName[p]; ok {
		return pn
	}
	return fmt.Sprintf("RetriggerPolicy(%d)", int(p))
}

const (
	DefaultSensorLatency = 100 * time.Microsecond
)

// SensorConfig holds the injectable knobs of the sensor. The zero
// value yields the reference behavior: 100us latency, pseudo-random
// 16 bit values, coalescing retrigger.
type SensorConfig struct {
	// Latency is the simulated response time between a start and the
	// generated value becoming visible.
	Latency time.Duration
	// Source produces the generated values.
	Source func() uint32
	Policy RetriggerPolicy
}

func (c *SensorConfig) applyDefaults() {
	if c.Latency == 0 {
		c.Latency = DefaultSensorLatency
	}
	if c.Source == nil {
		c.Source = func() uint32 { return rand.Uint32() & 0xffff }
	}
}

// Sensor is a memory-mapped peripheral with three registers in its
// 256 byte window: control at 0x00, status at 0x04, data at 0x08.
// Writing control with bit 0 set starts the generator, which deposits
// a fresh value into data after the configured latency and raises the
// ready bit in status. Reading data consumes the ready bit.
//
// Transact never blocks; the generator runs on its own goroutine.
// Register access is serialized between the two.
type Sensor struct {
	mu      sync.Mutex
	control uint32
	status  uint32
	data    uint32
	busy    bool

	latency time.Duration
	source  func() uint32
	policy  RetriggerPolicy

	trigger chan struct{}
	tomb    tomb.Tomb
}

func NewSensor(cfg SensorConfig) *Sensor {
	cfg.applyDefaults()

	s := &Sensor{
		latency: cfg.Latency,
		source:  cfg.Source,
		policy:  cfg.Policy,
		trigger: make(chan struct{}, 1),
	}

	s.tomb.Go(s.generate)

	return s
}

func (s *Sensor) Transact(tx *Transaction) (pfr.Status, uint16) {
	if len(tx.Data) != 4 {
		return pfr.StatusInvalidLength, 0
	}

	offset := tx.Addr & 0xff

	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.Command.DoesRead() {
		switch offset {
		case pad.CtrlReg:
			pfr.PutPayloadU32(tx.Data, s.control)
		case pad.StatusReg:
			pfr.PutPayloadU32(tx.Data, s.status)
		case pad.DataReg:
			pfr.PutPayloadU32(tx.Data, s.data)
			s.status &^= pad.StatusReady
		default:
			return pfr.StatusAddressError, 0
		}
	} else if tx.Command.DoesWrite() {
		switch offset {
		case pad.CtrlReg:
			s.control = pfr.PayloadU32(tx.Data)
			if s.control&pad.CtrlStart != 0 {
				s.signal()
			}
		case pad.DataReg:
			// direct writes land without touching the ready bit
			s.data = pfr.PayloadU32(tx.Data)
		default:
			return pfr.StatusAddressError, 0
		}
	}

	return pfr.StatusOK, pad.AccessDelayTicks
}

// signal is called with mu held.
func (s *Sensor) signal() {
	if s.policy == RetriggerIgnore && s.busy {
		return
	}

	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Sensor) generate() error {
	for {
		select {
		case <-s.trigger:
		case <-s.tomb.Dying():
			return nil
		}

		s.mu.Lock()
		s.busy = true
		s.mu.Unlock()

		select {
		case <-time.After(s.latency):
		case <-s.tomb.Dying():
			return nil
		}

		s.mu.Lock()
		s.data = s.source()
		s.status |= pad.StatusReady
		s.busy = false
		s.mu.Unlock()
	}
}

// Snapshot returns the current register values.
func (s *Sensor) Snapshot() (control, status, data uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.control, s.status, s.data
}

// Reset zeroes the registers. A start pending at the generator is not
// withdrawn.
func (s *Sensor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.control = 0
	s.status = 0
	s.data = 0
}

func (s *Sensor) Close() error {
	s.tomb.Kill(nil)
	return s.tomb.Wait()
}
