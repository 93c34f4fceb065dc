// Package prd reads values from the sensor peripheral over a
// commander: trigger the generator, poll the ready bit, fetch the data
// register.
package prd

import (
	"errors"
	"fmt"
	"time"

	"github.com/distributed/periph/pad"
	"github.com/distributed/periph/pcm"
)

const (
	DefaultReadyTimeout = 250 * time.Millisecond
	// pause between status polls so a slow target is not hammered
	pollInterval = 100 * time.Microsecond
)

type Reader interface {
	Trigger() error
	WaitReady(timeout time.Duration) error
	Read() (uint32, error)
	ReadValue(timeout time.Duration) (uint32, error)
	Close() error
}

type sensorReader struct {
	base      uint32
	commander pcm.Commander
	closed    bool
}

func New(commander pcm.Commander, base uint32) Reader {
	return &sensorReader{
		base:      base,
		commander: commander,
	}
}

// Trigger starts the generator by setting the start bit in the control
// register.
func (r *sensorReader) Trigger() error {
	if r.closed {
		return errors.New("sensor reader is already closed")
	}

	return pcm.WriteRegister(r.commander, r.base+pad.CtrlReg, pad.CtrlStart)
}

// WaitReady polls the status register until the ready bit is set or
// the timeout expires.
func (r *sensorReader) WaitReady(timeout time.Duration) error {
	if r.closed {
		return errors.New("sensor reader is already closed")
	}

	if timeout == 0 {
		timeout = DefaultReadyTimeout
	}

	tot := time.Now().Add(timeout)

	for {
		status, err := pcm.ReadRegister(r.commander, r.base+pad.StatusReg)
		if err != nil {
			return err
		}

		if status&pad.StatusReady != 0 {
			return nil
		}

		if time.Now().After(tot) {
			return fmt.Errorf("sensor not ready after %v", timeout)
		}

		time.Sleep(pollInterval)
	}
}

// Read fetches the data register. This consumes the ready bit on the
// target.
func (r *sensorReader) Read() (uint32, error) {
	if r.closed {
		return 0, errors.New("sensor reader is already closed")
	}

	return pcm.ReadRegister(r.commander, r.base+pad.DataReg)
}

// ReadValue runs the full protocol: trigger, wait for the ready bit,
// read the generated value.
func (r *sensorReader) ReadValue(timeout time.Duration) (v uint32, err error) {
	err = r.Trigger()
	if err != nil {
		return
	}

	err = r.WaitReady(timeout)
	if err != nil {
		return
	}

	return r.Read()
}

func (r *sensorReader) Close() error {
	r.closed = true
	return nil
}
