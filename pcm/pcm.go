package pcm

import (
	"errors"
	"fmt"
	"time"

	"github.com/distributed/periph/pfr"
)

type Commander interface {
	New(datalen int) (*ExecutingTransaction, error)
	Cycle() error
	Close() error
}

type ExecutingTransaction struct {
	DatagramOut *pfr.Datagram

	DatagramIn *pfr.Datagram
	Arrived    bool
	Overlayed  bool
	Error      error
}

var NoFrame = errors.New("frame did not arrive")
var NoOverlay = errors.New("failed to overlay")

type StatusError struct {
	Command pfr.CommandType
	Addr    uint32
	Status  pfr.Status
}

func (e StatusError) Error() string {
	return fmt.Sprintf("transaction error %v on %v %#08x", e.Status,
		e.Command,
		e.Addr)
}

func ChooseDefaultError(et *ExecutingTransaction) error {
	if !et.Arrived {
		return NoFrame
	}

	if !et.Overlayed {
		return NoOverlay
	}

	return et.Error
}

func IsNoFrame(err error) bool {
	return err == NoFrame
}

func IsStatusError(err error) bool {
	_, ok := err.(StatusError)
	return ok
}

func ChooseStatusError(et *ExecutingTransaction) error {
	if s := et.DatagramIn.Status; s.IsError() {
		return StatusError{
			et.DatagramOut.Command,
			et.DatagramOut.Addr,
			s,
		}
	}

	return nil
}

const (
	DefaultFramelossTries = 3
)

type Options struct {
	FramelossTries int
	RetryDeadline  time.Time
}

func (o Options) getFramelossTries() int {
	if o.FramelossTries == 0 {
		return DefaultFramelossTries
	}
	return o.FramelossTries
}
func (o Options) getRetryDeadline() time.Time { return o.RetryDeadline }

// ExecuteRead runs one read transaction to completion, retrying frame
// loss. The returned delay is the advisory timing cost reported by the
// target, not time spent in this call.
func ExecuteRead(c Commander, addr uint32, n int) (d []byte, delay uint16, err error) {
	return ExecuteReadOptions(c, addr, n, Options{})
}

func ExecuteReadOptions(c Commander, addr uint32, n int, opts Options) (d []byte, delay uint16, err error) {
	nFrameLoss := 0

	for {
		var et *ExecutingTransaction
		et, err = c.New(n)
		if err != nil {
			return
		}

		dgo := et.DatagramOut
		err = dgo.SetDataLen(n)
		if err != nil {
			return
		}

		dgo.Command = pfr.RD
		dgo.Addr = addr

		err = c.Cycle()
		if err != nil {
			return
		}

		err = ChooseDefaultError(et)
		if err != nil {
			if IsNoFrame(err) {
				nFrameLoss++
				if nFrameLoss < opts.getFramelossTries() {
					continue
				}
			}
			return
		}

		err = ChooseStatusError(et)
		if err != nil {
			now := time.Now()
			if now.Before(opts.getRetryDeadline()) {
				continue
			}
		}

		d = et.DatagramIn.Data
		delay = et.DatagramIn.DelayTicks
		return
	}
}

func ExecuteWrite(c Commander, addr uint32, w []byte) (delay uint16, err error) {
	return ExecuteWriteOptions(c, addr, w, Options{})
}

func ExecuteWriteOptions(c Commander, addr uint32, w []byte, opts Options) (delay uint16, err error) {
	nFrameLoss := 0

	for {
		var et *ExecutingTransaction
		et, err = c.New(len(w))
		if err != nil {
			return
		}

		dgo := et.DatagramOut
		err = dgo.SetDataLen(len(w))
		if err != nil {
			return
		}
		copy(dgo.Data, w)

		dgo.Command = pfr.WR
		dgo.Addr = addr

		err = c.Cycle()
		if err != nil {
			return
		}

		err = ChooseDefaultError(et)
		if err != nil {
			if IsNoFrame(err) {
				nFrameLoss++
				if nFrameLoss < opts.getFramelossTries() {
					continue
				}
			}
			return
		}

		err = ChooseStatusError(et)
		if err != nil {
			now := time.Now()
			if now.Before(opts.getRetryDeadline()) {
				continue
			}
		}

		delay = et.DatagramIn.DelayTicks
		return
	}
}

// ReadRegister reads one 32 bit register.
func ReadRegister(c Commander, addr uint32) (v uint32, err error) {
	d, _, err := ExecuteRead(c, addr, 4)
	if err != nil {
		return
	}

	v = pfr.PayloadU32(d)
	return
}

// WriteRegister writes one 32 bit register.
func WriteRegister(c Commander, addr uint32, v uint32) (err error) {
	w := make([]byte, 4)
	pfr.PutPayloadU32(w, v)
	_, err = ExecuteWrite(c, addr, w)
	return
}
