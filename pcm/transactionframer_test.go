package pcm

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/distributed/periph/pfr"
)

type expectedDgram struct {
	datalen int
	index   uint8
	last    bool
}

func TestTransactionFramerScheduling(t *testing.T) {
	type schedulingPair struct {
		lens     []int
		expected [][]expectedDgram
	}

	pairs := []schedulingPair{
		{[]int{6}, [][]expectedDgram{
			{{6, 0, true}}}},
		{[]int{22, TransactionFramerMaxDatagramsLen - pfr.DatagramOverheadLength}, [][]expectedDgram{
			{{22, 0, true}},
			{{TransactionFramerMaxDatagramsLen - pfr.DatagramOverheadLength, 1, true}}}},
		{[]int{128, 96}, [][]expectedDgram{
			{{128, 0, false}, {96, 0, true}}}},
		{[]int{140, 65, 1400}, [][]expectedDgram{
			{{140, 0, false}, {65, 0, true}},
			{{1400, 1, true}}}},
	}

	for i, pair := range pairs {
		f := &oneshotFramer{}
		tf := NewTransactionFramer(f)

		for _, l := range pair.lens {
			_, err := tf.New(l)
			if err != nil {
				t.Fatalf("case %d: did not expect New() to fail. err is %v", i, err)
			}
		}

		err := tf.Cycle()
		if err != nil {
			t.Fatalf("did not expect Cycle() to fail. err is %v", err)
		}

		if len(f.frames) != len(pair.expected) {
			t.Fatalf("case %d: expected %d frames, got %d", i, len(pair.expected), len(f.frames))
		}

		for j, frame := range f.frames {
			dgrams := pair.expected[j]
			if len(frame.Datagrams) != len(dgrams) {
				t.Fatalf("case %d, frame %d: expected %d datagrams, got %d", i, j, len(dgrams), len(frame.Datagrams))
			}

			for k, dgram := range frame.Datagrams {
				exp := dgrams[k]

				if int(dgram.DataLength()) != exp.datalen ||
					dgram.Index != exp.index ||
					dgram.Last() != exp.last {
					spew.Dump(exp)
					spew.Dump(dgram.DatagramHeader)
					t.Fatalf("case %d, frame %d, dgram %d: expected %+v, got len %d index %d last %v",
						i, j, k, exp, dgram.DataLength(), dgram.Index, dgram.Last())
				}
			}
		}

	}
}

func TestTransactionFramerMatching(t *testing.T) {
	f := &echoFramer{}
	tf := NewTransactionFramer(f)

	et, err := tf.New(4)
	if err != nil {
		t.Fatalf("did not expect New() to fail. err is %v", err)
	}
	et.DatagramOut.Command = pfr.RD
	et.DatagramOut.Addr = 0x40010004

	err = tf.Cycle()
	if err != nil {
		t.Fatalf("did not expect Cycle() to fail. err is %v", err)
	}

	if !et.Arrived || !et.Overlayed {
		t.Fatalf("transaction was not matched to the echoed frame: arrived %v, overlayed %v", et.Arrived, et.Overlayed)
	}

	if et.DatagramIn.Status != pfr.StatusOK {
		t.Fatalf("expected echoed status OK, got %v", et.DatagramIn.Status)
	}
	if et.DatagramIn.DelayTicks != 10 {
		t.Fatalf("expected echoed delay 10, got %d", et.DatagramIn.DelayTicks)
	}

	if err := ChooseDefaultError(et); err != nil {
		t.Fatalf("ChooseDefaultError on a matched transaction returned %v", err)
	}
}

func TestChooseStatusError(t *testing.T) {
	et := &ExecutingTransaction{
		DatagramOut: &pfr.Datagram{DatagramHeader: pfr.DatagramHeader{Command: pfr.WR, Addr: 0x40010010}},
		DatagramIn:  &pfr.Datagram{Status: pfr.StatusAddressError},
	}

	err := ChooseStatusError(et)
	if !IsStatusError(err) {
		t.Fatalf("expected a status error, got %v", err)
	}
	se := err.(StatusError)
	if se.Status != pfr.StatusAddressError || se.Addr != 0x40010010 {
		t.Fatalf("status error carries wrong fields: %+v", se)
	}

	et.DatagramIn.Status = pfr.StatusOK
	if err := ChooseStatusError(et); err != nil {
		t.Fatalf("ChooseStatusError on OK returned %v", err)
	}
}

type oneshotFramer struct {
	frames []*pfr.Frame
	cycled bool
}

func (f *oneshotFramer) New(maxdatalen int) (*pfr.Frame, error) {
	b := make([]byte, maxdatalen+pfr.FrameOverheadLen)
	var frame pfr.Frame
	var err error
	frame, err = pfr.PointFrameTo(b)
	if err != nil {
		return nil, err
	}

	f.frames = append(f.frames, &frame)
	return &frame, nil
}

func (f *oneshotFramer) Cycle() ([]*pfr.Frame, error) {
	if !f.cycled {
		return f.frames, nil
	}
	panic("oneshotFramer was already cycled")
}

// echoFramer answers every datagram with status OK and a delay of 10
// ticks, the way a responding target would.
type echoFramer struct {
	frames []*pfr.Frame
}

func (f *echoFramer) New(maxdatalen int) (*pfr.Frame, error) {
	b := make([]byte, maxdatalen+pfr.FrameOverheadLen)
	frame, err := pfr.PointFrameTo(b)
	if err != nil {
		return nil, err
	}

	f.frames = append(f.frames, &frame)
	return &frame, nil
}

func (f *echoFramer) Cycle() (iframes []*pfr.Frame, err error) {
	defer func() {
		f.frames = nil
	}()

	for _, oframe := range f.frames {
		var obytes []byte
		obytes, err = oframe.Commit()
		if err != nil {
			return
		}

		cbytes := make([]byte, len(obytes))
		copy(cbytes, obytes)

		inframe := new(pfr.Frame)
		_, err = inframe.Overlay(cbytes)
		if err != nil {
			return
		}

		for _, dg := range inframe.Datagrams {
			dg.Status = pfr.StatusOK
			dg.DelayTicks = 10
		}

		iframes = append(iframes, inframe)
	}

	return
}
