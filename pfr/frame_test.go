package pfr

import (
	"testing"
)

func TestPointFrameTo(t *testing.T) {
	{
		tlb := make([]byte, 1)
		_, err := PointFrameTo(tlb)
		if err == nil {
			t.Fatalf("PointFrameTo did not fail on buffer too small to contain a frame header")
		}
	}

	buf := make([]byte, 64)
	buf[0] = 0xff
	buf[1] = 0xff
	f, err := PointFrameTo(buf)
	if err != nil {
		t.Fatalf("PointFrameTo should have worked, returned err %v", err)
	}

	if f.Header.Word != 0 {
		t.Fatalf("PointFrameTo did not clear the header word, got %#04x", f.Header.Word)
	}
}

func TestNewDatagramPacking(t *testing.T) {
	buf := make([]byte, FrameOverheadLen+2*DatagramOverheadLength+8)
	f, err := PointFrameTo(buf)
	if err != nil {
		t.Fatalf("PointFrameTo returned err %v", err)
	}

	dg, err := f.NewDatagram(4)
	if err != nil {
		t.Fatalf("first NewDatagram should fit, err %v", err)
	}
	if len(dg.Data) != 4 {
		t.Fatalf("expected 4 data bytes, got %d", len(dg.Data))
	}

	_, err = f.NewDatagram(4)
	if err != nil {
		t.Fatalf("second NewDatagram should fit, err %v", err)
	}

	// buffer is now exactly full
	_, err = f.NewDatagram(0)
	if err == nil {
		t.Fatalf("NewDatagram on a full frame did not yield an error")
	}
}

func TestFrameRoundtrip(t *testing.T) {
	buf := make([]byte, 128)
	f, err := PointFrameTo(buf)
	if err != nil {
		t.Fatalf("PointFrameTo returned err %v", err)
	}
	f.Header.SetType(1)

	dg0, err := f.NewDatagram(4)
	if err != nil {
		t.Fatalf("NewDatagram returned err %v", err)
	}
	dg0.Command = WR
	dg0.Index = 7
	dg0.Addr = 0x40010000
	dg0.SetLast(false)
	PutPayloadU32(dg0.Data, 0x00000001)

	dg1, err := f.NewDatagram(4)
	if err != nil {
		t.Fatalf("NewDatagram returned err %v", err)
	}
	dg1.Command = RD
	dg1.Index = 7
	dg1.Addr = 0x40010008
	dg1.SetLast(true)
	dg1.Status = StatusOK
	dg1.DelayTicks = 10

	wire, err := f.Commit()
	if err != nil {
		t.Fatalf("Commit returned err %v", err)
	}

	explen := FrameOverheadLen + 2*(DatagramOverheadLength+4)
	if len(wire) != explen {
		t.Fatalf("expected %d wire bytes, got %d", explen, len(wire))
	}

	var g Frame
	_, err = g.Overlay(wire)
	if err != nil {
		t.Fatalf("Overlay returned err %v", err)
	}

	if g.Header.Type() != 1 {
		t.Fatalf("expected frame type 1, got %d", g.Header.Type())
	}

	if len(g.Datagrams) != 2 {
		t.Fatalf("expected 2 datagrams, got %d", len(g.Datagrams))
	}

	if g.Datagrams[0].Last() {
		t.Fatalf("first datagram must not be marked last")
	}
	if !g.Datagrams[1].Last() {
		t.Fatalf("second datagram must be marked last")
	}

	if g.Datagrams[0].Command != WR || g.Datagrams[0].Addr != 0x40010000 {
		t.Fatalf("first datagram header mangled: %v %#08x", g.Datagrams[0].Command, g.Datagrams[0].Addr)
	}
	if v := PayloadU32(g.Datagrams[0].Data); v != 0x00000001 {
		t.Fatalf("first datagram payload mangled: %#08x", v)
	}

	if g.Datagrams[1].Status != StatusOK || g.Datagrams[1].DelayTicks != 10 {
		t.Fatalf("second datagram trailer mangled: %v %d", g.Datagrams[1].Status, g.Datagrams[1].DelayTicks)
	}
}

func TestDatagramTruncation(t *testing.T) {
	buf := make([]byte, 64)
	f, err := PointFrameTo(buf)
	if err != nil {
		t.Fatalf("PointFrameTo returned err %v", err)
	}

	dg, err := f.NewDatagram(4)
	if err != nil {
		t.Fatalf("NewDatagram returned err %v", err)
	}
	dg.Command = RD
	dg.SetLast(true)

	wire, err := f.Commit()
	if err != nil {
		t.Fatalf("Commit returned err %v", err)
	}

	var g Frame
	_, err = g.Overlay(wire[:len(wire)-1])
	if err == nil {
		t.Fatalf("overlaying a truncated frame did not yield an error")
	}
}

func TestStatusString(t *testing.T) {
	if StatusInvalidLength.String() != "InvalidLength" {
		t.Fatalf("unexpected status name %q", StatusInvalidLength.String())
	}
	if !StatusAddressError.IsError() {
		t.Fatalf("AddressError should report as an error")
	}
	if StatusOK.IsError() {
		t.Fatalf("OK must not report as an error")
	}
}
