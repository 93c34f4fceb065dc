package pfr

import (
	"errors"
	"fmt"
)

type Datagram struct {
	DatagramHeader
	Data []byte

	// trailer, filled in by the target
	Status     Status
	DelayTicks uint16

	buffer []byte
}

func (dg *Datagram) Overlay(d []byte) (b []byte, err error) {
	b, err = dg.DatagramHeader.Overlay(d)
	if err != nil {
		return
	}

	if len(b) < int(dg.DataLength()) {
		err = fmt.Errorf("overlaying datagram: need %d bytes of data, have %d", dg.DataLength(), len(b))
		return
	}

	dg.Data = b[:dg.DataLength()]
	b = b[dg.DataLength():]

	if len(b) < datagramTrailerByteLen {
		err = fmt.Errorf("overlaying datagram: need %d bytes for trailer, got %d", datagramTrailerByteLen, len(b))
		return
	}

	// guarded by condition above
	var s16 uint16
	s16, b = getUint16(b)
	dg.Status = Status(s16)
	dg.DelayTicks, b = getUint16(b)

	dg.buffer = d
	return
}

// PointDatagramTo prepares a fresh datagram over d. Call SetDataLen
// before putting payload bytes in.
func PointDatagramTo(d []byte) (dg Datagram, err error) {
	if len(d) < DatagramOverheadLength {
		err = errors.New("buffer too small to contain a datagram")
		return
	}

	dg.buffer = d
	return
}

func (dg *Datagram) SetDataLen(n int) error {
	if n < 0 || n > int(datagramLenMask) {
		return fmt.Errorf("datagram data length %d out of range", n)
	}

	if DatagramOverheadLength+n > len(dg.buffer) {
		return fmt.Errorf("datagram needs %d bytes, buffer has %d", DatagramOverheadLength+n, len(dg.buffer))
	}

	dg.LenWord &^= datagramLenMask
	dg.LenWord |= uint16(n) & datagramLenMask
	dg.Data = dg.buffer[datagramHeaderByteLen : datagramHeaderByteLen+n]
	return nil
}

func (dg *Datagram) Commit() (d []byte, err error) {
	bl := dg.ByteLen()
	if bl > len(dg.buffer) {
		err = fmt.Errorf("datagram too long for buffer, need %d, have %d", bl, len(dg.buffer))
		return
	}

	b := dg.buffer
	b = putUint8(b, uint8(dg.Command))
	b = putUint8(b, dg.Index)
	b = putUint32(b, dg.Addr)
	b = putUint16(b, dg.LenWord)

	b = b[dg.DataLength():]

	b = putUint16(b, uint16(dg.Status))
	putUint16(b, dg.DelayTicks)

	d = dg.buffer[:bl]
	return
}

func (dg *Datagram) ByteLen() int {
	return DatagramOverheadLength + int(dg.DataLength())
}

type DatagramHeader struct {
	Command CommandType
	Index   uint8
	Addr    uint32
	LenWord uint16
}

const (
	datagramHeaderByteLen  = 8
	datagramTrailerByteLen = 4

	DatagramOverheadLength = datagramHeaderByteLen + datagramTrailerByteLen
)

const (
	datagramLenMask  = uint16((1 << 11) - 1)
	lastindicatorBit = 15
)

func (dh *DatagramHeader) Overlay(d []byte) (b []byte, err error) {
	b = d
	if len(b) < datagramHeaderByteLen {
		err = fmt.Errorf("need %d bytes for datagram header, have %d", datagramHeaderByteLen, len(b))
		return
	}

	var c8 uint8
	c8, b = getUint8(b)
	dh.Command = CommandType(c8)
	dh.Index, b = getUint8(b)
	dh.Addr, b = getUint32(b)
	dh.LenWord, b = getUint16(b)

	return
}

func (dh *DatagramHeader) DataLength() uint16 {
	return dh.LenWord & datagramLenMask
}

// Offset returns the register offset within the addressed device's
// 256 byte window.
func (dh *DatagramHeader) Offset() uint32 {
	return dh.Addr & 0xff
}

func (dh *DatagramHeader) Last() bool {
	return (dh.LenWord & (1 << lastindicatorBit)) == 0
}

func (dh *DatagramHeader) SetLast(last bool) {
	if last {
		dh.LenWord &^= 1 << lastindicatorBit
	} else {
		dh.LenWord |= 1 << lastindicatorBit
	}
}

type CommandType uint8

func (ct CommandType) String() string {
	if cts, ok := commandTypeName[ct]; ok {
		return cts
	}
	return fmt.Sprintf("CommandType(%d)", uint(ct))
}

const (
	NOP CommandType = 0
	RD  CommandType = 1
	WR  CommandType = 2
)

var commandTypeName = map[CommandType]string{
	NOP: "NOP",
	RD:  "RD",
	WR:  "WR",
}

func (ct CommandType) DoesRead() bool {
	return ct == RD
}

func (ct CommandType) DoesWrite() bool {
	return ct == WR
}
