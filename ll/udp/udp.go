package udp

import (
	"net"
	"time"

	"github.com/distributed/periph/pfr"
	"golang.org/x/net/ipv4"
)

const (
	PeriphUDPPort = 0x88b6
)

const (
	udpReceiveBuflen = 1500
	maxDatagramsLen  = 1470
)

// UDPFramer is the initiator side of the transport: frames go out to
// the multicast group, responses are collected for one cycle time.
type UDPFramer struct {
	oframes []*pfr.Frame

	sock      *net.UDPConn
	mcsock    *ipv4.PacketConn
	group     net.IP
	iface     *net.Interface
	laddr     *net.UDPAddr
	groupaddr *net.UDPAddr
	cycletime time.Duration
}

func NewUDPFramer(iface *net.Interface, group net.IP, cycletime time.Duration) (f *UDPFramer, err error) {
	f = &UDPFramer{}
	f.group = group
	f.iface = iface
	f.cycletime = cycletime

	f.laddr = &net.UDPAddr{IP: net.IPv4(0, 0, 0, 0), Port: PeriphUDPPort}
	f.groupaddr = &net.UDPAddr{IP: f.group, Port: PeriphUDPPort}

	f.sock, err = net.ListenUDP("udp4", f.laddr)
	if err != nil {
		return
	}

	f.mcsock = ipv4.NewPacketConn(f.sock)

	err = f.mcsock.SetMulticastInterface(f.iface)
	if err != nil {
		return
	}

	err = f.mcsock.JoinGroup(iface, &net.UDPAddr{IP: group})
	if err != nil {
		return
	}

	err = f.mcsock.SetMulticastLoopback(false)
	if err != nil {
		return
	}

	return
}

func (f *UDPFramer) New(maxdatalen int) (fr *pfr.Frame, err error) {
	var vframe pfr.Frame
	buf := make([]byte, maxDatagramsLen+pfr.FrameOverheadLen)
	vframe, err = pfr.PointFrameTo(buf)
	if err != nil {
		return
	}

	vframe.Header.SetType(1)

	fr = &vframe
	f.oframes = append(f.oframes, fr)
	return
}

func (f *UDPFramer) Cycle() (iframes []*pfr.Frame, err error) {
	defer func() {
		f.oframes = nil
	}()

	var obytes []byte
	for _, oframe := range f.oframes {
		obytes, err = oframe.Commit()
		if err != nil {
			return
		}

		_, err = f.sock.WriteTo(obytes, f.groupaddr)
		err = errorMask(err)
		if err != nil {
			return
		}
	}

	err = f.sock.SetDeadline(time.Now().Add(f.cycletime))
	if err != nil {
		return
	}

	rbuf := make([]byte, udpReceiveBuflen)
	for {
		var n int
		n, _, err = f.sock.ReadFromUDP(rbuf)
		if isTimeout(err) {
			err = nil
			break
		}
		if err != nil {
			return
		}

		var fr pfr.Frame
		_, err = fr.Overlay(rbuf[0:n])
		if err != nil {
			// discard malformed frames
			err = nil
			continue
		}

		iframes = append(iframes, &fr)
		rbuf = make([]byte, udpReceiveBuflen)
	}

	return
}

func (f *UDPFramer) Close() error {
	if f.mcsock != nil {
		f.mcsock.Close()
	}
	if f.sock != nil {
		return f.sock.Close()
	}
	return nil
}

type timeouter interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	if t, ok := err.(timeouter); ok {
		return t.Timeout()
	}
	return false
}
