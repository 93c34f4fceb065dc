package udp

import (
	"net"

	"github.com/distributed/periph/pfr"
	"github.com/distributed/periph/sim"
	"golang.org/x/net/ipv4"
	"gopkg.in/tomb.v2"
)

// Transactor is the machine side the responder applies datagrams to.
// Implemented by sim.Machine.
type Transactor interface {
	Transact(tx *sim.Transaction) (pfr.Status, uint16)
}

// UDPResponder is the target side of the transport: it joins the
// multicast group, answers every frame in place and sends it back to
// the initiator.
type UDPResponder struct {
	target Transactor

	sock   *net.UDPConn
	mcsock *ipv4.PacketConn

	tomb tomb.Tomb
}

func NewUDPResponder(iface *net.Interface, group net.IP, target Transactor) (r *UDPResponder, err error) {
	r = &UDPResponder{target: target}

	laddr := &net.UDPAddr{IP: net.IPv4(0, 0, 0, 0), Port: PeriphUDPPort}
	r.sock, err = net.ListenUDP("udp4", laddr)
	if err != nil {
		return
	}

	r.mcsock = ipv4.NewPacketConn(r.sock)

	err = r.mcsock.JoinGroup(iface, &net.UDPAddr{IP: group})
	if err != nil {
		r.sock.Close()
		return
	}

	r.tomb.Go(r.serve)

	return
}

func (r *UDPResponder) serve() error {
	rbuf := make([]byte, udpReceiveBuflen)
	for {
		n, raddr, err := r.sock.ReadFromUDP(rbuf)
		if err != nil {
			select {
			case <-r.tomb.Dying():
				return nil
			default:
			}
			return err
		}

		var fr pfr.Frame
		_, err = fr.Overlay(rbuf[0:n])
		if err != nil {
			// discard malformed frames
			continue
		}

		for _, dg := range fr.Datagrams {
			tx := sim.Transaction{
				Command: dg.Command,
				Addr:    dg.Addr,
				Data:    dg.Data,
			}
			dg.Status, dg.DelayTicks = r.target.Transact(&tx)
		}

		obytes, err := fr.Commit()
		if err != nil {
			continue
		}

		_, err = r.sock.WriteToUDP(obytes, raddr)
		err = errorMask(err)
		if err != nil {
			return err
		}

		rbuf = make([]byte, udpReceiveBuflen)
	}
}

func (r *UDPResponder) Close() error {
	r.tomb.Kill(nil)
	if r.mcsock != nil {
		r.mcsock.Close()
	}
	if r.sock != nil {
		r.sock.Close()
	}
	return r.tomb.Wait()
}
