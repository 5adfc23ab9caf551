package network

import (
	"errors"
	"net"
	"net/netip"
	"sync"

	"github.com/jxsl13/protonet/protocol"
	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

const receiveQueueSize = 1024

// UDPInterface is the NetworkInterface over a UDP socket. A reader
// goroutine feeds a bounded queue; ReceivePacket drains it without
// blocking. Packets that do not parse are dropped.
type UDPInterface struct {
	conn    *net.UDPConn
	factory PacketFactory

	recv      chan Packet
	closeOnce sync.Once
}

// NewUDPInterface binds a UDP socket to bindAddr ("ip:port", port 0 for an
// ephemeral port) and starts receiving.
func NewUDPInterface(bindAddr string) (*UDPInterface, error) {
	ap, err := netip.ParseAddrPort(bindAddr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(ap))
	if err != nil {
		return nil, err
	}

	const receiveBufferSize = 65536
	if err := conn.SetReadBuffer(receiveBufferSize); err != nil {
		conn.Close()
		return nil, err
	}

	u := &UDPInterface{
		conn:    conn,
		factory: NewPacketFactory(),
		recv:    make(chan Packet, receiveQueueSize),
	}
	go u.receiveLoop()
	return u, nil
}

// LocalAddress is the bound address of the underlying socket.
func (u *UDPInterface) LocalAddress() Address {
	ap := u.conn.LocalAddr().(*net.UDPAddr).AddrPort()
	return AddressFromAddrPort(ap)
}

// Close shuts the socket down and stops the receive loop.
func (u *UDPInterface) Close() error {
	var err error
	u.closeOnce.Do(func() {
		err = u.conn.Close()
	})
	return err
}

func (u *UDPInterface) receiveLoop() {
	buf := make([]byte, protocol.MaxPacketSize)
	for {
		n, ap, err := u.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		p, err := UnmarshalPacket(u.factory, buf[:n])
		if err != nil {
			logger.WithFields(logrus.Fields{
				"from":  ap.String(),
				"bytes": n,
			}).Debug("dropped malformed packet")
			continue
		}
		p.SetAddress(AddressFromAddrPort(ap))

		select {
		case u.recv <- p:
		default:
			// queue full, drop
			u.factory.Destroy(p)
		}
	}
}

func (u *UDPInterface) SendPacket(addr Address, p Packet) {
	defer u.factory.Destroy(p)

	var buf [protocol.MaxPacketSize]byte
	data, err := MarshalPacket(p, buf[:])
	if err != nil {
		logger.WithField("type", p.Type().String()).Debug("dropped oversized outbound packet")
		return
	}

	sent := 0
	for sent < len(data) {
		n, err := u.conn.WriteToUDPAddrPort(data[sent:], addr.AddrPort())
		if err != nil {
			return
		}
		sent += n
	}
}

func (u *UDPInterface) ReceivePacket() Packet {
	select {
	case p := <-u.recv:
		return p
	default:
		return nil
	}
}

func (u *UDPInterface) Update(t protocol.TimeBase) {}

func (u *UDPInterface) GetMaxPacketSize() int {
	return protocol.MaxPacketSize
}

func (u *UDPInterface) GetPacketFactory() PacketFactory {
	return u.factory
}
