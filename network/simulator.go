package network

import (
	"math/rand"

	"github.com/jxsl13/protonet/protocol"
)

// SimulatorInterface is an in-memory NetworkInterface. Two ends created by
// NewSimulatorPair exchange packets through the wire codec without sockets,
// which keeps protocol behavior deterministic for tests and demos.
// It is single-threaded like its owner.
type SimulatorInterface struct {
	factory   PacketFactory
	localAddr Address
	peer      *SimulatorInterface
	queue     []Packet

	lossRate float64
	rng      *rand.Rand
}

// NewSimulatorPair wires two simulator ends together at the given addresses.
// Both ends share one packet factory.
func NewSimulatorPair(a, b Address) (*SimulatorInterface, *SimulatorInterface) {
	factory := NewPacketFactory()
	ea := &SimulatorInterface{factory: factory, localAddr: a}
	eb := &SimulatorInterface{factory: factory, localAddr: b}
	ea.peer = eb
	eb.peer = ea
	return ea, eb
}

// SetLoss drops the given fraction of sent packets using a seeded source,
// so lossy runs stay reproducible.
func (s *SimulatorInterface) SetLoss(rate float64, seed int64) {
	s.lossRate = rate
	s.rng = rand.New(rand.NewSource(seed))
}

// LocalAddress is the address packets sent by this end are stamped with.
func (s *SimulatorInterface) LocalAddress() Address {
	return s.localAddr
}

// SendPacket runs the packet through the wire codec and delivers it to the
// peer's queue, consuming the original.
func (s *SimulatorInterface) SendPacket(addr Address, p Packet) {
	defer s.factory.Destroy(p)

	if !addr.Equal(s.peer.localAddr) {
		return
	}
	if s.lossRate > 0 && s.rng.Float64() < s.lossRate {
		return
	}

	var buf [protocol.MaxPacketSize]byte
	data, err := MarshalPacket(p, buf[:])
	if err != nil {
		return
	}

	received, err := UnmarshalPacket(s.factory, data)
	if err != nil {
		return
	}
	received.SetAddress(s.localAddr)
	s.peer.queue = append(s.peer.queue, received)
}

func (s *SimulatorInterface) ReceivePacket() Packet {
	if len(s.queue) == 0 {
		return nil
	}
	p := s.queue[0]
	s.queue = s.queue[1:]
	return p
}

func (s *SimulatorInterface) Update(t protocol.TimeBase) {}

func (s *SimulatorInterface) GetMaxPacketSize() int {
	return protocol.MaxPacketSize
}

func (s *SimulatorInterface) GetPacketFactory() PacketFactory {
	return s.factory
}
