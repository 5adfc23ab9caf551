package network

import (
	"github.com/jxsl13/protonet/protocol"
)

// PacketFactory constructs and destroys typed packets. The factory is owned
// by the network interface; everything else only borrows it.
type PacketFactory interface {
	Create(t protocol.PacketType) Packet
	Destroy(p Packet)
}

// NewPacketFactory returns the factory for the client/server packet family.
func NewPacketFactory() PacketFactory {
	return &packetFactory{}
}

type packetFactory struct{}

func (f *packetFactory) Create(t protocol.PacketType) Packet {
	switch t {
	case protocol.PacketConnectionRequest:
		return &ConnectionRequestPacket{}
	case protocol.PacketConnectionDenied:
		return &ConnectionDeniedPacket{}
	case protocol.PacketConnectionChallenge:
		return &ConnectionChallengePacket{}
	case protocol.PacketChallengeResponse:
		return &ChallengeResponsePacket{}
	case protocol.PacketReadyForConnection:
		return &ReadyForConnectionPacket{}
	case protocol.PacketDataBlockFragment:
		return &DataBlockFragmentPacket{}
	case protocol.PacketDataBlockFragmentAck:
		return &DataBlockFragmentAckPacket{}
	case protocol.PacketDisconnected:
		return &DisconnectedPacket{}
	case protocol.PacketConnection:
		return &ConnectionPacket{}
	}
	return nil
}

// Destroy returns a packet to the factory. The runtime reclaims the memory;
// the method exists so packet ownership stays explicit at every call site.
func (f *packetFactory) Destroy(p Packet) {
	_ = p
}
