package network

import (
	"github.com/jxsl13/protonet/compression"
	"github.com/jxsl13/protonet/protocol"
)

// Packet is a typed wire packet of the client/server protocol family.
// The source address is stamped by the network interface on receive.
type Packet interface {
	Type() protocol.PacketType
	Address() Address
	SetAddress(addr Address)
	Serialize(p *compression.Packer)
	Deserialize(u *compression.Unpacker) error
}

// packetAddress carries the stamped source address; it is embedded by
// every concrete packet.
type packetAddress struct {
	addr Address
}

func (p *packetAddress) Address() Address {
	return p.addr
}

func (p *packetAddress) SetAddress(addr Address) {
	p.addr = addr
}
