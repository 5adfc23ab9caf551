package network

import (
	"fmt"

	"github.com/jxsl13/protonet/compression"
	"github.com/jxsl13/protonet/protocol"
)

// ErrUnknownPacketType is returned when a wire tag maps to no packet type.
var ErrUnknownPacketType = fmt.Errorf("unknown packet type")

// MarshalPacket frames a packet as its wire tag followed by the body.
func MarshalPacket(p Packet, buf []byte) ([]byte, error) {
	packer := compression.NewPacker(buf[:0])
	packer.AddByte(byte(p.Type()))
	p.Serialize(packer)

	data := packer.Bytes()
	if len(data) > protocol.MaxPacketSize {
		return nil, fmt.Errorf("packet type %s too large: %d bytes", p.Type(), len(data))
	}
	return data, nil
}

// UnmarshalPacket parses a framed packet, creating it through the factory.
// The caller owns the returned packet and must destroy it through the same
// factory.
func UnmarshalPacket(factory PacketFactory, data []byte) (Packet, error) {
	u := compression.NewUnpacker(data)

	tag, err := u.NextByte()
	if err != nil {
		return nil, err
	}

	p := factory.Create(protocol.PacketType(tag))
	if p == nil {
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownPacketType, tag)
	}

	if err := p.Deserialize(u); err != nil {
		factory.Destroy(p)
		return nil, err
	}
	return p, nil
}
