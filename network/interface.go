package network

import (
	"github.com/jxsl13/protonet/protocol"
)

// NetworkInterface sends and receives typed packets at an address.
// Implementations may buffer inbound packets on another goroutine but are
// never re-entered during an Update of their owner.
type NetworkInterface interface {
	// SendPacket serializes and transmits a packet to addr, consuming it.
	SendPacket(addr Address, p Packet)

	// ReceivePacket pops the next buffered inbound packet, or nil.
	// The source address is stamped on the packet.
	ReceivePacket() Packet

	// Update ticks the interface.
	Update(t protocol.TimeBase)

	// GetMaxPacketSize is the largest packet the interface can carry.
	GetMaxPacketSize() int

	// GetPacketFactory exposes the factory owned by this interface.
	GetPacketFactory() PacketFactory
}
