package network

import (
	"fmt"

	"github.com/jxsl13/protonet/compression"
	"github.com/jxsl13/protonet/protocol"
)

// ErrInvalidPacket is returned when a packet body violates a wire constraint.
var ErrInvalidPacket = fmt.Errorf("invalid packet")

// ConnectionRequestPacket opens the handshake. client -> server
type ConnectionRequestPacket struct {
	packetAddress
	ClientGUID uint64
}

func (p *ConnectionRequestPacket) Type() protocol.PacketType {
	return protocol.PacketConnectionRequest
}

func (p *ConnectionRequestPacket) Serialize(pk *compression.Packer) {
	pk.AddUint64(p.ClientGUID)
}

func (p *ConnectionRequestPacket) Deserialize(u *compression.Unpacker) (err error) {
	p.ClientGUID, err = u.NextUint64()
	return err
}

// ConnectionDeniedPacket rejects a connection request. server -> client
// The reason opcode is opaque to this layer.
type ConnectionDeniedPacket struct {
	packetAddress
	ClientGUID uint64
	Reason     uint32
}

func (p *ConnectionDeniedPacket) Type() protocol.PacketType {
	return protocol.PacketConnectionDenied
}

func (p *ConnectionDeniedPacket) Serialize(pk *compression.Packer) {
	pk.AddUint64(p.ClientGUID)
	pk.AddUint32(p.Reason)
}

func (p *ConnectionDeniedPacket) Deserialize(u *compression.Unpacker) (err error) {
	if p.ClientGUID, err = u.NextUint64(); err != nil {
		return err
	}
	p.Reason, err = u.NextUint32()
	return err
}

// ConnectionChallengePacket binds the client guid to a server guid.
// server -> client
type ConnectionChallengePacket struct {
	packetAddress
	ClientGUID uint64
	ServerGUID uint64
}

func (p *ConnectionChallengePacket) Type() protocol.PacketType {
	return protocol.PacketConnectionChallenge
}

func (p *ConnectionChallengePacket) Serialize(pk *compression.Packer) {
	pk.AddUint64(p.ClientGUID)
	pk.AddUint64(p.ServerGUID)
}

func (p *ConnectionChallengePacket) Deserialize(u *compression.Unpacker) (err error) {
	if p.ClientGUID, err = u.NextUint64(); err != nil {
		return err
	}
	p.ServerGUID, err = u.NextUint64()
	return err
}

// ChallengeResponsePacket echoes both guids back. client -> server
type ChallengeResponsePacket struct {
	packetAddress
	ClientGUID uint64
	ServerGUID uint64
}

func (p *ChallengeResponsePacket) Type() protocol.PacketType {
	return protocol.PacketChallengeResponse
}

func (p *ChallengeResponsePacket) Serialize(pk *compression.Packer) {
	pk.AddUint64(p.ClientGUID)
	pk.AddUint64(p.ServerGUID)
}

func (p *ChallengeResponsePacket) Deserialize(u *compression.Unpacker) (err error) {
	if p.ClientGUID, err = u.NextUint64(); err != nil {
		return err
	}
	p.ServerGUID, err = u.NextUint64()
	return err
}

// ReadyForConnectionPacket signals that a side has finished its part of
// the handshake, block transfers included. sent in both directions
type ReadyForConnectionPacket struct {
	packetAddress
	ClientGUID uint64
	ServerGUID uint64
}

func (p *ReadyForConnectionPacket) Type() protocol.PacketType {
	return protocol.PacketReadyForConnection
}

func (p *ReadyForConnectionPacket) Serialize(pk *compression.Packer) {
	pk.AddUint64(p.ClientGUID)
	pk.AddUint64(p.ServerGUID)
}

func (p *ReadyForConnectionPacket) Deserialize(u *compression.Unpacker) (err error) {
	if p.ClientGUID, err = u.NextUint64(); err != nil {
		return err
	}
	p.ServerGUID, err = u.NextUint64()
	return err
}

// DataBlockFragmentPacket carries one fragment of a data block.
// sent in both directions
type DataBlockFragmentPacket struct {
	packetAddress
	ClientGUID    uint64
	ServerGUID    uint64
	BlockSize     uint32
	NumFragments  uint16
	FragmentID    uint16
	FragmentBytes uint16
	FragmentData  []byte
}

func (p *DataBlockFragmentPacket) Type() protocol.PacketType {
	return protocol.PacketDataBlockFragment
}

func (p *DataBlockFragmentPacket) Serialize(pk *compression.Packer) {
	pk.AddUint64(p.ClientGUID)
	pk.AddUint64(p.ServerGUID)
	pk.AddUint32(p.BlockSize)
	pk.AddUint16(p.NumFragments)
	pk.AddUint16(p.FragmentID)
	pk.AddUint16(p.FragmentBytes)
	pk.AddBytes(p.FragmentData[:p.FragmentBytes])
}

func (p *DataBlockFragmentPacket) Deserialize(u *compression.Unpacker) (err error) {
	if p.ClientGUID, err = u.NextUint64(); err != nil {
		return err
	}
	if p.ServerGUID, err = u.NextUint64(); err != nil {
		return err
	}
	if p.BlockSize, err = u.NextUint32(); err != nil {
		return err
	}
	if p.NumFragments, err = u.NextUint16(); err != nil {
		return err
	}
	if p.FragmentID, err = u.NextUint16(); err != nil {
		return err
	}
	if p.FragmentBytes, err = u.NextUint16(); err != nil {
		return err
	}
	if p.FragmentBytes > protocol.MaxFragmentSize {
		return fmt.Errorf("%w: fragment bytes %d exceed %d", ErrInvalidPacket, p.FragmentBytes, protocol.MaxFragmentSize)
	}
	if p.FragmentID >= p.NumFragments {
		return fmt.Errorf("%w: fragment id %d out of range %d", ErrInvalidPacket, p.FragmentID, p.NumFragments)
	}
	data, err := u.NextBytes(int(p.FragmentBytes))
	if err != nil {
		return err
	}
	p.FragmentData = append(p.FragmentData[:0], data...)
	return nil
}

// DataBlockFragmentAckPacket acknowledges a received fragment.
// sent in both directions
type DataBlockFragmentAckPacket struct {
	packetAddress
	ClientGUID uint64
	ServerGUID uint64
	FragmentID uint16
}

func (p *DataBlockFragmentAckPacket) Type() protocol.PacketType {
	return protocol.PacketDataBlockFragmentAck
}

func (p *DataBlockFragmentAckPacket) Serialize(pk *compression.Packer) {
	pk.AddUint64(p.ClientGUID)
	pk.AddUint64(p.ServerGUID)
	pk.AddUint16(p.FragmentID)
}

func (p *DataBlockFragmentAckPacket) Deserialize(u *compression.Unpacker) (err error) {
	if p.ClientGUID, err = u.NextUint64(); err != nil {
		return err
	}
	if p.ServerGUID, err = u.NextUint64(); err != nil {
		return err
	}
	p.FragmentID, err = u.NextUint16()
	return err
}

// DisconnectedPacket is the farewell packet. sent in both directions
type DisconnectedPacket struct {
	packetAddress
	ClientGUID uint64
	ServerGUID uint64
}

func (p *DisconnectedPacket) Type() protocol.PacketType {
	return protocol.PacketDisconnected
}

func (p *DisconnectedPacket) Serialize(pk *compression.Packer) {
	pk.AddUint64(p.ClientGUID)
	pk.AddUint64(p.ServerGUID)
}

func (p *DisconnectedPacket) Deserialize(u *compression.Unpacker) (err error) {
	if p.ClientGUID, err = u.NextUint64(); err != nil {
		return err
	}
	p.ServerGUID, err = u.NextUint64()
	return err
}

// ConnectionPacket carries the payload of the embedded connection engine.
// The payload is opaque at this layer. sent in both directions
type ConnectionPacket struct {
	packetAddress
	Payload []byte
}

func (p *ConnectionPacket) Type() protocol.PacketType {
	return protocol.PacketConnection
}

func (p *ConnectionPacket) Serialize(pk *compression.Packer) {
	pk.AddUint16(uint16(len(p.Payload)))
	pk.AddBytes(p.Payload)
}

func (p *ConnectionPacket) Deserialize(u *compression.Unpacker) error {
	size, err := u.NextUint16()
	if err != nil {
		return err
	}
	data, err := u.NextBytes(int(size))
	if err != nil {
		return err
	}
	p.Payload = append(p.Payload[:0], data...)
	return nil
}
