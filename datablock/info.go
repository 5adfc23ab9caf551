// Package datablock implements the fragmented, acknowledged block transfer
// that runs during connection setup: a rate-paced sender for the client's
// payload and a windowed receiver for the server's payload.
package datablock

import "github.com/jxsl13/protonet/network"

// Info carries the session identity a sender or receiver needs to emit
// packets. It becomes available once the challenge exchanged both guids.
type Info struct {
	Address          network.Address
	ClientGUID       uint64
	ServerGUID       uint64
	PacketFactory    network.PacketFactory
	NetworkInterface network.NetworkInterface
}
