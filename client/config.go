package client

import (
	"github.com/jxsl13/protonet/connection"
	"github.com/jxsl13/protonet/network"
	"github.com/jxsl13/protonet/protocol"
	"github.com/jxsl13/protonet/resolver"
	"github.com/pkg/errors"
)

const (
	DefaultConnectingSendRate = 10.0
	DefaultConnectedSendRate  = 30.0
	DefaultConnectingTimeOut  = 5.0
	DefaultConnectedTimeOut   = 10.0
	DefaultServerPort         = 10000
	DefaultFragmentsPerSecond = 60.0
)

// Config configures a Client. NetworkInterface and ChannelStructure are
// required, and FragmentSize is required once block transfer is configured;
// everything else is optional or has a sensible default.
type Config struct {
	// NetworkInterface performs packet I/O. Borrowed, not owned.
	NetworkInterface network.NetworkInterface

	// ChannelStructure is handed to the embedded connection.
	ChannelStructure *connection.ChannelStructure

	// Resolver enables hostname connects. Optional.
	Resolver resolver.Resolver

	// ConnectingSendRate / ConnectedSendRate are scheduled packets per
	// second while connecting respectively connected.
	ConnectingSendRate float64
	ConnectedSendRate  float64

	// ConnectingTimeOut / ConnectedTimeOut are seconds of inbound silence
	// before the client disconnects.
	ConnectingTimeOut float64
	ConnectedTimeOut  float64

	// DefaultServerPort is applied to resolver results whose port is zero.
	DefaultServerPort uint16

	// MaxServerDataSize enables the block receiver with this cap.
	// Zero disables receiving server data.
	MaxServerDataSize int

	// ClientData, when non-nil, is uploaded to the server during the
	// handshake. Borrowed, not owned.
	ClientData []byte

	// FragmentSize is the block transfer fragment size, used by both the
	// sender and the receiver. Required when ClientData or
	// MaxServerDataSize is configured.
	FragmentSize int

	// FragmentsPerSecond is the block sender rate.
	FragmentsPerSecond float64
}

func (c Config) withDefaults() Config {
	if c.ConnectingSendRate == 0 {
		c.ConnectingSendRate = DefaultConnectingSendRate
	}
	if c.ConnectedSendRate == 0 {
		c.ConnectedSendRate = DefaultConnectedSendRate
	}
	if c.ConnectingTimeOut == 0 {
		c.ConnectingTimeOut = DefaultConnectingTimeOut
	}
	if c.ConnectedTimeOut == 0 {
		c.ConnectedTimeOut = DefaultConnectedTimeOut
	}
	if c.DefaultServerPort == 0 {
		c.DefaultServerPort = DefaultServerPort
	}
	if c.FragmentsPerSecond == 0 {
		c.FragmentsPerSecond = DefaultFragmentsPerSecond
	}
	return c
}

func (c Config) validate() error {
	if c.NetworkInterface == nil {
		return errors.New("network interface is required")
	}
	if c.ChannelStructure == nil {
		return errors.New("channel structure is required")
	}
	if c.ClientData != nil || c.MaxServerDataSize > 0 {
		if c.FragmentSize <= 0 || c.FragmentSize > protocol.MaxFragmentSize {
			return errors.Errorf("fragment size %d out of range (0, %d]", c.FragmentSize, protocol.MaxFragmentSize)
		}
	}
	return nil
}
