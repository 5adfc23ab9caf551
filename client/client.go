// Package client implements the client side of the connection protocol:
// the handshake state machine, block transfers during setup, hostname
// resolution and liveness timeouts, all driven by a single-threaded
// Update tick.
package client

import (
	"github.com/jxsl13/protonet/connection"
	"github.com/jxsl13/protonet/datablock"
	"github.com/jxsl13/protonet/network"
	"github.com/jxsl13/protonet/protocol"
	"github.com/jxsl13/protonet/resolver"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// Client maintains one session to a single server. It owns the embedded
// connection and the block sender/receiver; the network interface, packet
// factory and resolver are borrowed and must outlive it.
type Client struct {
	config        Config
	packetFactory network.PacketFactory
	connection    *connection.Connection
	blockSender   *datablock.Sender
	blockReceiver *datablock.Receiver

	state    protocol.ClientState
	address  network.Address
	hostname string

	clientGUID uint64
	serverGUID uint64

	timeBase              protocol.TimeBase
	lastPacketReceiveTime float64
	accumulator           float64

	err           protocol.ClientError
	extendedError uint32
}

// NewClient creates a client for the given config.
func NewClient(config Config) (*Client, error) {
	if err := config.validate(); err != nil {
		return nil, errors.Wrap(err, "new client")
	}
	config = config.withDefaults()

	c := &Client{
		config:        config,
		packetFactory: config.NetworkInterface.GetPacketFactory(),
	}

	conn, err := connection.NewConnection(connection.Config{
		PacketType:       protocol.PacketConnection,
		MaxPacketSize:    config.NetworkInterface.GetMaxPacketSize(),
		PacketFactory:    c.packetFactory,
		ChannelStructure: config.ChannelStructure,
	})
	if err != nil {
		return nil, errors.Wrap(err, "new client")
	}
	c.connection = conn

	if config.MaxServerDataSize > 0 {
		c.blockReceiver = datablock.NewReceiver(config.FragmentSize, config.MaxServerDataSize)
	}
	if config.ClientData != nil {
		c.blockSender = datablock.NewSender(config.ClientData, config.FragmentSize, config.FragmentsPerSecond)
	}

	c.clearStateData()
	return c, nil
}

// Connect starts a session to hostname, which may also be a textual
// address. Hostnames require a configured resolver.
func (c *Client) Connect(hostname string) {
	c.Disconnect()
	c.clearError()

	// is this hostname actually an address? If so connect by address instead.
	address := network.ParseAddress(hostname)
	if address.IsValid() {
		c.ConnectAddress(address)
		return
	}

	if c.config.Resolver == nil {
		c.disconnectAndSetError(protocol.ClientErrorMissingResolver, 0)
		return
	}

	if len(hostname) > protocol.MaxHostName {
		hostname = hostname[:protocol.MaxHostName]
	}

	logger.WithField("hostname", hostname).Debug("client connect by hostname")

	c.config.Resolver.Resolve(hostname)

	c.state = protocol.ClientStateResolvingHostname
	c.hostname = hostname
	c.lastPacketReceiveTime = c.timeBase.Time
}

// ConnectAddress starts a session to a resolved address.
func (c *Client) ConnectAddress(address network.Address) {
	c.Disconnect()
	c.clearError()

	logger.WithField("address", address.String()).Debug("client connect by address")

	c.state = protocol.ClientStateSendingConnectionRequest
	c.address = address
	c.clientGUID = protocol.GenerateGUID()
	c.lastPacketReceiveTime = c.timeBase.Time
}

// Disconnect tears the session down, emitting a single farewell packet
// when the client was not already disconnected. It is idempotent.
func (c *Client) Disconnect() {
	if c.IsDisconnected() {
		return
	}

	logger.WithField("state", c.state.String()).Debug("client disconnect")

	p, ok := c.packetFactory.Create(protocol.PacketDisconnected).(*network.DisconnectedPacket)
	if ok {
		p.ClientGUID = c.clientGUID
		p.ServerGUID = c.serverGUID
		c.config.NetworkInterface.SendPacket(c.address, p)
	}

	c.connection.Reset()

	c.clearStateData()
	c.state = protocol.ClientStateDisconnected

	if c.blockSender != nil {
		c.blockSender.Clear()
	}
	if c.blockReceiver != nil {
		c.blockReceiver.Clear()
	}
}

func (c *Client) IsDisconnected() bool {
	return c.state == protocol.ClientStateDisconnected
}

func (c *Client) IsConnected() bool {
	return c.state == protocol.ClientStateConnected
}

func (c *Client) IsConnecting() bool {
	return c.state > protocol.ClientStateDisconnected && c.state < protocol.ClientStateConnected
}

func (c *Client) GetState() protocol.ClientState {
	return c.state
}

// GetAddress is the address of the current session, NilAddress while
// disconnected or resolving.
func (c *Client) GetAddress() network.Address {
	return c.address
}

func (c *Client) HasError() bool {
	return c.err != protocol.ClientErrorNone
}

func (c *Client) GetError() protocol.ClientError {
	return c.err
}

func (c *Client) GetExtendedError() uint32 {
	return c.extendedError
}

func (c *Client) GetNetworkInterface() network.NetworkInterface {
	return c.config.NetworkInterface
}

func (c *Client) GetConnection() *connection.Connection {
	return c.connection
}

// GetServerData returns the block downloaded from the server once it is
// complete, nil before that.
func (c *Client) GetServerData() []byte {
	if c.blockReceiver == nil {
		return nil
	}
	return c.blockReceiver.GetBlock()
}

// Update drives the client one tick. Within the tick it resolves, ticks
// the embedded connection, emits the scheduled packet, drains inbound
// packets, advances the block sender and finally evaluates the timeout.
func (c *Client) Update(t protocol.TimeBase) {
	c.timeBase = t

	c.updateResolver()

	c.updateConnection()

	c.updateSendPackets()

	c.config.NetworkInterface.Update(t)

	c.updateReceivePackets()

	c.updateSendClientData()

	c.updateTimeout()
}

func (c *Client) updateResolver() {
	if c.config.Resolver != nil {
		c.config.Resolver.Update(c.timeBase)
	}

	if c.state != protocol.ClientStateResolvingHostname {
		return
	}

	entry := c.config.Resolver.GetEntry(c.hostname)
	if entry == nil || entry.Status == resolver.StatusFailed {
		c.disconnectAndSetError(protocol.ClientErrorResolveHostnameFailed, 0)
		return
	}

	if entry.Status != resolver.StatusSucceeded {
		return
	}

	if len(entry.Result.Addresses) == 0 {
		c.disconnectAndSetError(protocol.ClientErrorResolveHostnameFailed, 0)
		return
	}

	address := entry.Result.Addresses[0]
	if address.Port() == 0 {
		address.SetPort(c.config.DefaultServerPort)
	}

	logger.WithField("address", address.String()).Debug("resolved hostname")

	c.ConnectAddress(address)
}

func (c *Client) updateConnection() {
	if !c.IsConnected() {
		return
	}

	c.connection.Update(c.timeBase)

	if connErr := c.connection.GetError(); connErr != connection.ErrorNone {
		c.disconnectAndSetError(protocol.ClientErrorConnectionError, uint32(connErr))
	}
}

func (c *Client) updateSendPackets() {
	if c.state < protocol.ClientStateSendingConnectionRequest {
		return
	}

	c.accumulator += c.timeBase.DeltaTime

	sendRate := c.config.ConnectingSendRate
	if c.IsConnected() {
		sendRate = c.config.ConnectedSendRate
	}
	timeBetweenPackets := 1.0 / sendRate

	for c.accumulator >= timeBetweenPackets {
		c.accumulator -= timeBetweenPackets
		c.sendStatePacket()
	}
}

func (c *Client) sendStatePacket() {
	switch c.state {
	case protocol.ClientStateSendingConnectionRequest:
		p := c.packetFactory.Create(protocol.PacketConnectionRequest).(*network.ConnectionRequestPacket)
		p.ClientGUID = c.clientGUID
		c.config.NetworkInterface.SendPacket(c.address, p)

	case protocol.ClientStateSendingChallengeResponse:
		p := c.packetFactory.Create(protocol.PacketChallengeResponse).(*network.ChallengeResponsePacket)
		p.ClientGUID = c.clientGUID
		p.ServerGUID = c.serverGUID
		c.config.NetworkInterface.SendPacket(c.address, p)

	case protocol.ClientStateReadyForConnection:
		p := c.packetFactory.Create(protocol.PacketReadyForConnection).(*network.ReadyForConnectionPacket)
		p.ClientGUID = c.clientGUID
		p.ServerGUID = c.serverGUID
		c.config.NetworkInterface.SendPacket(c.address, p)

	case protocol.ClientStateConnected:
		if p := c.connection.WritePacket(); p != nil {
			c.config.NetworkInterface.SendPacket(c.address, p)
		}
	}
}

func (c *Client) updateReceivePackets() {
	for {
		p := c.config.NetworkInterface.ReceivePacket()
		if p == nil {
			break
		}

		if p.Type() == protocol.PacketDisconnected {
			c.processDisconnected(p.(*network.DisconnectedPacket))
			c.packetFactory.Destroy(p)
			continue
		}

		switch c.state {
		case protocol.ClientStateSendingConnectionRequest:
			switch packet := p.(type) {
			case *network.ConnectionChallengePacket:
				c.processConnectionChallenge(packet)
			case *network.ConnectionDeniedPacket:
				c.processConnectionDenied(packet)
			}

		case protocol.ClientStateSendingChallengeResponse:
			switch packet := p.(type) {
			case *network.DataBlockFragmentPacket:
				c.processDataBlockFragment(packet)
			case *network.ReadyForConnectionPacket:
				c.processReadyForConnection(packet)
			}

		case protocol.ClientStateSendingClientData:
			switch packet := p.(type) {
			case *network.DataBlockFragmentPacket:
				c.processDataBlockFragment(packet)
			case *network.DataBlockFragmentAckPacket:
				c.processDataBlockFragmentAck(packet)
			}

		case protocol.ClientStateReadyForConnection, protocol.ClientStateConnected:
			switch packet := p.(type) {
			case *network.DataBlockFragmentPacket:
				c.processDataBlockFragment(packet)
			case *network.ConnectionPacket:
				c.processConnectionPacket(packet)
			}
		}

		c.packetFactory.Destroy(p)
	}
}

func (c *Client) processConnectionChallenge(p *network.ConnectionChallengePacket) {
	if !p.Address().Equal(c.address) || p.ClientGUID != c.clientGUID {
		return
	}

	logger.WithFields(logrus.Fields{
		"client_guid": p.ClientGUID,
		"server_guid": p.ServerGUID,
	}).Debug("received connection challenge")

	c.state = protocol.ClientStateSendingChallengeResponse
	c.serverGUID = p.ServerGUID
	c.lastPacketReceiveTime = c.timeBase.Time

	info := datablock.Info{
		Address:          c.address,
		ClientGUID:       c.clientGUID,
		ServerGUID:       c.serverGUID,
		PacketFactory:    c.packetFactory,
		NetworkInterface: c.config.NetworkInterface,
	}
	if c.blockSender != nil {
		c.blockSender.SetInfo(info)
	}
	if c.blockReceiver != nil {
		c.blockReceiver.SetInfo(info)
	}
}

func (c *Client) processConnectionDenied(p *network.ConnectionDeniedPacket) {
	if !p.Address().Equal(c.address) || p.ClientGUID != c.clientGUID {
		return
	}
	c.disconnectAndSetError(protocol.ClientErrorConnectionRequestDenied, p.Reason)
}

func (c *Client) processReadyForConnection(p *network.ReadyForConnectionPacket) {
	if !p.Address().Equal(c.address) || p.ClientGUID != c.clientGUID || p.ServerGUID != c.serverGUID {
		return
	}

	if c.config.ClientData != nil {
		c.state = protocol.ClientStateSendingClientData
	} else {
		c.state = protocol.ClientStateReadyForConnection
	}
	c.lastPacketReceiveTime = c.timeBase.Time
}

func (c *Client) processConnectionPacket(p *network.ConnectionPacket) {
	if c.state == protocol.ClientStateReadyForConnection {
		logger.Debug("client connected")
		c.state = protocol.ClientStateConnected
	}

	if c.connection.ReadPacket(p) {
		c.lastPacketReceiveTime = c.timeBase.Time
	}
}

func (c *Client) processDisconnected(p *network.DisconnectedPacket) {
	if c.IsDisconnected() {
		return
	}
	if !p.Address().Equal(c.address) {
		return
	}
	if p.ClientGUID != c.clientGUID || p.ServerGUID != c.serverGUID {
		return
	}
	c.disconnectAndSetError(protocol.ClientErrorDisconnectedFromServer, 0)
}

func (c *Client) processDataBlockFragment(p *network.DataBlockFragmentPacket) {
	if p.ClientGUID != c.clientGUID || p.ServerGUID != c.serverGUID {
		return
	}
	if c.blockReceiver == nil {
		return
	}

	c.blockReceiver.ProcessFragment(p.BlockSize, p.NumFragments, p.FragmentID, p.FragmentBytes, p.FragmentData)

	if c.blockReceiver.IsError() {
		c.disconnectAndSetError(protocol.ClientErrorDataBlockError, uint32(c.blockReceiver.GetError()))
	}
}

func (c *Client) processDataBlockFragmentAck(p *network.DataBlockFragmentAckPacket) {
	if p.ClientGUID != c.clientGUID || p.ServerGUID != c.serverGUID {
		return
	}
	if c.blockSender == nil {
		return
	}
	c.blockSender.ProcessAck(int(p.FragmentID))
}

func (c *Client) updateSendClientData() {
	if c.state != protocol.ClientStateSendingClientData {
		return
	}

	if c.blockSender.SendCompleted() {
		logger.Debug("client data upload complete")
		c.state = protocol.ClientStateReadyForConnection
		return
	}

	c.blockSender.Update(c.timeBase)
}

func (c *Client) updateTimeout() {
	if c.IsDisconnected() {
		return
	}

	timeout := c.config.ConnectingTimeOut
	if c.IsConnected() {
		timeout = c.config.ConnectedTimeOut
	}

	if c.lastPacketReceiveTime+timeout < c.timeBase.Time {
		c.disconnectAndSetError(protocol.ClientErrorConnectionTimedOut, uint32(c.state))
	}
}

func (c *Client) disconnectAndSetError(err protocol.ClientError, extendedError uint32) {
	logger.WithFields(logrus.Fields{
		"error":    err.String(),
		"extended": extendedError,
	}).Debug("client error")

	c.Disconnect()

	c.err = err
	c.extendedError = extendedError
}

func (c *Client) clearError() {
	c.err = protocol.ClientErrorNone
	c.extendedError = 0
}

func (c *Client) clearStateData() {
	c.hostname = ""
	c.address = network.NilAddress
	c.clientGUID = 0
	c.serverGUID = 0
	c.accumulator = 0
}
