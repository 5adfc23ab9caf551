package client

import (
	"testing"

	"github.com/jxsl13/protonet/connection"
	"github.com/jxsl13/protonet/network"
	"github.com/jxsl13/protonet/protocol"
	"github.com/jxsl13/protonet/resolver"
	"github.com/stretchr/testify/require"
)

const testServerGUID = uint64(0xcafe0000beef0000)

// harness drives a client against a scripted server on the other end of a
// simulator pair.
type harness struct {
	t *testing.T

	client    *Client
	serverEnd *network.SimulatorInterface
	factory   network.PacketFactory

	clientAddr network.Address
	serverAddr network.Address

	clientGUID uint64
	time       protocol.TimeBase
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	h := &harness{
		t:          t,
		clientAddr: network.ParseAddress("10.0.0.2:6000"),
		serverAddr: network.ParseAddress("10.0.0.1:5000"),
	}

	clientEnd, serverEnd := network.NewSimulatorPair(h.clientAddr, h.serverAddr)
	h.serverEnd = serverEnd
	h.factory = serverEnd.GetPacketFactory()

	structure, err := connection.NewChannelStructure(
		connection.ChannelConfig{Name: "control", Reliable: true},
	)
	require.NoError(t, err)

	cfg := Config{
		NetworkInterface: clientEnd,
		ChannelStructure: structure,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	h.client, err = NewClient(cfg)
	require.NoError(t, err)
	return h
}

// tick advances time by dt and updates the client once.
func (h *harness) tick(dt float64) {
	h.time.Time += dt
	h.time.DeltaTime = dt
	h.client.Update(h.time)
}

// drain pops everything the server end has received.
func (h *harness) drain() []network.Packet {
	var packets []network.Packet
	for {
		p := h.serverEnd.ReceivePacket()
		if p == nil {
			return packets
		}
		packets = append(packets, p)
	}
}

func (h *harness) send(p network.Packet) {
	h.serverEnd.SendPacket(h.clientAddr, p)
}

func (h *harness) sendChallenge() {
	p := h.factory.Create(protocol.PacketConnectionChallenge).(*network.ConnectionChallengePacket)
	p.ClientGUID = h.clientGUID
	p.ServerGUID = testServerGUID
	h.send(p)
}

func (h *harness) sendReadyForConnection() {
	p := h.factory.Create(protocol.PacketReadyForConnection).(*network.ReadyForConnectionPacket)
	p.ClientGUID = h.clientGUID
	p.ServerGUID = testServerGUID
	h.send(p)
}

func (h *harness) sendConnectionKeepAlive() {
	p := h.factory.Create(protocol.PacketConnection).(*network.ConnectionPacket)
	p.Payload = []byte{0, 0, 0} // ack 0, no chunks
	h.send(p)
}

// captureClientGUID waits for the first connection request and records the
// guid the client generated for this session.
func (h *harness) captureClientGUID() {
	h.t.Helper()

	for i := 0; i < 10; i++ {
		h.tick(0.1)
		for _, p := range h.drain() {
			if request, ok := p.(*network.ConnectionRequestPacket); ok {
				h.clientGUID = request.ClientGUID
				require.NotZero(h.t, h.clientGUID)
				return
			}
		}
	}
	h.t.Fatal("client never sent a connection request")
}

// handshake drives the client from disconnected to the ready-for-connection
// exchange. With client data configured it stops in the upload state.
func (h *harness) handshake() {
	h.t.Helper()

	h.client.ConnectAddress(h.serverAddr)
	require.Equal(h.t, protocol.ClientStateSendingConnectionRequest, h.client.GetState())

	h.captureClientGUID()

	h.sendChallenge()
	h.tick(0.1)
	require.Equal(h.t, protocol.ClientStateSendingChallengeResponse, h.client.GetState())

	h.sendReadyForConnection()
	h.tick(0.1)
}

// connect drives the client all the way to connected.
func (h *harness) connect() {
	h.t.Helper()

	h.handshake()
	require.Equal(h.t, protocol.ClientStateReadyForConnection, h.client.GetState())

	h.sendConnectionKeepAlive()
	h.tick(0.1)
	require.Equal(h.t, protocol.ClientStateConnected, h.client.GetState())
	require.False(h.t, h.client.HasError())
}

func countFarewells(packets []network.Packet) int {
	n := 0
	for _, p := range packets {
		if _, ok := p.(*network.DisconnectedPacket); ok {
			n++
		}
	}
	return n
}

func TestNewClientValidation(t *testing.T) {
	structure, err := connection.NewChannelStructure(connection.ChannelConfig{Name: "control", Reliable: true})
	require.NoError(t, err)
	clientEnd, _ := network.NewSimulatorPair(network.ParseAddress("10.0.0.2:6000"), network.ParseAddress("10.0.0.1:5000"))

	_, err = NewClient(Config{ChannelStructure: structure})
	require.Error(t, err)

	_, err = NewClient(Config{NetworkInterface: clientEnd})
	require.Error(t, err)

	// fragment size is required once block transfer is configured
	_, err = NewClient(Config{
		NetworkInterface: clientEnd,
		ChannelStructure: structure,
		ClientData:       []byte{1, 2, 3},
	})
	require.Error(t, err)

	_, err = NewClient(Config{
		NetworkInterface:  clientEnd,
		ChannelStructure:  structure,
		MaxServerDataSize: 4096,
		FragmentSize:      protocol.MaxFragmentSize + 1,
	})
	require.Error(t, err)
}

func TestHappyPathByAddress(t *testing.T) {
	h := newHarness(t, nil)

	states := []protocol.ClientState{h.client.GetState()}
	record := func() {
		if last := states[len(states)-1]; last != h.client.GetState() {
			states = append(states, h.client.GetState())
		}
	}

	h.client.ConnectAddress(h.serverAddr)
	record()
	h.captureClientGUID()
	h.sendChallenge()
	h.tick(0.1)
	record()
	h.sendReadyForConnection()
	h.tick(0.1)
	record()
	h.sendConnectionKeepAlive()
	h.tick(0.1)
	record()

	require.Equal(t, []protocol.ClientState{
		protocol.ClientStateDisconnected,
		protocol.ClientStateSendingConnectionRequest,
		protocol.ClientStateSendingChallengeResponse,
		protocol.ClientStateReadyForConnection,
		protocol.ClientStateConnected,
	}, states)
	require.False(t, h.client.HasError())
	require.True(t, h.client.IsConnected())

	// periodic connection packets keep the session alive
	for i := 0; i < 50; i++ {
		h.sendConnectionKeepAlive()
		h.tick(0.1)
	}
	require.True(t, h.client.IsConnected())
	require.False(t, h.client.HasError())
}

func TestStatePredicatesExclusive(t *testing.T) {
	h := newHarness(t, nil)

	check := func() {
		n := 0
		for _, b := range []bool{h.client.IsDisconnected(), h.client.IsConnecting(), h.client.IsConnected()} {
			if b {
				n++
			}
		}
		require.Equal(t, 1, n, "state %s", h.client.GetState())
	}

	check()
	h.client.ConnectAddress(h.serverAddr)
	check()
	h.captureClientGUID()
	h.sendChallenge()
	h.tick(0.1)
	check()
	h.sendReadyForConnection()
	h.tick(0.1)
	check()
	h.sendConnectionKeepAlive()
	h.tick(0.1)
	check()
}

func TestConnectionDenied(t *testing.T) {
	h := newHarness(t, nil)

	h.client.ConnectAddress(h.serverAddr)
	h.captureClientGUID()

	p := h.factory.Create(protocol.PacketConnectionDenied).(*network.ConnectionDeniedPacket)
	p.ClientGUID = h.clientGUID
	p.Reason = 7
	h.send(p)
	h.tick(0.1)

	require.True(t, h.client.IsDisconnected())
	require.Equal(t, protocol.ClientErrorConnectionRequestDenied, h.client.GetError())
	require.Equal(t, uint32(7), h.client.GetExtendedError())

	// exactly one farewell packet on the wire
	require.Equal(t, 1, countFarewells(h.drain()))
	h.tick(0.1)
	h.tick(0.1)
	require.Equal(t, 0, countFarewells(h.drain()))
}

func TestDeniedForForeignGUIDIgnored(t *testing.T) {
	h := newHarness(t, nil)

	h.client.ConnectAddress(h.serverAddr)
	h.captureClientGUID()

	p := h.factory.Create(protocol.PacketConnectionDenied).(*network.ConnectionDeniedPacket)
	p.ClientGUID = h.clientGUID + 1
	p.Reason = 7
	h.send(p)
	h.tick(0.1)

	require.Equal(t, protocol.ClientStateSendingConnectionRequest, h.client.GetState())
	require.False(t, h.client.HasError())
}

func TestConnectByHostname(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.Resolver = resolver.NewStaticResolver(map[string][]network.Address{
			"game.example": {network.ParseAddress("10.0.0.1:0")},
		})
		cfg.DefaultServerPort = 9000
	})

	h.client.Connect("game.example")
	require.Equal(t, protocol.ClientStateResolvingHostname, h.client.GetState())

	h.tick(0.1)
	require.Equal(t, protocol.ClientStateSendingConnectionRequest, h.client.GetState())
	require.Equal(t, "10.0.0.1:9000", h.client.GetAddress().String())
}

func TestConnectHostnameIsAddress(t *testing.T) {
	h := newHarness(t, nil)

	h.client.Connect("10.0.0.1:5000")
	require.Equal(t, protocol.ClientStateSendingConnectionRequest, h.client.GetState())
	require.Equal(t, h.serverAddr, h.client.GetAddress())
}

func TestConnectHostnameWithoutResolver(t *testing.T) {
	h := newHarness(t, nil)

	h.client.Connect("game.example")
	require.True(t, h.client.IsDisconnected())
	require.Equal(t, protocol.ClientErrorMissingResolver, h.client.GetError())

	// configuration errors do not emit packets
	require.Empty(t, h.drain())
}

func TestResolveHostnameFailed(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.Resolver = resolver.NewStaticResolver(nil)
	})

	h.client.Connect("game.example")
	require.Equal(t, protocol.ClientStateResolvingHostname, h.client.GetState())

	h.tick(0.1)
	require.True(t, h.client.IsDisconnected())
	require.Equal(t, protocol.ClientErrorResolveHostnameFailed, h.client.GetError())
}

func TestClientDataUpload(t *testing.T) {
	clientData := make([]byte, 3000)
	for i := range clientData {
		clientData[i] = byte(i)
	}

	h := newHarness(t, func(cfg *Config) {
		cfg.ClientData = clientData
		cfg.FragmentSize = 1024
		cfg.FragmentsPerSecond = 60
	})

	h.handshake()
	require.Equal(t, protocol.ClientStateSendingClientData, h.client.GetState())

	// collect the upload and ack every distinct fragment
	received := make(map[uint16][]byte)
	for i := 0; i < 20 && len(received) < 3; i++ {
		h.tick(0.1)
		for _, p := range h.drain() {
			fragment, ok := p.(*network.DataBlockFragmentPacket)
			if !ok {
				continue
			}
			require.Equal(t, uint32(3000), fragment.BlockSize)
			require.Equal(t, uint16(3), fragment.NumFragments)

			if _, seen := received[fragment.FragmentID]; seen {
				continue
			}
			received[fragment.FragmentID] = append([]byte(nil), fragment.FragmentData...)

			ack := h.factory.Create(protocol.PacketDataBlockFragmentAck).(*network.DataBlockFragmentAckPacket)
			ack.ClientGUID = h.clientGUID
			ack.ServerGUID = testServerGUID
			ack.FragmentID = fragment.FragmentID
			h.send(ack)
		}
	}
	require.Len(t, received, 3)

	h.tick(0.1)
	require.Equal(t, protocol.ClientStateReadyForConnection, h.client.GetState())

	// the server saw the exact block
	var uploaded []byte
	for id := uint16(0); id < 3; id++ {
		uploaded = append(uploaded, received[id]...)
	}
	require.Equal(t, clientData, uploaded)
}

func TestServerDataDownload(t *testing.T) {
	serverData := make([]byte, 4096)
	for i := range serverData {
		serverData[i] = byte(i * 3)
	}

	h := newHarness(t, func(cfg *Config) {
		cfg.MaxServerDataSize = 8192
		cfg.FragmentSize = 1024
	})

	h.handshake()
	require.Equal(t, protocol.ClientStateReadyForConnection, h.client.GetState())
	require.Nil(t, h.client.GetServerData())

	for id := 0; id < 4; id++ {
		fragment := h.factory.Create(protocol.PacketDataBlockFragment).(*network.DataBlockFragmentPacket)
		fragment.ClientGUID = h.clientGUID
		fragment.ServerGUID = testServerGUID
		fragment.BlockSize = 4096
		fragment.NumFragments = 4
		fragment.FragmentID = uint16(id)
		fragment.FragmentBytes = 1024
		fragment.FragmentData = serverData[id*1024 : (id+1)*1024]
		h.send(fragment)
	}
	h.tick(0.1)

	require.False(t, h.client.HasError())
	require.Equal(t, serverData, h.client.GetServerData())

	// one ack per fragment id
	acked := make(map[uint16]bool)
	for _, p := range h.drain() {
		if ack, ok := p.(*network.DataBlockFragmentAckPacket); ok {
			require.Equal(t, h.clientGUID, ack.ClientGUID)
			require.Equal(t, testServerGUID, ack.ServerGUID)
			acked[ack.FragmentID] = true
		}
	}
	require.Len(t, acked, 4)
}

func TestServerDataDescriptorMismatchIsFatal(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.MaxServerDataSize = 8192
		cfg.FragmentSize = 1024
	})

	h.handshake()

	first := h.factory.Create(protocol.PacketDataBlockFragment).(*network.DataBlockFragmentPacket)
	first.ClientGUID = h.clientGUID
	first.ServerGUID = testServerGUID
	first.BlockSize = 4096
	first.NumFragments = 4
	first.FragmentID = 0
	first.FragmentBytes = 1024
	first.FragmentData = make([]byte, 1024)
	h.send(first)

	second := h.factory.Create(protocol.PacketDataBlockFragment).(*network.DataBlockFragmentPacket)
	second.ClientGUID = h.clientGUID
	second.ServerGUID = testServerGUID
	second.BlockSize = 2048
	second.NumFragments = 2
	second.FragmentID = 1
	second.FragmentBytes = 1024
	second.FragmentData = make([]byte, 1024)
	h.send(second)

	h.tick(0.1)

	require.True(t, h.client.IsDisconnected())
	require.Equal(t, protocol.ClientErrorDataBlockError, h.client.GetError())
	require.NotZero(t, h.client.GetExtendedError())
}

func TestConnectingTimeout(t *testing.T) {
	h := newHarness(t, nil)

	h.client.ConnectAddress(h.serverAddr)

	disconnectedAt := -1.0
	for i := 0; i < 60 && disconnectedAt < 0; i++ {
		h.tick(0.1)
		if h.client.IsDisconnected() {
			disconnectedAt = h.time.Time
		}
	}

	require.Greater(t, disconnectedAt, DefaultConnectingTimeOut)
	require.Less(t, disconnectedAt, DefaultConnectingTimeOut+0.5)
	require.Equal(t, protocol.ClientErrorConnectionTimedOut, h.client.GetError())
	require.Equal(t, uint32(protocol.ClientStateSendingConnectionRequest), h.client.GetExtendedError())
	require.Equal(t, 1, countFarewells(h.drain()))
}

func TestConnectedTimeout(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.ConnectedTimeOut = 5.0
	})

	h.connect()
	h.drain()

	for i := 0; i < 55 && !h.client.IsDisconnected(); i++ {
		h.tick(0.1)
	}

	require.True(t, h.client.IsDisconnected())
	require.Equal(t, protocol.ClientErrorConnectionTimedOut, h.client.GetError())
	require.Equal(t, uint32(protocol.ClientStateConnected), h.client.GetExtendedError())
	require.Equal(t, 1, countFarewells(h.drain()))
}

func TestGUIDFilter(t *testing.T) {
	h := newHarness(t, nil)

	h.client.ConnectAddress(h.serverAddr)
	h.captureClientGUID()
	h.sendChallenge()
	h.tick(0.1)
	require.Equal(t, protocol.ClientStateSendingChallengeResponse, h.client.GetState())

	// wrong server guid, must be ignored
	wrong := h.factory.Create(protocol.PacketReadyForConnection).(*network.ReadyForConnectionPacket)
	wrong.ClientGUID = h.clientGUID
	wrong.ServerGUID = testServerGUID + 1
	h.send(wrong)
	h.tick(0.1)
	require.Equal(t, protocol.ClientStateSendingChallengeResponse, h.client.GetState())

	// forged disconnect, must be ignored
	forged := h.factory.Create(protocol.PacketDisconnected).(*network.DisconnectedPacket)
	forged.ClientGUID = h.clientGUID
	forged.ServerGUID = testServerGUID + 1
	h.send(forged)
	h.tick(0.1)
	require.Equal(t, protocol.ClientStateSendingChallengeResponse, h.client.GetState())
	require.False(t, h.client.HasError())
}

func TestDisconnectedFromServer(t *testing.T) {
	h := newHarness(t, nil)
	h.connect()

	p := h.factory.Create(protocol.PacketDisconnected).(*network.DisconnectedPacket)
	p.ClientGUID = h.clientGUID
	p.ServerGUID = testServerGUID
	h.send(p)
	h.tick(0.1)

	require.True(t, h.client.IsDisconnected())
	require.Equal(t, protocol.ClientErrorDisconnectedFromServer, h.client.GetError())
}

func TestSendPacing(t *testing.T) {
	h := newHarness(t, nil)

	h.client.ConnectAddress(h.serverAddr)

	requests := 0
	for i := 0; i < 40; i++ { // 2 seconds in 0.05s ticks
		h.tick(0.05)
		for _, p := range h.drain() {
			if _, ok := p.(*network.ConnectionRequestPacket); ok {
				requests++
			}
		}
	}

	// 2s at the connecting send rate of 10/s
	require.InDelta(t, 20, requests, 1)
}

func TestErrorLatchedUntilNextConnect(t *testing.T) {
	h := newHarness(t, nil)

	h.client.ConnectAddress(h.serverAddr)
	h.captureClientGUID()

	p := h.factory.Create(protocol.PacketConnectionDenied).(*network.ConnectionDeniedPacket)
	p.ClientGUID = h.clientGUID
	p.Reason = 3
	h.send(p)
	h.tick(0.1)
	require.True(t, h.client.HasError())

	// the error survives further updates
	h.tick(0.1)
	require.True(t, h.client.HasError())

	// a new connect clears it
	h.client.ConnectAddress(h.serverAddr)
	require.False(t, h.client.HasError())
	require.Zero(t, h.client.GetExtendedError())
}

func TestReconnectRequiresNewHandshake(t *testing.T) {
	h := newHarness(t, nil)
	h.connect()

	firstGUID := h.clientGUID

	h.client.Disconnect()
	require.True(t, h.client.IsDisconnected())
	require.False(t, h.client.HasError())
	require.Equal(t, 1, countFarewells(h.drain()))

	h.client.ConnectAddress(h.serverAddr)
	h.captureClientGUID()
	require.NotEqual(t, firstGUID, h.clientGUID, "each connect generates a fresh guid")

	h.sendChallenge()
	h.tick(0.1)
	h.sendReadyForConnection()
	h.tick(0.1)
	h.sendConnectionKeepAlive()
	h.tick(0.1)
	require.True(t, h.client.IsConnected())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.connect()
	h.drain()

	h.client.Disconnect()
	h.client.Disconnect()
	require.Equal(t, 1, countFarewells(h.drain()))
}
