// Package connection implements the reliability engine a connected client
// drives: per-channel message multiplexing with vital (reliable ordered)
// and volatile chunks, ack-driven retransmission and Huffman-compressed
// chunk payloads.
package connection

import (
	"errors"
	"fmt"

	"github.com/jxsl13/protonet/compression"
	"github.com/jxsl13/protonet/network"
	"github.com/jxsl13/protonet/protocol"
)

const (
	// MaxSequence is the first invalid vital sequence number; it is used
	// as the modulo operand of the sequence space.
	MaxSequence = 1 << 10

	// maxResendChunks bounds the buffer of sent but unacked vital chunks.
	maxResendChunks = 256

	// resendDelay is how long a vital chunk stays unacked before it is
	// scheduled for retransmission.
	resendDelay = 0.25

	chunkFlagVital      byte = 1
	chunkFlagCompressed byte = 2
)

var (
	ErrMissingPacketFactory    = errors.New("packet factory is required")
	ErrMissingChannelStructure = errors.New("channel structure is required")
	ErrMessageTooLarge         = errors.New("message too large")
)

// Config configures a connection.
type Config struct {
	// PacketType is the wire tag the engine's packets are created with.
	PacketType protocol.PacketType

	// MaxPacketSize bounds the serialized size of a written packet.
	MaxPacketSize int

	// PacketFactory creates the connection packets. Borrowed, not owned.
	PacketFactory network.PacketFactory

	// ChannelStructure describes the multiplexed channels.
	ChannelStructure *ChannelStructure
}

// Message is a payload delivered on a channel.
type Message struct {
	Channel int
	Data    []byte
}

type chunk struct {
	channel  uint8
	vital    bool
	sequence int
	data     []byte
}

type pendingChunk struct {
	chunk
	lastSendTime float64
}

// Connection multiplexes channel messages over connection packets.
// It is single-threaded and driven by its owner via Update.
type Connection struct {
	config  Config
	huffman *compression.Huffman

	timeBase protocol.TimeBase

	sequence  int // next vital sequence to assign
	recvNext  int // next vital sequence expected from the peer
	sendQueue []chunk
	resend    []pendingChunk
	received  []Message

	err Error
}

// NewConnection creates a connection for the given config.
func NewConnection(config Config) (*Connection, error) {
	if config.PacketFactory == nil {
		return nil, ErrMissingPacketFactory
	}
	if config.ChannelStructure == nil {
		return nil, ErrMissingChannelStructure
	}
	if config.MaxPacketSize <= 0 {
		config.MaxPacketSize = protocol.MaxPacketSize
	}

	return &Connection{
		config:  config,
		huffman: compression.NewHuffman(compression.DefaultFrequencyTable),
	}, nil
}

// SendMessage queues data on the given channel for the next written packet.
// The data is copied.
func (c *Connection) SendMessage(channel int, data []byte) error {
	if channel < 0 || channel >= c.config.ChannelStructure.NumChannels() {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	// flags, channel, sequence and size precede the data in a chunk
	if len(data) > c.maxChunkPayload()-6 {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	ch := chunk{
		channel: uint8(channel),
		vital:   c.config.ChannelStructure.Channel(channel).Reliable,
		data:    append([]byte(nil), data...),
	}
	if ch.vital {
		ch.sequence = c.sequence
		c.sequence = (c.sequence + 1) % MaxSequence
	}
	c.sendQueue = append(c.sendQueue, ch)
	return nil
}

// ReceiveMessage pops the next delivered message.
func (c *Connection) ReceiveMessage() (Message, bool) {
	if len(c.received) == 0 {
		return Message{}, false
	}
	m := c.received[0]
	c.received = c.received[1:]
	return m, true
}

// Update ticks the engine.
func (c *Connection) Update(t protocol.TimeBase) {
	c.timeBase = t
}

// GetError exposes the latched error surface.
func (c *Connection) GetError() Error {
	return c.err
}

// Reset returns the connection to its initial state for a new session.
func (c *Connection) Reset() {
	c.sequence = 0
	c.recvNext = 0
	c.sendQueue = nil
	c.resend = nil
	c.received = nil
	c.err = ErrorNone
}

// WritePacket drains due retransmissions and queued chunks into a new
// connection packet. It always returns a packet; an empty one doubles as
// a keep-alive.
func (c *Connection) WritePacket() network.Packet {
	p, ok := c.config.PacketFactory.Create(c.config.PacketType).(*network.ConnectionPacket)
	if !ok {
		return nil
	}

	var (
		chunks    = compression.NewPacker()
		scratch   = compression.NewPacker()
		numChunks = 0
		budget    = c.maxChunkPayload()
	)

	appendChunk := func(ch chunk) bool {
		if numChunks == 255 {
			return false
		}
		scratch.Reset()
		c.packChunk(scratch, ch)
		if chunks.Size()+scratch.Size() > budget {
			return false
		}
		chunks.AddBytes(scratch.Bytes())
		numChunks++
		return true
	}

	// retransmissions first, oldest sequence up front
	for i := range c.resend {
		pending := &c.resend[i]
		if pending.lastSendTime+resendDelay > c.timeBase.Time {
			continue
		}
		if !appendChunk(pending.chunk) {
			break
		}
		pending.lastSendTime = c.timeBase.Time
	}

	for len(c.sendQueue) > 0 {
		ch := c.sendQueue[0]
		if ch.vital && len(c.resend) == maxResendChunks {
			c.err = ErrorReliableOverflow
			break
		}
		if !appendChunk(ch) {
			break
		}
		c.sendQueue = c.sendQueue[1:]

		if ch.vital {
			c.resend = append(c.resend, pendingChunk{chunk: ch, lastSendTime: c.timeBase.Time})
		}
	}

	body := compression.NewPacker()
	body.AddUint16(uint16(c.recvNext))
	body.AddByte(byte(numChunks))
	body.AddBytes(chunks.Bytes())

	p.Payload = append([]byte(nil), body.Bytes()...)
	return p
}

// ReadPacket consumes an inbound connection packet. It reports whether the
// packet was accepted; malformed packets are dropped without error.
func (c *Connection) ReadPacket(p *network.ConnectionPacket) bool {
	u := compression.NewUnpacker(p.Payload)

	ack, err := u.NextUint16()
	if err != nil || int(ack) >= MaxSequence {
		return false
	}
	c.processAck(int(ack))

	numChunks, err := u.NextByte()
	if err != nil {
		return false
	}

	for i := 0; i < int(numChunks); i++ {
		ch, err := c.unpackChunk(u)
		if err != nil {
			return false
		}
		c.deliver(ch)
	}
	return true
}

func (c *Connection) maxChunkPayload() int {
	return c.config.MaxPacketSize - 64
}

func (c *Connection) packChunk(packer *compression.Packer, ch chunk) {
	flags := byte(0)
	data := ch.data

	compressed := make([]byte, len(ch.data))
	if n, err := c.huffman.Compress(ch.data, compressed); err == nil && n < len(ch.data) {
		flags |= chunkFlagCompressed
		data = compressed[:n]
	}
	if ch.vital {
		flags |= chunkFlagVital
	}

	packer.AddByte(flags)
	packer.AddByte(ch.channel)
	if ch.vital {
		packer.AddUint16(uint16(ch.sequence))
	}
	packer.AddUint16(uint16(len(data)))
	packer.AddBytes(data)
}

func (c *Connection) unpackChunk(u *compression.Unpacker) (chunk, error) {
	var ch chunk

	flags, err := u.NextByte()
	if err != nil {
		return ch, err
	}
	ch.vital = flags&chunkFlagVital != 0

	channel, err := u.NextByte()
	if err != nil {
		return ch, err
	}
	ch.channel = channel

	if ch.vital {
		sequence, err := u.NextUint16()
		if err != nil {
			return ch, err
		}
		if int(sequence) >= MaxSequence {
			return ch, fmt.Errorf("sequence %d out of range", sequence)
		}
		ch.sequence = int(sequence)
	}

	size, err := u.NextUint16()
	if err != nil {
		return ch, err
	}
	data, err := u.NextBytes(int(size))
	if err != nil {
		return ch, err
	}

	if flags&chunkFlagCompressed != 0 {
		decompressed := make([]byte, c.maxChunkPayload())
		n, err := c.huffman.Decompress(data, decompressed)
		if err != nil {
			return ch, err
		}
		ch.data = decompressed[:n]
	} else {
		ch.data = append([]byte(nil), data...)
	}

	if int(ch.channel) >= c.config.ChannelStructure.NumChannels() {
		return ch, fmt.Errorf("%w: %d", ErrInvalidChannel, ch.channel)
	}
	return ch, nil
}

func (c *Connection) processAck(ack int) {
	// everything below the peer's next expected sequence is delivered
	ackedBelow := (ack - 1 + MaxSequence) % MaxSequence

	kept := c.resend[:0]
	for _, pending := range c.resend {
		if !isSeqInBackroom(pending.sequence, ackedBelow) {
			kept = append(kept, pending)
		}
	}
	c.resend = kept
}

func (c *Connection) deliver(ch chunk) {
	if ch.vital {
		switch {
		case ch.sequence == c.recvNext:
			c.recvNext = (c.recvNext + 1) % MaxSequence
		case isSeqInBackroom(ch.sequence, (c.recvNext-1+MaxSequence)%MaxSequence):
			// duplicate of an already delivered chunk
			return
		default:
			// ahead of the expected sequence, peer resends it
			return
		}
	}
	c.received = append(c.received, Message{Channel: int(ch.channel), Data: ch.data})
}

// isSeqInBackroom reports whether seq lies within the half sequence window
// at or behind ack.
func isSeqInBackroom(seq, ack int) bool {
	bottom := ack - MaxSequence/2
	if bottom < 0 {
		if seq <= ack {
			return true
		}
		if seq >= bottom+MaxSequence {
			return true
		}
	} else if seq <= ack && seq >= bottom {
		return true
	}
	return false
}
