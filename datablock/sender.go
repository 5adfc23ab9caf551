package datablock

import (
	"github.com/jxsl13/protonet/network"
	"github.com/jxsl13/protonet/protocol"
)

// Sender transmits an opaque byte block, fragmented into fixed-size pieces,
// rate-limited to a fragment budget per second. It is done once every
// fragment has been acknowledged.
//
// The block is borrowed and must outlive the sender.
type Sender struct {
	block              []byte
	fragmentSize       int
	fragmentsPerSecond float64

	info    Info
	hasInfo bool

	acked       []bool
	numAcked    int
	nextIndex   int
	accumulator float64
}

// NewSender creates a sender for the given block. fragmentSize is clamped
// to protocol.MaxFragmentSize.
func NewSender(block []byte, fragmentSize int, fragmentsPerSecond float64) *Sender {
	if fragmentSize <= 0 || fragmentSize > protocol.MaxFragmentSize {
		fragmentSize = protocol.MaxFragmentSize
	}

	s := &Sender{
		block:              block,
		fragmentSize:       fragmentSize,
		fragmentsPerSecond: fragmentsPerSecond,
	}
	s.acked = make([]bool, s.NumFragments())
	return s
}

// NumFragments is the total number of fragments of the block.
func (s *Sender) NumFragments() int {
	return (len(s.block) + s.fragmentSize - 1) / s.fragmentSize
}

// SetInfo installs the session identity used to emit fragment packets.
// Must be called before the first transmitting Update.
func (s *Sender) SetInfo(info Info) {
	s.info = info
	s.hasInfo = true
}

// Update accumulates elapsed time and sends one fragment per available
// budget slot, lowest unacked index first, wrapping at the end.
func (s *Sender) Update(t protocol.TimeBase) {
	if !s.hasInfo || s.SendCompleted() {
		return
	}

	s.accumulator += t.DeltaTime

	timeBetweenFragments := 1.0 / s.fragmentsPerSecond
	for s.accumulator >= timeBetweenFragments {
		s.accumulator -= timeBetweenFragments

		fragmentID, ok := s.nextUnacked()
		if !ok {
			return
		}
		s.sendFragment(fragmentID)
		s.nextIndex = fragmentID + 1
	}
}

// ProcessAck marks a fragment as acknowledged. Out-of-range ids are ignored.
func (s *Sender) ProcessAck(fragmentID int) {
	if fragmentID < 0 || fragmentID >= len(s.acked) {
		return
	}
	if s.acked[fragmentID] {
		return
	}
	s.acked[fragmentID] = true
	s.numAcked++
}

// SendCompleted reports whether every fragment has been acknowledged.
func (s *Sender) SendCompleted() bool {
	return s.numAcked == len(s.acked)
}

// Clear releases the per-send state so the sender can be reused.
func (s *Sender) Clear() {
	for i := range s.acked {
		s.acked[i] = false
	}
	s.numAcked = 0
	s.nextIndex = 0
	s.accumulator = 0
	s.info = Info{}
	s.hasInfo = false
}

// nextUnacked finds the first unacked fragment at or after nextIndex,
// wrapping to the lowest unacked when the end is reached.
func (s *Sender) nextUnacked() (int, bool) {
	for i := s.nextIndex; i < len(s.acked); i++ {
		if !s.acked[i] {
			return i, true
		}
	}
	for i := 0; i < s.nextIndex && i < len(s.acked); i++ {
		if !s.acked[i] {
			return i, true
		}
	}
	return 0, false
}

func (s *Sender) sendFragment(fragmentID int) {
	p, ok := s.info.PacketFactory.Create(protocol.PacketDataBlockFragment).(*network.DataBlockFragmentPacket)
	if !ok {
		return
	}

	begin := fragmentID * s.fragmentSize
	end := begin + s.fragmentSize
	if end > len(s.block) {
		end = len(s.block)
	}

	p.ClientGUID = s.info.ClientGUID
	p.ServerGUID = s.info.ServerGUID
	p.BlockSize = uint32(len(s.block))
	p.NumFragments = uint16(s.NumFragments())
	p.FragmentID = uint16(fragmentID)
	p.FragmentBytes = uint16(end - begin)
	p.FragmentData = append(p.FragmentData[:0], s.block[begin:end]...)

	s.info.NetworkInterface.SendPacket(s.info.Address, p)
}
