package datablock

import (
	"github.com/jxsl13/protonet/network"
	"github.com/jxsl13/protonet/protocol"
)

// Receiver reassembles an incoming block from fragments. The first
// consistent fragment fixes the block descriptor; later fragments must
// agree with it or the receiver enters an error state.
type Receiver struct {
	fragmentSize int
	maxBlockSize int

	info    Info
	hasInfo bool

	blockSize    int
	numFragments int
	received     []bool
	numReceived  int
	data         []byte

	err Error
}

// NewReceiver creates a receiver that accepts blocks up to maxBlockSize,
// fragmented into fragmentSize pieces. fragmentSize is clamped to
// protocol.MaxFragmentSize.
func NewReceiver(fragmentSize, maxBlockSize int) *Receiver {
	if fragmentSize <= 0 || fragmentSize > protocol.MaxFragmentSize {
		fragmentSize = protocol.MaxFragmentSize
	}
	return &Receiver{
		fragmentSize: fragmentSize,
		maxBlockSize: maxBlockSize,
	}
}

// SetInfo installs the session identity used to emit fragment acks.
func (r *Receiver) SetInfo(info Info) {
	r.info = info
	r.hasInfo = true
}

// ProcessFragment consumes one fragment. Duplicates are a no-op; every
// accepted non-duplicate fragment is acknowledged to the sender.
func (r *Receiver) ProcessFragment(blockSize uint32, numFragments, fragmentID, fragmentBytes uint16, fragmentData []byte) {
	if r.err != ErrorNone {
		return
	}

	if r.data == nil {
		if int(blockSize) > r.maxBlockSize {
			r.err = ErrorBlockTooLarge
			return
		}
		expected := (int(blockSize) + r.fragmentSize - 1) / r.fragmentSize
		if int(numFragments) != expected {
			r.err = ErrorInvalidNumFragments
			return
		}
		r.blockSize = int(blockSize)
		r.numFragments = int(numFragments)
		r.received = make([]bool, r.numFragments)
		r.data = make([]byte, r.blockSize)
	} else if int(blockSize) != r.blockSize || int(numFragments) != r.numFragments {
		r.err = ErrorDescriptorMismatch
		return
	}

	if int(fragmentID) >= r.numFragments {
		r.err = ErrorInvalidFragmentID
		return
	}

	begin := int(fragmentID) * r.fragmentSize
	end := begin + r.fragmentSize
	if end > r.blockSize {
		end = r.blockSize
	}
	if int(fragmentBytes) != end-begin || len(fragmentData) < int(fragmentBytes) {
		r.err = ErrorInvalidFragmentBytes
		return
	}

	if r.received[fragmentID] {
		return
	}
	r.received[fragmentID] = true
	r.numReceived++
	copy(r.data[begin:end], fragmentData[:fragmentBytes])

	r.sendAck(fragmentID)
}

// IsError reports whether the receiver has failed.
func (r *Receiver) IsError() bool {
	return r.err != ErrorNone
}

// GetError exposes the typed failure.
func (r *Receiver) GetError() Error {
	return r.err
}

// GetBlock returns the reassembled block once every fragment has arrived,
// nil before that.
func (r *Receiver) GetBlock() []byte {
	if r.data == nil || r.numReceived != r.numFragments {
		return nil
	}
	return r.data
}

// Clear discards all per-block state so the receiver can be reused.
func (r *Receiver) Clear() {
	r.blockSize = 0
	r.numFragments = 0
	r.received = nil
	r.numReceived = 0
	r.data = nil
	r.err = ErrorNone
	r.info = Info{}
	r.hasInfo = false
}

func (r *Receiver) sendAck(fragmentID uint16) {
	if !r.hasInfo {
		return
	}

	p, ok := r.info.PacketFactory.Create(protocol.PacketDataBlockFragmentAck).(*network.DataBlockFragmentAckPacket)
	if !ok {
		return
	}
	p.ClientGUID = r.info.ClientGUID
	p.ServerGUID = r.info.ServerGUID
	p.FragmentID = fragmentID
	r.info.NetworkInterface.SendPacket(r.info.Address, p)
}
