package compression

import "encoding/binary"

// NewPacker creates a new Packer with a default buffer size.
// You can provide ONE optional buffer that is used instead of the default one.
func NewPacker(buf ...[]byte) *Packer {
	var internalBuf []byte
	if len(buf) > 0 {
		internalBuf = buf[0]
	} else {
		internalBuf = make([]byte, 0, packerBufferSize)
	}

	return &Packer{
		buffer: internalBuf,
	}
}

// Packer serializes wire fields into a byte buffer.
// Multi-byte integers are packed little-endian.
type Packer struct {
	buffer []byte
}

// Bytes returns the underlying buffer
func (p *Packer) Bytes() []byte {
	return p.buffer
}

// Reset internal buffer
func (p *Packer) Reset(buf ...[]byte) {
	if len(buf) > 0 {
		p.buffer = append(p.buffer[:0], buf[0]...)
	} else if p.buffer != nil {
		p.buffer = p.buffer[:0]
	} else {
		p.buffer = make([]byte, 0, packerBufferSize)
	}
}

// Size is the len of the buffer
func (p *Packer) Size() int {
	return len(p.buffer)
}

func (p *Packer) AddByte(b byte) {
	p.buffer = append(p.buffer, b)
}

func (p *Packer) AddUint16(u uint16) {
	p.buffer = binary.LittleEndian.AppendUint16(p.buffer, u)
}

func (p *Packer) AddUint32(u uint32) {
	p.buffer = binary.LittleEndian.AppendUint32(p.buffer, u)
}

func (p *Packer) AddUint64(u uint64) {
	p.buffer = binary.LittleEndian.AppendUint64(p.buffer, u)
}

func (p *Packer) AddInt(i int) {
	p.buffer = AppendVarint(p.buffer, i)
}

func (p *Packer) AddString(s string) {
	p.buffer = append(p.buffer, []byte(s)...)
	p.buffer = append(p.buffer, StringTerminator)
}

func (p *Packer) AddBytes(data []byte) {
	p.buffer = append(p.buffer, data...)
}
