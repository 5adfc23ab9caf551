// Package compression provides the byte-level building blocks of the wire
// format: a packer/unpacker pair for fixed-width little-endian fields and
// variable-length integers, and a Huffman codec used to compress connection
// chunk payloads.
package compression

import "errors"

var (
	// ErrNoDataToUnpack is returned if the buffer does not hold enough data
	// for the requested field.
	ErrNoDataToUnpack = errors.New("no data to unpack")

	// ErrNotAString is returned if no terminator is found after a string.
	ErrNotAString = errors.New("could not unpack string: terminator not found")

	// ErrInvalidVarint is returned when a varint does not terminate within
	// its maximum width.
	ErrInvalidVarint = errors.New("invalid varint data")
)

const (
	// StringTerminator is the zero byte that terminates a packed string.
	StringTerminator byte = 0

	// maximum number of bytes a single varint may occupy
	maxBytesInVarint = 5

	// with how many bytes the packer buffer is initialized
	packerBufferSize = 2 * 1024
)
