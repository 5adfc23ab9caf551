package protocol

const (
	// MaxPacketSize is the largest serialized packet accepted on the wire,
	// header included.
	MaxPacketSize = 1400

	// MaxFragmentSize bounds the payload of a single data block fragment.
	MaxFragmentSize = 1024

	// MaxHostName bounds the hostname string kept while resolving.
	MaxHostName = 256
)
