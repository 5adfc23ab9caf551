package protocol

const (
	ClientErrorNone                    ClientError = 0
	ClientErrorInvalidConnectAddress   ClientError = 1
	ClientErrorMissingResolver         ClientError = 2
	ClientErrorResolveHostnameFailed   ClientError = 3
	ClientErrorConnectionRequestDenied ClientError = 4
	ClientErrorConnectionTimedOut      ClientError = 5
	ClientErrorDisconnectedFromServer  ClientError = 6
	ClientErrorConnectionError         ClientError = 7
	ClientErrorDataBlockError          ClientError = 8
)

// ClientError is the latched error code of a client session.
// A non-zero error implies the client is disconnected. The code stays
// latched until the next connect clears it.
type ClientError int

func (e ClientError) String() string {
	switch e {
	case ClientErrorNone:
		return "none"
	case ClientErrorInvalidConnectAddress:
		return "invalid connect address"
	case ClientErrorMissingResolver:
		return "missing resolver"
	case ClientErrorResolveHostnameFailed:
		return "resolve hostname failed"
	case ClientErrorConnectionRequestDenied:
		return "connection request denied"
	case ClientErrorConnectionTimedOut:
		return "connection timed out"
	case ClientErrorDisconnectedFromServer:
		return "disconnected from server"
	case ClientErrorConnectionError:
		return "connection error"
	case ClientErrorDataBlockError:
		return "data block error"
	}
	return "unknown"
}
