package network

import (
	"fmt"
	"net/netip"
)

// NilAddress is the zero value of Address
var NilAddress Address

// Address is an IP endpoint of a session. The zero value is invalid;
// use IsValid to distinguish a parsed address from a string that is
// probably a hostname.
type Address struct {
	addr netip.Addr
	port uint16
}

// ParseAddress parses an address from an "ip:port" or bare "ip" string.
// Anything else, in particular a hostname, yields NilAddress.
func ParseAddress(s string) Address {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return Address{addr: ap.Addr(), port: ap.Port()}
	}
	if a, err := netip.ParseAddr(s); err == nil {
		return Address{addr: a}
	}
	return NilAddress
}

// AddressFrom builds an Address from its parts.
func AddressFrom(addr netip.Addr, port uint16) Address {
	return Address{addr: addr, port: port}
}

// AddressFromAddrPort converts a netip.AddrPort into an Address.
func AddressFromAddrPort(ap netip.AddrPort) Address {
	return Address{addr: ap.Addr(), port: ap.Port()}
}

// IsValid reports whether the address carries a parsed IP.
func (a Address) IsValid() bool {
	return a.addr.IsValid()
}

func (a Address) Addr() netip.Addr {
	return a.addr
}

func (a Address) Port() uint16 {
	return a.port
}

func (a *Address) SetPort(port uint16) {
	a.port = port
}

func (a Address) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(a.addr, a.port)
}

// Equal reports whether two addresses name the same endpoint.
func (a Address) Equal(o Address) bool {
	return a == o
}

func (a Address) String() string {
	if !a.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%s:%d", a.addr, a.port)
}
