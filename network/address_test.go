package network

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
		port  uint16
	}{
		{"127.0.0.1:8080", true, 8080},
		{"10.0.0.1:0", true, 0},
		{"[::1]:9000", true, 9000},
		{"192.168.1.1", true, 0},
		{"game.example.com", false, 0},
		{"game.example.com:9000", false, 0},
		{"", false, 0},
	}

	for _, tt := range tests {
		addr := ParseAddress(tt.in)
		require.Equal(t, tt.valid, addr.IsValid(), tt.in)
		if tt.valid {
			require.Equal(t, tt.port, addr.Port(), tt.in)
		}
	}
}

func TestAddressEqual(t *testing.T) {
	a := ParseAddress("10.0.0.1:5000")
	b := ParseAddress("10.0.0.1:5000")
	c := ParseAddress("10.0.0.1:5001")

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(NilAddress))
}

func TestAddressSetPort(t *testing.T) {
	addr := ParseAddress("10.0.0.1:0")
	require.Zero(t, addr.Port())

	addr.SetPort(9000)
	require.Equal(t, uint16(9000), addr.Port())
	require.Equal(t, "10.0.0.1:9000", addr.String())
}
