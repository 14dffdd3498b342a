package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvertiseRejectsBadPort(t *testing.T) {
	_, err := Advertise("board", 0)
	require.ErrorIs(t, err, ErrInvalidPort)
}

func TestToEntry(t *testing.T) {
	_, ok := toEntry(&mdns.ServiceEntry{Name: "x", Port: 8080})
	assert.False(t, ok, "entries without an IPv4 address are skipped")

	entry, ok := toEntry(&mdns.ServiceEntry{
		Name:       "board." + ServiceType + ".local.",
		AddrV4:     net.IPv4(192, 168, 1, 5),
		Port:       8080,
		InfoFields: []string{"whiteboard"},
	})
	require.True(t, ok)
	assert.Equal(t, Entry{Instance: "board", Addr: "192.168.1.5:8080", Info: []string{"whiteboard"}}, entry)
}
