package ice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServers_StunOnly(t *testing.T) {
	p := NewProvider("", "", "")

	servers := p.Servers()
	require.Len(t, servers, 2)
	for _, s := range servers {
		require.Len(t, s.URLs, 1)
		require.Contains(t, s.URLs[0], "stun:")
		require.Empty(t, s.Username)
	}
}

func TestServers_WithTURN(t *testing.T) {
	p := NewProvider("turn:turn.example.org:3478", "lounge", "s3cret")

	servers := p.Servers()
	require.Len(t, servers, 3)

	turn := servers[2]
	require.Equal(t, []string{"turn:turn.example.org:3478"}, turn.URLs)
	require.Equal(t, "lounge", turn.Username)
	require.Equal(t, "s3cret", turn.Credential)
}

func TestServers_FreshSlice(t *testing.T) {
	p := NewProvider("", "", "")

	a := p.Servers()
	a[0].URLs[0] = "stun:tampered.example.org"
	b := p.Servers()
	require.Equal(t, "stun:stun.l.google.com:19302", b[0].URLs[0])
}
