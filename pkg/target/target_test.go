package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListEncodeDecodeRoundTrip(t *testing.T) {
	list := List{
		{IP: "10.0.0.1", Port: 80, Hostname: "a.example.com", HostHeader: "a.example.com"},
		{IP: "10.0.0.2", Port: 443},
	}

	data, err := list.Encode()
	require.NoError(t, err)

	decoded, err := DecodeList(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, list[0].IP, decoded[0].IP)
	assert.Equal(t, list[0].Port, decoded[0].Port)
	assert.Equal(t, list[0].Hostname, decoded[0].Hostname)
	assert.Equal(t, list[0].HostHeader, decoded[0].HostHeader)
	assert.Equal(t, list[1].IP, decoded[1].IP)
}

func TestDecodeListEmptyBlob(t *testing.T) {
	decoded, err := DecodeList(nil)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestEffectiveHostnameDefaultsToIP(t *testing.T) {
	tg := &Target{IP: "10.0.0.1", Port: 80}
	assert.Equal(t, "10.0.0.1", tg.EffectiveHostname())

	tg.Hostname = "svc.local"
	assert.Equal(t, "svc.local", tg.EffectiveHostname())
}

func TestHealthVerdict(t *testing.T) {
	assert.True(t, Healthy.Verdict())
	assert.True(t, MostlyHealthy.Verdict())
	assert.False(t, Unhealthy.Verdict())
	assert.False(t, MostlyUnhealthy.Verdict())
}
