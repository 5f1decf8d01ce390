package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCapabilityHas(t *testing.T) {
	t.Parallel()

	caps := CapCreate | CapPredict | CapDescribe
	require.True(t, caps.Has(CapCreate))
	require.True(t, caps.Has(CapCreate|CapPredict))
	require.True(t, caps.Has(BaseCapabilities))
	require.False(t, caps.Has(CapUpdate))
	require.False(t, caps.Has(CapDescribe|CapConnect))
}

func TestCapabilityString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "create|predict", BaseCapabilities.String())
	require.Equal(t, "none", Capability(0).String())
	require.Equal(t,
		"create|predict|update|describe|connect",
		(CapCreate | CapPredict | CapUpdate | CapDescribe | CapConnect).String())
}

func TestCapabilityList(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"create", "connect"}, (CapCreate | CapConnect).List())
	require.Nil(t, Capability(0).List())
}

func TestParseCapability(t *testing.T) {
	t.Parallel()

	cap, ok := ParseCapability("update")
	require.True(t, ok)
	require.Equal(t, CapUpdate, cap)

	_, ok = ParseCapability("train")
	require.False(t, ok)
}
