package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRandomEndpoint(t *testing.T) {
	t.Run("successful selection from multiple endpoints", func(t *testing.T) {
		endpoints := []string{
			"https://api.mainnet-beta.solana.com",
			"https://mainnet.helius-rpc.com",
			"https://rpc.ankr.com/solana",
		}

		selected, err := SelectRandomEndpoint(endpoints)
		require.NoError(t, err)
		assert.Contains(t, endpoints, selected)
	})

	t.Run("single endpoint", func(t *testing.T) {
		selected, err := SelectRandomEndpoint([]string{"https://api.mainnet-beta.solana.com"})
		require.NoError(t, err)
		assert.Equal(t, "https://api.mainnet-beta.solana.com", selected)
	})

	t.Run("error on empty list", func(t *testing.T) {
		_, err := SelectRandomEndpoint(nil)
		assert.ErrorContains(t, err, "no RPC endpoints configured")
	})
}

func TestSplitEndpoints(t *testing.T) {
	got := SplitEndpoints(" https://a.example , ,https://b.example")

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, got)
	assert.Empty(t, SplitEndpoints(""))
}
