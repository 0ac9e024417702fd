package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCartLine(t *testing.T) {
	t.Run("amount only", func(t *testing.T) {
		line, err := parseCartLine("12:3")
		require.NoError(t, err)
		assert.Equal(t, int64(12), line.GiveawayID)
		assert.Equal(t, 3, line.Amount)
		assert.Empty(t, line.Numbers)
	})

	t.Run("with requested numbers", func(t *testing.T) {
		line, err := parseCartLine("4:2:7, 9")
		require.NoError(t, err)
		assert.Equal(t, []int{7, 9}, line.Numbers)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, raw := range []string{"4", "x:1", "4:y", "4:1:a", "1:2:3:4"} {
			_, err := parseCartLine(raw)
			assert.Error(t, err, raw)
		}
	})
}

func TestParseNumbers(t *testing.T) {
	numbers, err := parseNumbers("1,2,,3")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, numbers)

	_, err = parseNumbers(" , ")
	assert.Error(t, err)
}
