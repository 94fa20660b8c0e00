package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureNetworkCredentialsGeneratesAll(t *testing.T) {
	cfg := Default()

	generated := cfg.EnsureNetworkCredentials()

	assert.ElementsMatch(t, []string{"channel", "pan_id", "extended_pan_id", "network_key"}, generated)
	assert.Equal(t, 15, cfg.Zigbee.Channel)
	assert.Len(t, cfg.Zigbee.PANID, 4)
	assert.NotZero(t, cfg.PANIDValue())
	assert.Len(t, cfg.Zigbee.ExtendedPANID, 8)
	assert.Len(t, cfg.Zigbee.NetworkKey, 16)

	// Second call must be a no-op.
	assert.Empty(t, cfg.EnsureNetworkCredentials())
}

func TestEnsureNetworkCredentialsKeepsConfigured(t *testing.T) {
	cfg := Default()
	cfg.Zigbee = ZigbeeConfig{
		Channel:       20,
		PANID:         "BEEF",
		ExtendedPANID: []int{1, 2, 3, 4, 5, 6, 7, 8},
		NetworkKey:    []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	}

	assert.Empty(t, cfg.EnsureNetworkCredentials())
	assert.Equal(t, "BEEF", cfg.Zigbee.PANID)
	assert.Equal(t, 20, cfg.Zigbee.Channel)
}

func TestPlaceholderDetection(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"template example", "example_pan_id", true},
		{"template your", "YOUR_PAN_ID", true},
		{"template change me", "change_me", true},
		{"template xxx", "xxxx", true},
		{"real value", "1A2B", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isPlaceholderString(tt.value))
		})
	}
}

func TestPlaceholderBytes(t *testing.T) {
	assert.True(t, isPlaceholderBytes(nil, 8))
	assert.True(t, isPlaceholderBytes([]int{1, 2, 3}, 8), "wrong length")
	assert.True(t, isPlaceholderBytes([]int{1, 2, 3, 4, 5, 6, 7, 300}, 8), "out of range")
	assert.False(t, isPlaceholderBytes([]int{1, 2, 3, 4, 5, 6, 7, 8}, 8))
}

func TestSelectBestChannel(t *testing.T) {
	tests := []struct {
		name   string
		energy map[int]float64
		want   int
	}{
		{"empty falls back", nil, 15},
		{"lowest energy wins", map[int]float64{11: 90, 20: 12, 25: 40}, 20},
		{"tie broken by preference", map[int]float64{20: 30, 25: 30}, 20},
		{"invalid channels ignored", map[int]float64{5: 1, 40: 2, 26: 80}, 26},
		{"unpreferred channel still selectable", map[int]float64{12: 5, 15: 95}, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectBestChannel(tt.energy))
		})
	}
}
