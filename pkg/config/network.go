package config

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Valid Zigbee channels span 11-26 (802.15.4, 2.4 GHz).
// preferredChannels orders them by how unlikely they are to overlap the
// common Wi-Fi deployments on channels 1/6/11.
var preferredChannels = []int{15, 20, 25, 26, 24, 19, 14, 13}

// placeholderPatterns mark values copied from a template config that were
// never filled in.
var placeholderPatterns = []string{
	"etc.", "example", "xxx", "your_", "change_me", "placeholder",
}

// EnsureNetworkCredentials fills in any missing or placeholder Zigbee
// network credentials and returns the names of fields it generated.
// The caller should Save when the returned slice is non-empty.
func (c *Config) EnsureNetworkCredentials() []string {
	var generated []string

	if c.Zigbee.Channel < 11 || c.Zigbee.Channel > 26 {
		c.Zigbee.Channel = preferredChannels[0]
		generated = append(generated, "channel")
	}
	if isPlaceholderString(c.Zigbee.PANID) {
		c.Zigbee.PANID = GeneratePANID()
		generated = append(generated, "pan_id")
	}
	if isPlaceholderBytes(c.Zigbee.ExtendedPANID, 8) {
		c.Zigbee.ExtendedPANID = randomBytes(8)
		generated = append(generated, "extended_pan_id")
	}
	if isPlaceholderBytes(c.Zigbee.NetworkKey, 16) {
		c.Zigbee.NetworkKey = randomBytes(16)
		generated = append(generated, "network_key")
	}

	return generated
}

// GeneratePANID returns a random 16-bit PAN ID in 0x0001-0xFFFE as four
// uppercase hex characters.
func GeneratePANID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(0xFFFE))
	if err != nil {
		return "1A62"
	}
	return fmt.Sprintf("%04X", n.Int64()+1)
}

// PANIDValue parses the configured PAN ID. Returns 0 when unparseable.
func (c *Config) PANIDValue() uint16 {
	var v uint16
	if _, err := fmt.Sscanf(c.Zigbee.PANID, "%04X", &v); err != nil {
		return 0
	}
	return v
}

// ExtendedPANIDBytes returns the extended PAN ID as the fixed-size array
// the radio expects. Out-of-range entries are truncated to a byte.
func (c *Config) ExtendedPANIDBytes() [8]byte {
	var out [8]byte
	for i := 0; i < len(out) && i < len(c.Zigbee.ExtendedPANID); i++ {
		out[i] = byte(c.Zigbee.ExtendedPANID[i])
	}
	return out
}

// NetworkKeyBytes returns the network key as the fixed-size array the
// radio expects.
func (c *Config) NetworkKeyBytes() [16]byte {
	var out [16]byte
	for i := 0; i < len(out) && i < len(c.Zigbee.NetworkKey); i++ {
		out[i] = byte(c.Zigbee.NetworkKey[i])
	}
	return out
}

func isPlaceholderString(v string) bool {
	if strings.TrimSpace(v) == "" {
		return true
	}
	lower := strings.ToLower(v)
	for _, p := range placeholderPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// isPlaceholderBytes reports whether a byte-list credential is absent,
// the wrong length, or out of byte range (a "etc." string in the YAML
// list parses to nothing useful and lands here as a bad length).
func isPlaceholderBytes(v []int, wantLen int) bool {
	if len(v) != wantLen {
		return true
	}
	for _, b := range v {
		if b < 0 || b > 255 {
			return true
		}
	}
	return false
}

func randomBytes(n int) []int {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	out := make([]int, len(buf))
	for i, v := range buf {
		out[i] = int(v)
	}
	return out
}

// SelectBestChannel picks the quietest channel from an energy scan,
// breaking ties by Wi-Fi overlap preference. Empty or invalid results
// fall back to the first preferred channel.
func SelectBestChannel(energy map[int]float64) int {
	best := -1
	bestEnergy := 256.0
	bestPref := len(preferredChannels) + 1

	for ch, e := range energy {
		if ch < 11 || ch > 26 {
			continue
		}
		pref := prefIndex(ch)
		if e < bestEnergy || (e == bestEnergy && pref < bestPref) {
			best = ch
			bestEnergy = e
			bestPref = pref
		}
	}

	if best == -1 {
		return preferredChannels[0]
	}
	return best
}

func prefIndex(ch int) int {
	for i, p := range preferredChannels {
		if p == ch {
			return i
		}
	}
	return len(preferredChannels)
}
