package device

import (
	"sync"
	"time"
)

// StatsTracker accumulates per-device packet counters plus a rolling 60 s
// window for per-minute rates. It is injected where needed rather than held
// as a package global.
type StatsTracker struct {
	mu      sync.Mutex
	devices map[string]*packetCounters
}

type packetCounters struct {
	rxPackets uint64
	txPackets uint64
	rxBytes   uint64
	txBytes   uint64
	errors    uint64
	retries   uint64
	rxWindow  []int64 // unix ms receive timestamps, pruned to 60 s
	txWindow  []int64
}

// PacketStats is a read-only snapshot of one device's counters.
type PacketStats struct {
	RxPackets   uint64  `json:"rx_packets"`
	TxPackets   uint64  `json:"tx_packets"`
	RxBytes     uint64  `json:"rx_bytes"`
	TxBytes     uint64  `json:"tx_bytes"`
	Errors      uint64  `json:"errors"`
	Retries     uint64  `json:"retries"`
	RxPerMinute float64 `json:"rx_per_minute"`
	TxPerMinute float64 `json:"tx_per_minute"`
}

// NewStatsTracker creates an empty tracker.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{devices: make(map[string]*packetCounters)}
}

func (t *StatsTracker) counters(ieee string) *packetCounters {
	c, ok := t.devices[ieee]
	if !ok {
		c = &packetCounters{}
		t.devices[ieee] = c
	}
	return c
}

// RecordRx counts a received packet.
func (t *StatsTracker) RecordRx(ieee string, size int) {
	now := time.Now().UnixMilli()
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.counters(ieee)
	c.rxPackets++
	c.rxBytes += uint64(size)
	c.rxWindow = pruneWindow(append(c.rxWindow, now), now)
}

// RecordTx counts a transmitted packet.
func (t *StatsTracker) RecordTx(ieee string, size int) {
	now := time.Now().UnixMilli()
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.counters(ieee)
	c.txPackets++
	c.txBytes += uint64(size)
	c.txWindow = pruneWindow(append(c.txWindow, now), now)
}

// RecordError counts a delivery or parse error.
func (t *StatsTracker) RecordError(ieee string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters(ieee).errors++
}

// RecordRetry counts a retransmission.
func (t *StatsTracker) RecordRetry(ieee string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters(ieee).retries++
}

// Snapshot returns per-device stats with per-minute rates over the rolling
// window.
func (t *StatsTracker) Snapshot() map[string]PacketStats {
	now := time.Now().UnixMilli()
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]PacketStats, len(t.devices))
	for ieee, c := range t.devices {
		c.rxWindow = pruneWindow(c.rxWindow, now)
		c.txWindow = pruneWindow(c.txWindow, now)
		out[ieee] = PacketStats{
			RxPackets:   c.rxPackets,
			TxPackets:   c.txPackets,
			RxBytes:     c.rxBytes,
			TxBytes:     c.txBytes,
			Errors:      c.errors,
			Retries:     c.retries,
			RxPerMinute: float64(len(c.rxWindow)),
			TxPerMinute: float64(len(c.txWindow)),
		}
	}
	return out
}

// Device returns the stats for one device.
func (t *StatsTracker) Device(ieee string) (PacketStats, bool) {
	snap := t.Snapshot()
	s, ok := snap[ieee]
	return s, ok
}

func pruneWindow(window []int64, now int64) []int64 {
	cutoff := now - 60_000
	i := 0
	for i < len(window) && window[i] < cutoff {
		i++
	}
	if i > 0 {
		window = append(window[:0], window[i:]...)
	}
	return window
}
