// Package spectrum runs periodic background energy scans across the 2.4 GHz
// Zigbee channels and stores the results for interference analysis.
package spectrum

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/urmzd/zigman/pkg/db"
	"github.com/urmzd/zigman/pkg/device"
)

const (
	defaultInterval = time.Hour
	scanPasses      = 3
	scanDuration    = 4 // duration exponent per 802.15.4 ED scan
	pruneDays       = 7
)

// Scanner is the slice of the radio the monitor needs. device.Radio
// satisfies it.
type Scanner interface {
	IsConnected() bool
	EnergyScan(ctx context.Context, channels []int, duration uint8) (map[int]float64, error)
}

// Monitor scans all channels on a fixed interval and keeps the latest
// results in memory for the API.
type Monitor struct {
	scanner  Scanner
	store    db.SpectrumStore
	interval time.Duration
	log      zerolog.Logger

	// Startup settle time before the first scheduled scan, shortened in tests.
	initialDelay time.Duration

	mu         sync.Mutex
	lastScan   map[int]int
	lastScanTS int64
}

// NewMonitor creates a monitor scanning every interval. A non-positive
// interval falls back to hourly.
func NewMonitor(scanner Scanner, store db.SpectrumStore, interval time.Duration, log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Monitor{
		scanner:      scanner,
		store:        store,
		interval:     interval,
		log:          log.With().Str("component", "spectrum").Logger(),
		initialDelay: time.Minute,
	}
}

// Run scans on the configured interval until the context is cancelled. The
// first scan waits out an initial settle delay so it does not compete with
// the network coming up.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info().Dur("interval", m.interval).Msg("Spectrum monitor started")

	select {
	case <-ctx.Done():
		return
	case <-time.After(m.initialDelay):
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		if _, err := m.Scan(ctx); err != nil && ctx.Err() == nil {
			m.log.Warn().Err(err).Msg("Background spectrum scan failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Scan runs one full sweep of channels 11-26 immediately, persists it and
// returns the per-channel energy (0-255).
func (m *Monitor) Scan(ctx context.Context) (map[int]int, error) {
	if !m.scanner.IsConnected() {
		return nil, device.ErrNotConnected
	}

	channels := make([]int, 0, 16)
	for ch := 11; ch <= 26; ch++ {
		channels = append(channels, ch)
	}

	// Several short passes averaged smooth out bursty interferers like Wi-Fi.
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for pass := 0; pass < scanPasses; pass++ {
		results, err := m.scanner.EnergyScan(ctx, channels, scanDuration)
		if err != nil {
			return nil, fmt.Errorf("energy scan pass %d: %w", pass+1, err)
		}
		for ch, energy := range results {
			sums[ch] += energy
			counts[ch]++
		}
	}

	clean := make(map[int]int, len(sums))
	for ch, sum := range sums {
		clean[ch] = int(sum / float64(counts[ch]))
	}

	if err := m.store.SaveScan(ctx, clean); err != nil {
		return nil, fmt.Errorf("save scan: %w", err)
	}
	if removed, err := m.store.Prune(ctx, pruneDays); err != nil {
		m.log.Warn().Err(err).Msg("Pruning spectrum history failed")
	} else if removed > 0 {
		m.log.Info().Int64("removed", removed).Msg("Spectrum history pruned")
	}

	m.mu.Lock()
	m.lastScan = clean
	m.lastScanTS = time.Now().Unix()
	m.mu.Unlock()

	m.log.Info().Int("channel", quietest(clean)).Msg("Spectrum scan complete, best channel estimate")
	return clean, nil
}

// Latest returns a copy of the most recent scan and its unix timestamp.
// The map is nil when no scan has completed yet.
func (m *Monitor) Latest() (map[int]int, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastScan == nil {
		return nil, 0
	}
	out := make(map[int]int, len(m.lastScan))
	for ch, e := range m.lastScan {
		out[ch] = e
	}
	return out, m.lastScanTS
}

func quietest(scan map[int]int) int {
	best, bestEnergy := 0, int(^uint(0)>>1)
	for ch, e := range scan {
		if e < bestEnergy || (e == bestEnergy && ch < best) {
			best, bestEnergy = ch, e
		}
	}
	return best
}
