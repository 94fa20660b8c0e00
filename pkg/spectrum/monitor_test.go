package spectrum

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/zigman/pkg/db"
	"github.com/urmzd/zigman/pkg/device"
)

type fakeScanner struct {
	mu        sync.Mutex
	connected bool
	passes    []map[int]float64
	calls     int
	err       error
	scanned   chan struct{}
}

func (f *fakeScanner) IsConnected() bool { return f.connected }

func (f *fakeScanner) EnergyScan(ctx context.Context, channels []int, duration uint8) (map[int]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	results := f.passes[f.calls%len(f.passes)]
	f.calls++
	if f.scanned != nil {
		select {
		case f.scanned <- struct{}{}:
		default:
		}
	}
	return results, nil
}

func (f *fakeScanner) scanCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu       sync.Mutex
	saved    []map[int]int
	pruned   []int
	saveErr  error
	pruneErr error
}

func (f *fakeStore) SaveScan(ctx context.Context, results map[int]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, results)
	return nil
}

func (f *fakeStore) History(ctx context.Context, hours int) ([]db.SpectrumRecord, error) {
	return nil, nil
}

func (f *fakeStore) ChannelAverages(ctx context.Context, hours int) (map[int]float64, error) {
	return nil, nil
}

func (f *fakeStore) Prune(ctx context.Context, keepDays int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruned = append(f.pruned, keepDays)
	if f.pruneErr != nil {
		return 0, f.pruneErr
	}
	return 0, nil
}

func newTestMonitor(scanner *fakeScanner, store *fakeStore) *Monitor {
	m := NewMonitor(scanner, store, time.Hour, zerolog.Nop())
	m.initialDelay = time.Millisecond
	return m
}

func TestScanAveragesPasses(t *testing.T) {
	scanner := &fakeScanner{
		connected: true,
		passes: []map[int]float64{
			{11: 10, 15: 200},
			{11: 20, 15: 210},
			{11: 40, 15: 220},
		},
	}
	store := &fakeStore{}
	m := newTestMonitor(scanner, store)

	results, err := m.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, scanner.scanCalls())
	assert.Equal(t, 23, results[11]) // (10+20+40)/3 truncated
	assert.Equal(t, 210, results[15])

	require.Len(t, store.saved, 1)
	assert.Equal(t, results, store.saved[0])
	require.Len(t, store.pruned, 1)
	assert.Equal(t, 7, store.pruned[0])
}

func TestScanUpdatesLatest(t *testing.T) {
	scanner := &fakeScanner{
		connected: true,
		passes:    []map[int]float64{{11: 100}},
	}
	m := newTestMonitor(scanner, &fakeStore{})

	latest, ts := m.Latest()
	assert.Nil(t, latest)
	assert.Zero(t, ts)

	_, err := m.Scan(context.Background())
	require.NoError(t, err)

	latest, ts = m.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, 100, latest[11])
	assert.NotZero(t, ts)

	// Mutating the snapshot must not touch the monitor's copy.
	latest[11] = 0
	again, _ := m.Latest()
	assert.Equal(t, 100, again[11])
}

func TestScanNotConnected(t *testing.T) {
	m := newTestMonitor(&fakeScanner{connected: false}, &fakeStore{})
	_, err := m.Scan(context.Background())
	assert.ErrorIs(t, err, device.ErrNotConnected)
}

func TestScanPassFailure(t *testing.T) {
	scanErr := errors.New("scan already running")
	scanner := &fakeScanner{connected: true, err: scanErr}
	store := &fakeStore{}
	m := newTestMonitor(scanner, store)

	_, err := m.Scan(context.Background())
	assert.ErrorIs(t, err, scanErr)
	assert.Empty(t, store.saved)
}

func TestScanSaveFailure(t *testing.T) {
	scanner := &fakeScanner{connected: true, passes: []map[int]float64{{11: 50}}}
	store := &fakeStore{saveErr: errors.New("disk full")}
	m := newTestMonitor(scanner, store)

	_, err := m.Scan(context.Background())
	assert.Error(t, err)

	latest, _ := m.Latest()
	assert.Nil(t, latest)
}

func TestScanPruneFailureNonFatal(t *testing.T) {
	scanner := &fakeScanner{connected: true, passes: []map[int]float64{{11: 50}}}
	store := &fakeStore{pruneErr: errors.New("locked")}
	m := newTestMonitor(scanner, store)

	results, err := m.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, results[11])
}

func TestRunScansOnInterval(t *testing.T) {
	scanner := &fakeScanner{
		connected: true,
		passes:    []map[int]float64{{11: 10}},
		scanned:   make(chan struct{}, 16),
	}
	m := NewMonitor(scanner, &fakeStore{}, 5*time.Millisecond, zerolog.Nop())
	m.initialDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	// Each full sweep is three passes; wait for two sweeps' worth.
	for i := 0; i < 6; i++ {
		select {
		case <-scanner.scanned:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for background scans")
		}
	}
	cancel()
	<-done

	assert.GreaterOrEqual(t, scanner.scanCalls(), 6)
}

func TestRunStopsBeforeFirstScan(t *testing.T) {
	scanner := &fakeScanner{connected: true, passes: []map[int]float64{{11: 10}}}
	m := NewMonitor(scanner, &fakeStore{}, time.Hour, zerolog.Nop())
	m.initialDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Run(ctx)

	assert.Zero(t, scanner.scanCalls())
}

func TestQuietest(t *testing.T) {
	assert.Equal(t, 25, quietest(map[int]int{11: 80, 25: 12, 26: 40}))
	assert.Equal(t, 11, quietest(map[int]int{11: 5, 15: 5}))
}
