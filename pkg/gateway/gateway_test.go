package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/zigman/pkg/db"
	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/fastpath"
	"github.com/urmzd/zigman/pkg/zones"
)

const (
	testIEEE = "00124b0012345678"
	testNWK  = uint16(0x1234)
)

type fakeRadio struct {
	device.Radio

	mu           sync.Mutex
	coordinator  string
	interviews   int
	interviewEP  []device.EndpointDescriptor
	interviewErr error
	registered   map[string]uint16
	permits      []uint8
	left         []string
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{
		Radio:       device.NewNullRadio(),
		coordinator: "00124b00c0ffee00",
		registered:  make(map[string]uint16),
	}
}

func (r *fakeRadio) CoordinatorIEEE() string { return r.coordinator }
func (r *fakeRadio) IsConnected() bool       { return true }

func (r *fakeRadio) PermitJoin(ctx context.Context, seconds uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.permits = append(r.permits, seconds)
	return nil
}

func (r *fakeRadio) Leave(ctx context.Context, addr device.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.left = append(r.left, addr.IEEE)
	return nil
}

func (r *fakeRadio) Interview(ctx context.Context, addr device.Address) ([]device.EndpointDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interviews++
	return r.interviewEP, r.interviewErr
}

func (r *fakeRadio) RegisterAddress(ieee string, nwk uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered[ieee] = nwk
}

func (r *fakeRadio) interviewCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interviews
}

func (r *fakeRadio) registeredNWK(ieee string) (uint16, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nwk, ok := r.registered[ieee]
	return nwk, ok
}

type recordedAttr struct {
	attrID uint16
	value  any
}

type recordedCmd struct {
	tsn     uint8
	command uint8
	payload []byte
}

type recHandler struct {
	device.BaseHandler

	mu         sync.Mutex
	attrs      []recordedAttr
	commands   []recordedCmd
	configured int
}

func (h *recHandler) Name() string { return "rec" }

func (h *recHandler) AttributeUpdated(attrID uint16, value any, ts time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attrs = append(h.attrs, recordedAttr{attrID: attrID, value: value})
}

func (h *recHandler) ClusterCommand(tsn uint8, commandID uint8, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, recordedCmd{tsn: tsn, command: commandID, payload: append([]byte(nil), payload...)})
}

func (h *recHandler) Configure(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.configured++
	return nil
}

func (h *recHandler) DiscoveryConfigs() []device.DiscoveryConfig {
	return []device.DiscoveryConfig{{Component: "switch", ObjectID: "state", Config: map[string]any{}}}
}

func (h *recHandler) On(ctx context.Context) device.CommandResult     { return device.OK() }
func (h *recHandler) Off(ctx context.Context) device.CommandResult    { return device.OK() }
func (h *recHandler) Toggle(ctx context.Context) device.CommandResult { return device.OK() }

func (h *recHandler) recordedAttrs() []recordedAttr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]recordedAttr(nil), h.attrs...)
}

func (h *recHandler) recordedCommands() []recordedCmd {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]recordedCmd(nil), h.commands...)
}

func (h *recHandler) configureCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.configured
}

type recRegistry struct {
	mu       sync.Mutex
	handlers map[string]*recHandler
}

func newRecRegistry() *recRegistry {
	return &recRegistry{handlers: make(map[string]*recHandler)}
}

func (r *recRegistry) Create(b *device.Binding) device.Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := &recHandler{BaseHandler: device.BaseHandler{Binding: b}}
	r.handlers[registryKey(b.Device.IEEE, b.Endpoint.ID, b.ClusterID)] = h
	return h
}

func (r *recRegistry) handler(ieee string, endpoint uint8, cluster uint16) *recHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handlers[registryKey(ieee, endpoint, cluster)]
}

func registryKey(ieee string, endpoint uint8, cluster uint16) string {
	return fmt.Sprintf("%s/%d/0x%04x", ieee, endpoint, cluster)
}

type fakeDiscovery struct {
	mu        sync.Mutex
	published map[string]int
	fragments map[string][]device.DiscoveryConfig
	removed   []string
}

func newFakeDiscovery() *fakeDiscovery {
	return &fakeDiscovery{
		published: make(map[string]int),
		fragments: make(map[string][]device.DiscoveryConfig),
	}
}

func (f *fakeDiscovery) PublishDiscovery(dev device.Device, fragments []device.DiscoveryConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[dev.IEEE]++
	f.fragments[dev.IEEE] = fragments
}

func (f *fakeDiscovery) RemoveDiscovery(ieee string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, ieee)
}

func (f *fakeDiscovery) publishCount(ieee string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[ieee]
}

func (f *fakeDiscovery) removedIEEEs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]*db.CacheEntry
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*db.CacheEntry)}
}

func (c *memCache) Get(ctx context.Context, ieee string) (*db.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ieee]
	if !ok {
		return nil, db.ErrCacheEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (c *memCache) Put(ctx context.Context, entry *db.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *entry
	c.entries[entry.IEEE] = &cp
	return nil
}

func (c *memCache) PutAll(ctx context.Context, entries []*db.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	for _, e := range entries {
		cp := *e
		c.entries[e.IEEE] = &cp
	}
	return nil
}

func (c *memCache) Delete(ctx context.Context, ieee string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[ieee]; !ok {
		return db.ErrCacheEntryNotFound
	}
	delete(c.entries, ieee)
	return nil
}

func (c *memCache) All(ctx context.Context) ([]*db.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*db.CacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (c *memCache) entry(ieee string) (*db.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ieee]
	return e, ok
}

func (c *memCache) putAllCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

type memNames struct {
	mu    sync.Mutex
	names map[string]string
}

func newMemNames() *memNames {
	return &memNames{names: make(map[string]string)}
}

func (n *memNames) Get(ctx context.Context, ieee string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	name, ok := n.names[ieee]
	if !ok {
		return "", db.ErrNameNotFound
	}
	return name, nil
}

func (n *memNames) Set(ctx context.Context, ieee, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.names[ieee] = name
	return nil
}

func (n *memNames) Delete(ctx context.Context, ieee string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.names[ieee]; !ok {
		return db.ErrNameNotFound
	}
	delete(n.names, ieee)
	return nil
}

func (n *memNames) All(ctx context.Context) (map[string]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]string, len(n.names))
	for k, v := range n.names {
		out[k] = v
	}
	return out, nil
}

type testEnv struct {
	gw       *Gateway
	engine   *device.Engine
	radio    *fakeRadio
	registry *recRegistry
	cache    *memCache
	names    *memNames
	disc     *fakeDiscovery
	events   *device.Broker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	radio := newFakeRadio()
	registry := newRecRegistry()
	events := device.NewBroker()
	engine := device.NewEngine(radio, registry, device.NewStatsTracker(), events, zerolog.Nop())
	decoder := fastpath.NewDecoder(engine, zerolog.Nop())
	manager := zones.NewManager(engine, radio, "zigman", zerolog.Nop())
	intake := zones.NewIntake(manager, zerolog.Nop())
	cache := newMemCache()
	names := newMemNames()
	disc := newFakeDiscovery()
	gw := New(engine, decoder, intake, cache, names, disc, zerolog.Nop())
	return &testEnv{
		gw:       gw,
		engine:   engine,
		radio:    radio,
		registry: registry,
		cache:    cache,
		names:    names,
		disc:     disc,
		events:   events,
	}
}

func (env *testEnv) addDevice(t *testing.T, clusters ...uint16) {
	t.Helper()
	if len(clusters) == 0 {
		clusters = []uint16{0x0006}
	}
	env.engine.AddDevice(testIEEE, testNWK, device.ProtocolZigbee)
	require.NoError(t, env.engine.SetEndpoints(testIEEE, []device.EndpointDescriptor{{
		ID:         1,
		ProfileID:  0x0104,
		InClusters: clusters,
	}}))
}

func waitEvent(t *testing.T, ch chan device.Event, eventType string) device.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Type == eventType {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", eventType)
			return device.Event{}
		}
	}
}

// On/Off attribute report: FC 0x18 (global, server to client), seq 0x2A,
// Report Attributes, attr 0x0000 bool true.
var onOffReport = []byte{0x18, 0x2A, 0x0A, 0x00, 0x00, 0x10, 0x01}

func zigbeePacket(cluster uint16, data []byte) device.Packet {
	return device.Packet{
		Src:         device.Address{IEEE: testIEEE, NWK: testNWK},
		SrcEndpoint: 1,
		DstEndpoint: 1,
		ProfileID:   0x0104,
		ClusterID:   cluster,
		LQI:         200,
		RSSI:        -40,
		HasLQI:      true,
		HasRSSI:     true,
		Data:        data,
	}
}

func TestProcessDispatchesAttributeReport(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t)

	env.gw.process(zigbeePacket(0x0006, onOffReport))

	h := env.registry.handler(testIEEE, 1, 0x0006)
	require.NotNil(t, h)
	attrs := h.recordedAttrs()
	require.Len(t, attrs, 1)
	assert.Equal(t, uint16(0x0000), attrs[0].attrID)
	assert.Equal(t, true, attrs[0].value)

	stats := env.engine.Stats().Snapshot()
	require.Contains(t, stats, testIEEE)
	assert.Equal(t, uint64(1), stats[testIEEE].RxPackets)
	assert.Equal(t, uint64(len(onOffReport)), stats[testIEEE].RxBytes)

	// Receiving traffic restores availability.
	assert.True(t, env.engine.DeviceAvailable(testIEEE))
}

func TestProcessDispatchesClusterCommand(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t, 0x0006, 0x0500)

	// IAS status change notification: FC 0x19 (cluster specific, server to
	// client), seq 0x33, command 0x00, zone status 0x0021.
	frame := []byte{0x19, 0x33, 0x00, 0x21, 0x00}
	env.gw.process(zigbeePacket(0x0500, frame))

	h := env.registry.handler(testIEEE, 1, 0x0500)
	require.NotNil(t, h)
	cmds := h.recordedCommands()
	require.Len(t, cmds, 1)
	assert.Equal(t, uint8(0x33), cmds[0].tsn)
	assert.Equal(t, uint8(0x00), cmds[0].command)
	assert.Equal(t, []byte{0x21, 0x00}, cmds[0].payload)
}

func TestProcessReadResponseFeedsState(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t)

	// Read Attributes Response: attr 0x0000, status success, bool false.
	frame := []byte{0x18, 0x11, 0x01, 0x00, 0x00, 0x00, 0x10, 0x00}
	env.gw.process(zigbeePacket(0x0006, frame))

	h := env.registry.handler(testIEEE, 1, 0x0006)
	attrs := h.recordedAttrs()
	require.Len(t, attrs, 1)
	assert.Equal(t, uint16(0x0000), attrs[0].attrID)
	assert.Equal(t, false, attrs[0].value)
}

func TestProcessDefaultResponseFailureCountsError(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t)

	// Default Response reporting UNSUP_CLUSTER_COMMAND for command 0x01.
	frame := []byte{0x18, 0x44, 0x0B, 0x01, 0x83}
	env.gw.process(zigbeePacket(0x0006, frame))

	stats, ok := env.engine.Stats().Device(testIEEE)
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.Errors)

	h := env.registry.handler(testIEEE, 1, 0x0006)
	assert.Empty(t, h.recordedAttrs())
}

func TestProcessMalformedFrameCountsError(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t)

	env.gw.process(zigbeePacket(0x0006, []byte{0x18}))

	stats, ok := env.engine.Stats().Device(testIEEE)
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.Errors)
}

func TestProcessZDOFrameSkipsDispatch(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t)

	pkt := zigbeePacket(0x8031, []byte{0x00, 0x01, 0x02})
	pkt.ProfileID = profileZDO
	env.gw.process(pkt)

	h := env.registry.handler(testIEEE, 1, 0x0006)
	assert.Empty(t, h.recordedAttrs())
	assert.Empty(t, h.recordedCommands())

	// The frame still counts for stats and availability.
	stats, ok := env.engine.Stats().Device(testIEEE)
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.RxPackets)
}

func TestProcessResolvesIEEEFromNWK(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t)

	pkt := zigbeePacket(0x0006, onOffReport)
	pkt.Src.IEEE = ""
	env.gw.process(pkt)

	stats := env.engine.Stats().Snapshot()
	assert.Contains(t, stats, testIEEE)

	h := env.registry.handler(testIEEE, 1, 0x0006)
	assert.Len(t, h.recordedAttrs(), 1)
}

func TestProcessUnknownDeviceIgnored(t *testing.T) {
	env := newTestEnv(t)

	pkt := zigbeePacket(0x0006, onOffReport)
	pkt.Src.IEEE = ""
	pkt.Src.NWK = 0xBEEF
	env.gw.process(pkt)

	assert.Empty(t, env.engine.Stats().Snapshot())
}

func TestHandlePacketQueueOverflowDrops(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < packetQueueSize+5; i++ {
		env.gw.HandlePacket(device.Packet{Src: device.Address{NWK: uint16(i)}})
	}
	assert.Equal(t, uint64(5), env.gw.Dropped())
}

func TestRunDrainsQueue(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.gw.Run(ctx)

	env.gw.HandlePacket(zigbeePacket(0x0006, onOffReport))

	h := env.registry.handler(testIEEE, 1, 0x0006)
	require.Eventually(t, func() bool { return len(h.recordedAttrs()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestJoinInterviewsConfiguresAndAnnounces(t *testing.T) {
	env := newTestEnv(t)
	env.radio.interviewEP = []device.EndpointDescriptor{{
		ID:         1,
		ProfileID:  0x0104,
		InClusters: []uint16{0x0006},
	}}
	events := env.events.Subscribe()
	defer env.events.Unsubscribe(events)

	env.gw.onDeviceJoined(testIEEE, testNWK)

	dev, ok := env.engine.Device(testIEEE)
	require.True(t, ok)
	assert.Len(t, dev.Endpoints, 1)
	assert.True(t, dev.Available)

	h := env.registry.handler(testIEEE, 1, 0x0006)
	require.NotNil(t, h)
	assert.Equal(t, 1, h.configureCount())
	assert.Equal(t, 1, env.disc.publishCount(testIEEE))

	evt := waitEvent(t, events, device.EventDeviceJoined)
	assert.Equal(t, testIEEE, evt.IEEE)
	assert.Equal(t, true, evt.Data["new"])
}

func TestRejoinSkipsInterviewButReconfigures(t *testing.T) {
	env := newTestEnv(t)
	env.radio.interviewEP = []device.EndpointDescriptor{{
		ID:         1,
		ProfileID:  0x0104,
		InClusters: []uint16{0x0006},
	}}

	env.gw.onDeviceJoined(testIEEE, testNWK)
	env.gw.onDeviceJoined(testIEEE, 0x5678)

	assert.Equal(t, 1, env.radio.interviewCount())

	h := env.registry.handler(testIEEE, 1, 0x0006)
	assert.Equal(t, 2, h.configureCount())

	dev, _ := env.engine.Device(testIEEE)
	assert.Equal(t, uint16(0x5678), dev.NWK)
}

func TestJoinRestoresPersistedName(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.names.Set(context.Background(), testIEEE, "hallway motion"))

	env.gw.onDeviceJoined(testIEEE, testNWK)

	dev, ok := env.engine.Device(testIEEE)
	require.True(t, ok)
	assert.Equal(t, "hallway motion", dev.FriendlyName)
}

func TestJoinInterviewFailureKeepsShellDevice(t *testing.T) {
	env := newTestEnv(t)
	env.radio.interviewErr = errors.New("no response")

	env.gw.onDeviceJoined(testIEEE, testNWK)

	dev, ok := env.engine.Device(testIEEE)
	require.True(t, ok)
	assert.Empty(t, dev.Endpoints)
	assert.Equal(t, 0, env.disc.publishCount(testIEEE))
}

func TestDeviceLeftCleansUp(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t)
	require.NoError(t, env.cache.Put(context.Background(), &db.CacheEntry{IEEE: testIEEE, State: []byte("{}")}))
	events := env.events.Subscribe()
	defer env.events.Unsubscribe(events)

	env.gw.onDeviceLeft(testIEEE, false)

	assert.False(t, env.engine.DeviceExists(testIEEE))
	assert.Contains(t, env.disc.removedIEEEs(), testIEEE)
	_, ok := env.cache.entry(testIEEE)
	assert.False(t, ok)

	evt := waitEvent(t, events, device.EventDeviceLeft)
	assert.Equal(t, testIEEE, evt.IEEE)
}

func TestDeviceLeftUnknownDeviceIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.gw.onDeviceLeft(testIEEE, false)
	assert.Empty(t, env.disc.removedIEEEs())
}

func TestRemoveDeviceLeavesNetworkAndForgetsName(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t)
	require.NoError(t, env.names.Set(context.Background(), testIEEE, "old name"))

	require.NoError(t, env.gw.RemoveDevice(context.Background(), testIEEE))

	env.radio.mu.Lock()
	left := append([]string(nil), env.radio.left...)
	env.radio.mu.Unlock()
	assert.Contains(t, left, testIEEE)
	assert.False(t, env.engine.DeviceExists(testIEEE))
	_, err := env.names.Get(context.Background(), testIEEE)
	assert.ErrorIs(t, err, db.ErrNameNotFound)
}

func TestRemoveDeviceUnknown(t *testing.T) {
	env := newTestEnv(t)
	err := env.gw.RemoveDevice(context.Background(), testIEEE)
	assert.ErrorIs(t, err, device.ErrNotFound)
}

func TestRenameDevicePersistsAndRepublishes(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t)

	require.NoError(t, env.gw.RenameDevice(context.Background(), testIEEE, "kitchen light"))

	dev, _ := env.engine.Device(testIEEE)
	assert.Equal(t, "kitchen light", dev.FriendlyName)
	name, err := env.names.Get(context.Background(), testIEEE)
	require.NoError(t, err)
	assert.Equal(t, "kitchen light", name)
	assert.Equal(t, 1, env.disc.publishCount(testIEEE))
}

func TestRestoreRebuildsRegistry(t *testing.T) {
	env := newTestEnv(t)

	// Build a cache document the way a previous run would have.
	aux := device.NewEngine(device.NewNullRadio(), newRecRegistry(), device.NewStatsTracker(), device.NewBroker(), zerolog.Nop())
	aux.AddDevice(testIEEE, testNWK, device.ProtocolZigbee)
	require.NoError(t, aux.SetEndpoints(testIEEE, []device.EndpointDescriptor{{
		ID:         1,
		ProfileID:  0x0104,
		InClusters: []uint16{0x0006},
	}}))
	aux.UpdateState(testIEEE, map[string]any{"state": "ON"})
	docs := aux.DirtyDocuments()
	require.Contains(t, docs, testIEEE)

	require.NoError(t, env.cache.Put(context.Background(), &db.CacheEntry{
		IEEE:     testIEEE,
		State:    docs[testIEEE],
		LastSeen: 1700000000000,
	}))
	require.NoError(t, env.names.Set(context.Background(), testIEEE, "kitchen light"))

	require.NoError(t, env.gw.Restore(context.Background()))

	dev, ok := env.engine.Device(testIEEE)
	require.True(t, ok)
	assert.Equal(t, testNWK, dev.NWK)
	assert.Equal(t, "kitchen light", dev.FriendlyName)
	assert.Equal(t, "ON", dev.State["state"])
	assert.Len(t, dev.Endpoints, 1)
	assert.False(t, dev.Available)

	nwk, ok := env.radio.registeredNWK(testIEEE)
	require.True(t, ok)
	assert.Equal(t, testNWK, nwk)

	// The handler table is rebuilt so inbound frames dispatch immediately.
	assert.NotNil(t, env.registry.handler(testIEEE, 1, 0x0006))
}

func TestRestoreDropsCorruptDocument(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.cache.Put(context.Background(), &db.CacheEntry{
		IEEE:  testIEEE,
		State: []byte("{not json"),
	}))

	require.NoError(t, env.gw.Restore(context.Background()))
	assert.False(t, env.engine.DeviceExists(testIEEE))
}

func TestFlushCachePersistsDirtyDocuments(t *testing.T) {
	env := newTestEnv(t)
	env.addDevice(t)
	env.engine.UpdateState(testIEEE, map[string]any{"state": "ON"})

	env.gw.flushCache(context.Background())

	entry, ok := env.cache.entry(testIEEE)
	require.True(t, ok)
	assert.NotEmpty(t, entry.State)
	assert.Greater(t, entry.LastSeen, int64(0))
	assert.Equal(t, 1, env.cache.putAllCalls())

	// Nothing dirty: no write.
	env.gw.flushCache(context.Background())
	assert.Equal(t, 1, env.cache.putAllCalls())
}

func TestPermitJoinTracksWindow(t *testing.T) {
	env := newTestEnv(t)
	events := env.events.Subscribe()
	defer env.events.Unsubscribe(events)

	require.NoError(t, env.gw.PermitJoin(context.Background(), 60))

	env.radio.mu.Lock()
	permits := append([]uint8(nil), env.radio.permits...)
	env.radio.mu.Unlock()
	assert.Equal(t, []uint8{60}, permits)
	assert.InDelta(t, 60, env.gw.PermitJoinRemaining(), 1)

	evt := waitEvent(t, events, device.EventPermitJoin)
	assert.Equal(t, true, evt.Data["enabled"])
	assert.Equal(t, 60, evt.Data["duration"])

	require.NoError(t, env.gw.PermitJoin(context.Background(), 0))
	assert.Equal(t, 0, env.gw.PermitJoinRemaining())
}
