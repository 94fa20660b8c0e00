// Package gateway wires the radio to the device engine: it implements the
// radio event callbacks, runs the inbound packet pipeline, drives join
// interviews and owns the persisted device cache.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/urmzd/zigman/pkg/db"
	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/fastpath"
	"github.com/urmzd/zigman/pkg/zcl"
	"github.com/urmzd/zigman/pkg/zones"
)

const (
	// Radio callbacks run on the EZSP read loop; the pipeline hands frames
	// to a worker so handlers may issue commands without stalling reads.
	packetQueueSize = 256

	interviewTimeout = 60 * time.Second
	configureTimeout = 30 * time.Second
	flushInterval    = 30 * time.Second
	shutdownTimeout  = 5 * time.Second

	profileZDO uint16 = 0x0000
)

// DiscoveryPublisher announces devices to Home Assistant. Implemented by the
// MQTT service.
type DiscoveryPublisher interface {
	PublishDiscovery(dev device.Device, fragments []device.DiscoveryConfig)
	RemoveDiscovery(ieee string)
}

// interviewer is the optional radio surface for endpoint discovery. The EZSP
// backend implements it; the null radio does not.
type interviewer interface {
	Interview(ctx context.Context, addr device.Address) ([]device.EndpointDescriptor, error)
}

// addressBook is the optional radio surface for seeding NWK<->IEEE mappings
// from restored devices.
type addressBook interface {
	RegisterAddress(ieee string, nwk uint16)
}

// Gateway is the orchestrator between the radio and the device engine. It
// implements the radio's event handler interface: packets flow through
// stats, availability, the zone intake tap and the fast path before normal
// cluster dispatch.
type Gateway struct {
	engine    *device.Engine
	decoder   *fastpath.Decoder
	intake    *zones.Intake
	cache     db.CacheStore
	names     db.NameStore
	discovery DiscoveryPublisher
	log       zerolog.Logger

	packets chan device.Packet
	dropped atomic.Uint64

	joinMu  sync.Mutex
	joining map[string]bool

	permitMu    sync.Mutex
	permitUntil time.Time
}

// New creates the gateway. discovery may be nil when no MQTT broker is
// configured.
func New(engine *device.Engine, decoder *fastpath.Decoder, intake *zones.Intake, cache db.CacheStore, names db.NameStore, discovery DiscoveryPublisher, log zerolog.Logger) *Gateway {
	return &Gateway{
		engine:    engine,
		decoder:   decoder,
		intake:    intake,
		cache:     cache,
		names:     names,
		discovery: discovery,
		log:       log.With().Str("component", "gateway").Logger(),
		packets:   make(chan device.Packet, packetQueueSize),
		joining:   make(map[string]bool),
	}
}

// Run processes queued packets until the context ends. A single worker
// preserves the radio's delivery order across all devices.
func (g *Gateway) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt := <-g.packets:
			g.process(pkt)
		}
	}
}

// HandlePacket enqueues a received frame. It never blocks the radio's read
// loop: when the queue is full the frame is dropped and counted.
func (g *Gateway) HandlePacket(pkt device.Packet) {
	select {
	case g.packets <- pkt:
	default:
		g.dropped.Add(1)
		g.log.Warn().
			Uint16("nwk", pkt.Src.NWK).
			Uint16("cluster", pkt.ClusterID).
			Msg("packet queue full, frame dropped")
	}
}

// Dropped returns the number of frames discarded due to queue overflow.
func (g *Gateway) Dropped() uint64 {
	return g.dropped.Load()
}

func (g *Gateway) process(pkt device.Packet) {
	if pkt.Src.IEEE == "" {
		if ieee, ok := g.engine.ResolveIEEE(pkt.Src.NWK); ok {
			pkt.Src.IEEE = ieee
		}
	}
	if pkt.Src.IEEE != "" {
		g.engine.Stats().RecordRx(pkt.Src.IEEE, len(pkt.Data))
		g.engine.MarkReceive(pkt.Src.IEEE, pkt.LQI, pkt.HasLQI)
	}

	g.intake.HandlePacket(g.engine.Radio().CoordinatorIEEE(), pkt)

	// ZDO traffic is consumed by the radio's interview machinery.
	if pkt.ProfileID == profileZDO {
		return
	}

	// The fast path mutates state directly for latency-critical clusters.
	// Normal dispatch still runs afterwards; handlers are idempotent.
	g.decoder.Process(pkt)
	g.dispatch(pkt)
}

func (g *Gateway) dispatch(pkt device.Packet) {
	if pkt.Src.IEEE == "" {
		g.log.Debug().Uint16("nwk", pkt.Src.NWK).Uint16("cluster", pkt.ClusterID).Msg("frame from unknown device")
		return
	}
	if len(pkt.Data) == 0 {
		return
	}

	hdr, payload, err := zcl.ParseHeader(pkt.Data)
	if err != nil {
		g.engine.Stats().RecordError(pkt.Src.IEEE)
		g.log.Debug().Str("ieee", pkt.Src.IEEE).Err(err).Msg("unparseable ZCL frame")
		return
	}

	handler, ok := g.engine.HandlerFor(pkt.Src.IEEE, pkt.SrcEndpoint, pkt.ClusterID)
	if !ok {
		g.log.Debug().
			Str("ieee", pkt.Src.IEEE).
			Uint8("endpoint", pkt.SrcEndpoint).
			Str("cluster", fmt.Sprintf("0x%04x", pkt.ClusterID)).
			Msg("no handler for frame")
		return
	}

	now := time.Now()
	switch {
	case hdr.IsClusterSpecific():
		handler.ClusterCommand(hdr.Seq, hdr.Command, payload)

	case hdr.Command == zcl.CmdReportAttributes:
		reports, err := zcl.ParseAttributeReports(payload)
		if err != nil {
			g.engine.Stats().RecordError(pkt.Src.IEEE)
			g.log.Debug().Str("ieee", pkt.Src.IEEE).Err(err).Msg("bad attribute report")
			return
		}
		for _, r := range reports {
			handler.AttributeUpdated(r.AttrID, r.Value, now)
		}

	case hdr.Command == zcl.CmdReadAttributesResponse:
		// Solicited reads reach their waiter through the radio layer; the
		// values also feed the state engine here.
		for attrID, r := range zcl.ParseReadAttributesResponse(payload) {
			handler.AttributeUpdated(attrID, r.Value, now)
		}

	case hdr.Command == zcl.CmdDefaultResponse:
		cmd, status, err := zcl.ParseDefaultResponse(payload)
		if err == nil && status != 0 {
			g.engine.Stats().RecordError(pkt.Src.IEEE)
			g.log.Debug().
				Str("ieee", pkt.Src.IEEE).
				Uint8("command", cmd).
				Uint8("status", status).
				Msg("default response reports failure")
		}

	default:
		g.log.Debug().
			Str("ieee", pkt.Src.IEEE).
			Uint8("command", hdr.Command).
			Msg("unhandled global command")
	}
}

// DeviceJoined handles a trust-center join or rejoin announcement. The
// interview runs off the radio's dispatch goroutine.
func (g *Gateway) DeviceJoined(ieee string, nwk uint16) {
	go g.onDeviceJoined(ieee, nwk)
}

func (g *Gateway) onDeviceJoined(ieee string, nwk uint16) {
	g.joinMu.Lock()
	if g.joining[ieee] {
		g.joinMu.Unlock()
		return
	}
	g.joining[ieee] = true
	g.joinMu.Unlock()
	defer func() {
		g.joinMu.Lock()
		delete(g.joining, ieee)
		g.joinMu.Unlock()
	}()

	_, created := g.engine.AddDevice(ieee, nwk, device.ProtocolZigbee)
	g.log.Info().Str("ieee", ieee).Uint16("nwk", nwk).Bool("new", created).Msg("device joined")

	ctx, cancel := context.WithTimeout(context.Background(), interviewTimeout)
	defer cancel()

	// Friendly names survive leave/rejoin cycles.
	if name, err := g.names.Get(ctx, ieee); err == nil && name != "" {
		_ = g.engine.SetFriendlyName(ieee, name)
	}

	g.engine.Events().Emit(device.Event{
		Type:      device.EventDeviceJoined,
		IEEE:      ieee,
		Data:      map[string]any{"nwk": nwk, "new": created},
		Timestamp: time.Now(),
	})

	if dev, ok := g.engine.Device(ieee); ok && len(dev.Endpoints) == 0 {
		iv, ok := g.engine.Radio().(interviewer)
		if !ok {
			return
		}
		endpoints, err := iv.Interview(ctx, device.Address{IEEE: ieee, NWK: nwk})
		if err != nil {
			// The shell device stays registered; a rejoin announce retries.
			g.log.Warn().Str("ieee", ieee).Err(err).Msg("device interview failed")
			return
		}
		if err := g.engine.SetEndpoints(ieee, endpoints); err != nil {
			g.log.Warn().Str("ieee", ieee).Err(err).Msg("installing endpoints failed")
			return
		}
	}

	cfgCtx, cfgCancel := context.WithTimeout(context.Background(), configureTimeout)
	defer cfgCancel()
	if err := g.engine.ConfigureDevice(cfgCtx, ieee); err != nil {
		// Degraded handlers retry on the next rejoin.
		g.log.Warn().Str("ieee", ieee).Err(err).Msg("device configuration incomplete")
	}

	if g.discovery != nil {
		if dev, ok := g.engine.Device(ieee); ok {
			g.discovery.PublishDiscovery(dev, g.engine.DiscoveryConfigs(ieee))
		}
	}
	g.engine.SetAvailable(ieee, true)
}

// DeviceLeft handles a trust-center leave announcement.
func (g *Gateway) DeviceLeft(ieee string) {
	go g.onDeviceLeft(ieee, false)
}

func (g *Gateway) onDeviceLeft(ieee string, forgetName bool) {
	if !g.engine.RemoveDevice(ieee) {
		return
	}
	g.log.Info().Str("ieee", ieee).Msg("device left")

	if g.discovery != nil {
		g.discovery.RemoveDiscovery(ieee)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := g.cache.Delete(ctx, ieee); err != nil && !errors.Is(err, db.ErrCacheEntryNotFound) {
		g.log.Warn().Str("ieee", ieee).Err(err).Msg("removing cached device failed")
	}
	if forgetName {
		if err := g.names.Delete(ctx, ieee); err != nil && !errors.Is(err, db.ErrNameNotFound) {
			g.log.Warn().Str("ieee", ieee).Err(err).Msg("removing device name failed")
		}
	}

	g.engine.Events().Emit(device.Event{
		Type:      device.EventDeviceLeft,
		IEEE:      ieee,
		Timestamp: time.Now(),
	})
}

// RemoveDevice is the user-initiated removal: the device is told to leave
// the network and is dropped from the registry, cache and name store.
func (g *Gateway) RemoveDevice(ctx context.Context, ieee string) error {
	dev, ok := g.engine.Device(ieee)
	if !ok {
		return fmt.Errorf("remove %s: %w", ieee, device.ErrNotFound)
	}
	if err := g.engine.Radio().Leave(ctx, device.Address{IEEE: dev.IEEE, NWK: dev.NWK}); err != nil {
		// Unreachable devices are removed locally anyway.
		g.log.Warn().Str("ieee", ieee).Err(err).Msg("leave request failed")
	}
	g.onDeviceLeft(ieee, true)
	return nil
}

// RenameDevice applies and persists a friendly name, then refreshes the
// device's discovery announcement.
func (g *Gateway) RenameDevice(ctx context.Context, ieee, name string) error {
	if err := g.engine.SetFriendlyName(ieee, name); err != nil {
		return fmt.Errorf("rename %s: %w", ieee, err)
	}
	if err := g.names.Set(ctx, ieee, name); err != nil {
		return fmt.Errorf("rename %s: %w", ieee, err)
	}
	if g.discovery != nil {
		if dev, ok := g.engine.Device(ieee); ok {
			g.discovery.PublishDiscovery(dev, g.engine.DiscoveryConfigs(ieee))
		}
	}
	return nil
}

// Restore loads the persisted device registry: cached state documents,
// friendly-name overrides and the radio's address table. Every restored
// device starts unavailable until its first packet.
func (g *Gateway) Restore(ctx context.Context) error {
	entries, err := g.cache.All(ctx)
	if err != nil {
		return fmt.Errorf("load device cache: %w", err)
	}
	restored := 0
	for _, e := range entries {
		if err := g.engine.RestoreDevice(e.IEEE, e.State); err != nil {
			g.log.Warn().Str("ieee", e.IEEE).Err(err).Msg("corrupt cache document dropped")
			continue
		}
		restored++
	}

	names, err := g.names.All(ctx)
	if err != nil {
		return fmt.Errorf("load device names: %w", err)
	}
	for ieee, name := range names {
		// Names for unknown devices keep their row for a later rejoin.
		_ = g.engine.SetFriendlyName(ieee, name)
	}

	if book, ok := g.engine.Radio().(addressBook); ok {
		for _, d := range g.engine.Devices() {
			book.RegisterAddress(d.IEEE, d.NWK)
		}
	}

	g.engine.MarkAllUnavailable()
	g.log.Info().Int("devices", restored).Int("names", len(names)).Msg("device registry restored")
	return nil
}

// RunCacheFlush periodically persists dirty device documents, with a final
// flush on shutdown.
func (g *Gateway) RunCacheFlush(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			g.flushCache(flushCtx)
			cancel()
			return
		case <-ticker.C:
			g.flushCache(ctx)
		}
	}
}

func (g *Gateway) flushCache(ctx context.Context) {
	docs := g.engine.DirtyDocuments()
	if len(docs) == 0 {
		return
	}
	entries := make([]*db.CacheEntry, 0, len(docs))
	for ieee, raw := range docs {
		var lastSeen int64
		if d, ok := g.engine.Device(ieee); ok {
			lastSeen = d.LastSeen
		}
		entries = append(entries, &db.CacheEntry{IEEE: ieee, State: raw, LastSeen: lastSeen})
	}
	if err := g.cache.PutAll(ctx, entries); err != nil {
		// The documents re-dirty on the next state change.
		g.log.Warn().Err(err).Int("devices", len(entries)).Msg("device cache flush failed")
		return
	}
	g.log.Debug().Int("devices", len(entries)).Msg("device cache flushed")
}

// PermitJoin opens or closes the network for joining and announces the
// change on the event stream.
func (g *Gateway) PermitJoin(ctx context.Context, seconds uint8) error {
	if err := g.engine.Radio().PermitJoin(ctx, seconds); err != nil {
		return fmt.Errorf("permit join: %w", err)
	}

	g.permitMu.Lock()
	if seconds > 0 {
		g.permitUntil = time.Now().Add(time.Duration(seconds) * time.Second)
	} else {
		g.permitUntil = time.Time{}
	}
	g.permitMu.Unlock()

	g.engine.Events().Emit(device.Event{
		Type:      device.EventPermitJoin,
		Data:      map[string]any{"enabled": seconds > 0, "duration": int(seconds)},
		Timestamp: time.Now(),
	})
	g.log.Info().Uint8("seconds", seconds).Msg("permit join updated")
	return nil
}

// PermitJoinRemaining returns how many seconds joining stays open, zero when
// closed.
func (g *Gateway) PermitJoinRemaining() int {
	g.permitMu.Lock()
	defer g.permitMu.Unlock()
	remaining := time.Until(g.permitUntil)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Round(time.Second).Seconds())
}
