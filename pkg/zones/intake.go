package zones

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/urmzd/zigman/pkg/device"
)

// Route records carry no per-hop LQI on most stacks; assume a sound link.
const defaultRouteLQI = 200

// Intake taps received frames for link-quality samples. It sits beside the
// normal packet pipeline and is purely observational: it never fails or
// slows the packet path.
type Intake struct {
	manager *Manager
	log     zerolog.Logger

	mu       sync.Mutex
	messages uint64
	captures uint64
}

// IntakeStats mirrors the counters exposed on the stats endpoint.
type IntakeStats struct {
	MessagesProcessed uint64 `json:"messages_processed"`
	RSSICaptures      uint64 `json:"rssi_captures"`
	ZonesActive       int    `json:"zones_active"`
}

// NewIntake creates an intake feeding the given zone manager.
func NewIntake(manager *Manager, log zerolog.Logger) *Intake {
	return &Intake{
		manager: manager,
		log:     log.With().Str("component", "zone_intake").Logger(),
	}
}

// HandlePacket records one sample for the coordinator->device link. Frames
// without signal data or without a resolved source are counted and dropped.
func (i *Intake) HandlePacket(coordinatorIEEE string, pkt device.Packet) {
	i.mu.Lock()
	i.messages++
	i.mu.Unlock()

	if !pkt.HasLQI && !pkt.HasRSSI {
		return
	}
	if pkt.Src.IEEE == "" || coordinatorIEEE == "" {
		return
	}

	rssi := int(pkt.RSSI)
	lqi := int(pkt.LQI)
	if !pkt.HasRSSI {
		rssi = LQIToRSSI(lqi)
	}
	if !pkt.HasLQI {
		lqi = RSSIToLQI(rssi)
	}

	i.manager.RecordLinkQuality(coordinatorIEEE, pkt.Src.IEEE, rssi, lqi)

	i.mu.Lock()
	i.captures++
	i.mu.Unlock()
}

// HandleNeighborReport records a router's neighbor-table edge, as parsed
// from a Mgmt_Lqi_rsp. Neighbor entries report LQI only.
func (i *Intake) HandleNeighborReport(reporterIEEE, neighborIEEE string, lqi int) {
	if reporterIEEE == "" || neighborIEEE == "" {
		return
	}
	i.manager.RecordLinkQuality(reporterIEEE, neighborIEEE, LQIToRSSI(lqi), lqi)

	i.mu.Lock()
	i.captures++
	i.mu.Unlock()
}

// HandleRouteRecord records each hop of a route record as a link sample.
// lqis may be shorter than the hop count.
func (i *Intake) HandleRouteRecord(sourceIEEE string, relays []string, lqis []int) {
	if sourceIEEE == "" || len(relays) == 0 {
		return
	}
	path := append([]string{sourceIEEE}, relays...)
	for hop := 0; hop < len(path)-1; hop++ {
		lqi := defaultRouteLQI
		if hop < len(lqis) {
			lqi = lqis[hop]
		}
		i.manager.RecordLinkQuality(path[hop], path[hop+1], LQIToRSSI(lqi), lqi)
	}
}

// Stats returns the intake counters.
func (i *Intake) Stats() IntakeStats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return IntakeStats{
		MessagesProcessed: i.messages,
		RSSICaptures:      i.captures,
		ZonesActive:       i.manager.ZoneCount(),
	}
}

// LQIToRSSI linearly maps LQI 0..255 onto the -100..-30 dBm range.
func LQIToRSSI(lqi int) int {
	return int(-100 + float64(lqi)/255*70)
}

// RSSIToLQI is the inverse mapping, clamped to the LQI range.
func RSSIToLQI(rssi int) int {
	lqi := int(float64(rssi+100) * 255 / 70)
	if lqi < 0 {
		return 0
	}
	if lqi > 255 {
		return 255
	}
	return lqi
}
