// Package fastpath short-circuits the hot sensor clusters ahead of normal
// dispatch. Motion, presence and door events go from radio to MQTT in one
// synchronous parse instead of waiting on the debounced engine fan-out; the
// regular handler pipeline still runs afterwards and must tolerate the state
// already being current.
package fastpath

import (
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/zcl"
)

// Clusters the decoder recognises. 0x0006 is included because several motion
// sensor lines (IKEA, generic Tuya) report motion as an OnOff attribute.
const (
	clusterOnOff     uint16 = 0x0006
	clusterOccupancy uint16 = 0x0406
	clusterIASZone   uint16 = 0x0500
)

// IAS zone status bits, as decoded by the security handler.
const (
	zoneAlarm1     uint16 = 0x0001
	zoneTamper     uint16 = 0x0004
	zoneBatteryLow uint16 = 0x0008
)

const cmdZoneStatusChange uint8 = 0x00

// Publisher is the low-latency QoS 0 side door of the MQTT service. Calls
// happen on the radio receive path and must not block.
type Publisher interface {
	PublishFast(topic string, payload []byte)
}

// Decoder parses recognised frames and applies their state directly, skipping
// the engine's debounce window.
type Decoder struct {
	engine *device.Engine
	log    zerolog.Logger

	mu              sync.Mutex
	publisher       Publisher
	totalProcessed  uint64
	fastPathHits    uint64
	occupancyEvents uint64
	tuyaEvents      uint64
	iasEvents       uint64
	parseErrors     uint64
}

// NewDecoder builds a decoder bound to the device engine. The publisher is
// wired later, once the MQTT service is connected.
func NewDecoder(engine *device.Engine, log zerolog.Logger) *Decoder {
	return &Decoder{
		engine: engine,
		log:    log.With().Str("component", "fastpath").Logger(),
	}
}

// SetPublisher attaches the QoS 0 publisher. A nil publisher disables the
// MQTT leg; state still updates.
func (d *Decoder) SetPublisher(p Publisher) {
	d.mu.Lock()
	d.publisher = p
	d.mu.Unlock()
}

// Process attempts to fast-path one received frame. It returns true when the
// frame was recognised and its state change has already been applied and
// published.
func (d *Decoder) Process(pkt device.Packet) bool {
	d.mu.Lock()
	d.totalProcessed++
	d.mu.Unlock()

	if pkt.ProfileID != zcl.ProfileHomeAutomation || pkt.Src.IEEE == "" {
		return false
	}

	switch pkt.ClusterID {
	case clusterOccupancy, clusterOnOff:
		return d.record(&d.occupancyEvents, d.decodeOccupancy(pkt.Src.IEEE, pkt.Data))
	case zcl.TuyaCluster:
		return d.record(&d.tuyaEvents, d.decodeTuya(pkt.Src.IEEE, pkt.Data))
	case clusterIASZone:
		return d.record(&d.iasEvents, d.decodeIASZone(pkt.Src.IEEE, pkt.Data))
	}
	return false
}

func (d *Decoder) record(counter *uint64, hit bool) bool {
	if !hit {
		return false
	}
	d.mu.Lock()
	d.fastPathHits++
	*counter++
	d.mu.Unlock()
	return true
}

// decodeOccupancy scans a Report Attributes frame for attribute 0x0000
// carrying a boolean or 8-bit bitmap; the low bit is the occupied flag.
func (d *Decoder) decodeOccupancy(ieee string, frame []byte) bool {
	h, payload, err := zcl.ParseHeader(frame)
	if err != nil || h.Command != zcl.CmdReportAttributes {
		return false
	}

	idx := 0
	for idx+3 <= len(payload) {
		attrID := binary.LittleEndian.Uint16(payload[idx:])
		dataType := payload[idx+2]

		if attrID == 0x0000 && (dataType == zcl.TypeBool || dataType == zcl.TypeBitmap8) {
			if idx+3 < len(payload) {
				occupied := payload[idx+3]&0x01 != 0
				d.emitOccupancy(ieee, occupied)
				return true
			}
		}

		if idx+3 >= len(payload) {
			break
		}
		size := zcl.TypeSize(dataType, payload[idx+3:])
		if size < 0 {
			break
		}
		idx += 3 + size
	}
	return false
}

// decodeTuya walks the DP records of a Tuya data frame. Only DP 1 (enum
// 0=none/1=presence/2=move, bool on some models) and DP 104 (bool presence)
// are decoded here; everything else is left to the full handler.
func (d *Decoder) decodeTuya(ieee string, frame []byte) bool {
	if len(frame) < 7 {
		return false
	}
	h, payload, err := zcl.ParseHeader(frame)
	if err != nil || !zcl.TuyaCarriesDataPoints(h.Command) {
		return false
	}

	var (
		presence bool
		have     bool
	)
	for _, dp := range zcl.ParseTuyaDataPoints(payload) {
		switch dp.ID {
		case 1:
			switch dp.Type {
			case zcl.TuyaTypeEnum:
				if len(dp.Data) == 1 {
					presence, have = dp.Data[0] > 0, true
				}
			case zcl.TuyaTypeBool:
				if len(dp.Data) == 0 {
					d.parseError(ieee, "tuya DP1 bool with empty payload")
					return false
				}
				presence, have = dp.Data[0] != 0, true
			}
		case 104:
			if dp.Type == zcl.TuyaTypeBool && len(dp.Data) == 1 {
				presence, have = dp.Data[0] != 0, true
			}
		}
	}
	if !have {
		return false
	}
	d.emitPresence(ieee, presence)
	return true
}

// decodeIASZone handles Zone Status Change Notification, publishing the
// contact/tamper/battery view of the 16-bit status.
func (d *Decoder) decodeIASZone(ieee string, frame []byte) bool {
	if len(frame) < 5 {
		return false
	}
	h, payload, err := zcl.ParseHeader(frame)
	if err != nil || !h.IsClusterSpecific() || h.Command != cmdZoneStatusChange {
		return false
	}
	if len(payload) < 2 {
		return false
	}
	status := binary.LittleEndian.Uint16(payload)
	d.emitZoneStatus(ieee, status)
	return true
}

func (d *Decoder) emitOccupancy(ieee string, occupied bool) {
	updates := map[string]any{
		"occupancy": occupied,
		"motion":    occupied,
		"presence":  occupied,
	}
	d.apply(ieee, updates, updates)
}

func (d *Decoder) emitPresence(ieee string, present bool) {
	updates := map[string]any{
		"presence":  present,
		"state":     present,
		"occupancy": present,
	}
	d.apply(ieee, updates, updates)
}

func (d *Decoder) emitZoneStatus(ieee string, status uint16) {
	alarm := status&zoneAlarm1 != 0
	updates := map[string]any{
		"zone_status": int(status),
		"contact":     !alarm,
		"tamper":      status&zoneTamper != 0,
		"battery_low": status&zoneBatteryLow != 0,
	}
	payload := map[string]any{
		"contact":     updates["contact"],
		"tamper":      updates["tamper"],
		"battery_low": updates["battery_low"],
	}
	d.apply(ieee, updates, payload)
}

// apply mutates state through the engine's immediate path and pushes the
// QoS 0 state message. Unknown devices are dropped silently; the join flow
// will pick them up through normal dispatch.
func (d *Decoder) apply(ieee string, updates, payload map[string]any) {
	dev, ok := d.engine.Device(ieee)
	if !ok {
		return
	}
	d.engine.ApplyImmediate(ieee, updates)

	d.mu.Lock()
	pub := d.publisher
	d.mu.Unlock()
	if pub == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	pub.PublishFast(dev.SafeName()+"/state", body)
}

func (d *Decoder) parseError(ieee, reason string) {
	d.mu.Lock()
	d.parseErrors++
	d.mu.Unlock()
	d.log.Debug().Str("ieee", ieee).Str("reason", reason).Msg("fast path parse error")
}

// Stats is a point-in-time snapshot of the decoder counters. HitRate is the
// percentage of processed frames served by the fast path.
type Stats struct {
	TotalProcessed  uint64  `json:"total_processed"`
	FastPathHits    uint64  `json:"fast_path_hits"`
	OccupancyEvents uint64  `json:"occupancy_events"`
	TuyaEvents      uint64  `json:"tuya_events"`
	IASEvents       uint64  `json:"ias_events"`
	ParseErrors     uint64  `json:"parse_errors"`
	HitRate         float64 `json:"hit_rate"`
}

// Stats returns the current counters.
func (d *Decoder) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := d.totalProcessed
	if total == 0 {
		total = 1
	}
	return Stats{
		TotalProcessed:  d.totalProcessed,
		FastPathHits:    d.fastPathHits,
		OccupancyEvents: d.occupancyEvents,
		TuyaEvents:      d.tuyaEvents,
		IASEvents:       d.iasEvents,
		ParseErrors:     d.parseErrors,
		HitRate:         float64(d.fastPathHits) / float64(total) * 100,
	}
}
