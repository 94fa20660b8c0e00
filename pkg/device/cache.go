package device

import (
	"encoding/json"
	"fmt"
	"sort"
)

// cacheDocument is the opaque per-IEEE blob persisted between runs.
type cacheDocument struct {
	NWK          uint16               `json:"nwk"`
	Protocol     string               `json:"protocol"`
	Manufacturer string               `json:"manufacturer,omitempty"`
	Model        string               `json:"model,omitempty"`
	SWVersion    string               `json:"sw_version,omitempty"`
	PowerSource  string               `json:"power_source,omitempty"`
	FriendlyName string               `json:"friendly_name,omitempty"`
	LastSeen     int64                `json:"last_seen"`
	State        map[string]any       `json:"state"`
	Endpoints    []EndpointDescriptor `json:"endpoints"`
}

// DirtyDocuments marshals every device touched since the last call and
// clears the dirty set. The caller persists the blobs.
func (e *Engine) DirtyDocuments() map[string][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string][]byte, len(e.dirty))
	for ieee := range e.dirty {
		d, ok := e.devices[ieee]
		if !ok {
			continue
		}
		doc := cacheDocument{
			NWK:          d.NWK,
			Protocol:     d.Protocol,
			Manufacturer: d.Manufacturer,
			Model:        d.Model,
			SWVersion:    d.SWVersion,
			PowerSource:  d.PowerSource,
			FriendlyName: d.FriendlyName,
			LastSeen:     d.LastSeen,
			State:        d.State,
		}
		for _, ep := range sortedEndpoints(d) {
			doc.Endpoints = append(doc.Endpoints, EndpointDescriptor{
				ID:          ep.ID,
				ProfileID:   ep.ProfileID,
				DeviceType:  ep.DeviceType,
				InClusters:  ep.InClusters,
				OutClusters: ep.OutClusters,
			})
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			e.log.Error().Str("ieee", ieee).Err(err).Msg("cache marshal failed")
			continue
		}
		out[ieee] = raw
	}
	e.dirty = make(map[string]bool)
	return out
}

// RestoreDevice recreates a device from its cached document. State is
// hydrated silently: nothing is published and no automation runs. Devices
// start unavailable until their first packet.
func (e *Engine) RestoreDevice(ieee string, raw []byte) error {
	var doc cacheDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("restore %s: %w", ieee, err)
	}

	protocol := doc.Protocol
	if protocol == "" {
		protocol = ProtocolZigbee
	}
	e.AddDevice(ieee, doc.NWK, protocol)
	if len(doc.Endpoints) > 0 {
		if err := e.SetEndpoints(ieee, doc.Endpoints); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.devices[ieee]
	d.Manufacturer = doc.Manufacturer
	d.Model = doc.Model
	d.SWVersion = doc.SWVersion
	d.PowerSource = doc.PowerSource
	d.FriendlyName = doc.FriendlyName
	if doc.LastSeen > 0 {
		d.LastSeen = doc.LastSeen
	}
	for k, v := range doc.State {
		d.State[k] = normalizeValue(v)
	}
	delete(e.dirty, ieee)
	return nil
}

func sortedEndpoints(d *Device) []*Endpoint {
	ids := make([]int, 0, len(d.Endpoints))
	for id := range d.Endpoints {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	out := make([]*Endpoint, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.Endpoints[uint8(id)])
	}
	return out
}
