// Package handlers implements the per-cluster handler library. Each handler
// is scoped to one (device, endpoint, cluster) binding and translates between
// raw ZCL values and normalised state keys; actuating handlers additionally
// expose command surfaces discovered by type assertion.
package handlers

import (
	"github.com/urmzd/zigman/pkg/device"
)

// Cluster IDs handled by this package.
const (
	ClusterBasic       uint16 = 0x0000
	ClusterPowerConfig uint16 = 0x0001
	ClusterIdentify    uint16 = 0x0003
	ClusterGroups      uint16 = 0x0004
	ClusterScenes      uint16 = 0x0005
	ClusterOnOff       uint16 = 0x0006
	ClusterLevel       uint16 = 0x0008
	ClusterCovering    uint16 = 0x0102
	ClusterColor       uint16 = 0x0300
	ClusterIlluminance uint16 = 0x0400
	ClusterTemperature uint16 = 0x0402
	ClusterHumidity    uint16 = 0x0405
	ClusterOccupancy   uint16 = 0x0406
	ClusterIASZone     uint16 = 0x0500
	ClusterMetering    uint16 = 0x0702
	ClusterElectrical  uint16 = 0x0B04
	ClusterDiagnostics uint16 = 0x0B05
	ClusterLightLink   uint16 = 0x1000
	ClusterTuya        uint16 = 0xEF00
)

// Factory builds a handler over a binding.
type Factory func(b *device.Binding) device.Handler

// Registry maps cluster IDs to handler factories. It is populated once by
// NewRegistry and read-only afterwards; lookups are O(1) and unknown clusters
// fall back to the passthrough handler.
type Registry struct {
	factories map[uint16]Factory
}

// NewRegistry builds the registry with every handler this gateway knows.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[uint16]Factory, 24)}
	r.register(ClusterBasic, newBasic)
	r.register(ClusterPowerConfig, newPowerConfig)
	r.register(ClusterIdentify, newIdentify)
	r.register(ClusterGroups, newGroups)
	r.register(ClusterScenes, newScenes)
	r.register(ClusterOnOff, newOnOff)
	r.register(ClusterLevel, newLevel)
	r.register(ClusterCovering, newCovering)
	r.register(ClusterColor, newColor)
	r.register(ClusterIlluminance, newIlluminance)
	r.register(ClusterTemperature, newTemperature)
	r.register(ClusterHumidity, newHumidity)
	r.register(ClusterOccupancy, newOccupancy)
	r.register(ClusterIASZone, newIASZone)
	r.register(ClusterMetering, newMetering)
	r.register(ClusterElectrical, newElectrical)
	r.register(ClusterDiagnostics, newDiagnostics)
	r.register(ClusterLightLink, newLightLink)
	r.register(ClusterTuya, newTuya)
	return r
}

func (r *Registry) register(cluster uint16, f Factory) {
	r.factories[cluster] = f
}

// Create satisfies device.HandlerRegistry.
func (r *Registry) Create(b *device.Binding) device.Handler {
	if f, ok := r.factories[b.ClusterID]; ok {
		return f(b)
	}
	return newPassthrough(b)
}

// Known reports whether a dedicated handler exists for the cluster.
func (r *Registry) Known(cluster uint16) bool {
	_, ok := r.factories[cluster]
	return ok
}
