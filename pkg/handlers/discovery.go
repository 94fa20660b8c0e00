package handlers

import (
	"fmt"

	"github.com/urmzd/zigman/pkg/device"
)

// objectID suffixes the key with the endpoint for multi-endpoint devices,
// mirroring the engine's state key scoping so value templates resolve.
func objectID(b *device.Binding, name string) string {
	if len(b.Device.Endpoints) > 1 {
		return fmt.Sprintf("%s_%d", name, b.Endpoint.ID)
	}
	return name
}

// displayName labels the entity, qualified by endpoint where needed.
func displayName(b *device.Binding, base string) string {
	if len(b.Device.Endpoints) > 1 {
		return fmt.Sprintf("%s %d", base, b.Endpoint.ID)
	}
	return base
}

func valueTemplate(key string) string {
	return fmt.Sprintf("{{ value_json.%s }}", key)
}
