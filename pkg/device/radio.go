package device

import (
	"context"
	"time"

	"github.com/urmzd/zigman/pkg/zcl"
)

// Address identifies a device on the PAN.
type Address struct {
	IEEE string
	NWK  uint16
}

// Packet is one received APS frame as surfaced by the radio.
type Packet struct {
	Src         Address
	SrcEndpoint uint8
	DstEndpoint uint8
	ProfileID   uint16
	ClusterID   uint16
	LQI         uint8
	RSSI        int8
	HasLQI      bool
	HasRSSI     bool
	Data        []byte
}

// Radio is the coordinator abstraction the gateway consumes. Both the EZSP
// backend and the null backend implement it. All methods honour context
// cancellation; implementations report timeouts as ErrTimeout.
type Radio interface {
	CoordinatorIEEE() string
	IsConnected() bool

	ReadAttributes(ctx context.Context, addr Address, endpoint uint8, cluster uint16, attrs []uint16) (map[uint16]any, error)
	WriteAttributes(ctx context.Context, addr Address, endpoint uint8, cluster uint16, records []zcl.AttributeRecord) error
	ConfigureReporting(ctx context.Context, addr Address, endpoint uint8, cluster uint16, configs []zcl.ReportConfig) error
	Bind(ctx context.Context, addr Address, endpoint uint8, cluster uint16) error
	SendClusterCommand(ctx context.Context, addr Address, endpoint uint8, cluster uint16, commandID uint8, payload []byte) error
	AddToGroup(ctx context.Context, addr Address, endpoint uint8, group uint16) error

	EnergyScan(ctx context.Context, channels []int, duration uint8) (map[int]float64, error)
	PermitJoin(ctx context.Context, seconds uint8) error
	Leave(ctx context.Context, addr Address) error
}

// Radio operation deadlines.
const (
	readTimeout    = 10 * time.Second
	commandTimeout = 5 * time.Second
)

// ClusterClient narrows the radio to one (device, endpoint, cluster) and
// applies the standard operation timeouts.
type ClusterClient struct {
	radio     Radio
	resolve   func() Address
	Endpoint  uint8
	ClusterID uint16
}

// NewClusterClient builds a scoped client. resolve returns the device's
// current address so rejoins with a new network address are picked up.
func NewClusterClient(radio Radio, resolve func() Address, endpoint uint8, cluster uint16) *ClusterClient {
	return &ClusterClient{radio: radio, resolve: resolve, Endpoint: endpoint, ClusterID: cluster}
}

// CoordinatorIEEE returns the coordinator's canonical IEEE address.
func (c *ClusterClient) CoordinatorIEEE() string {
	return c.radio.CoordinatorIEEE()
}

// Read reads attributes with the standard read timeout.
func (c *ClusterClient) Read(ctx context.Context, attrs ...uint16) (map[uint16]any, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	return c.radio.ReadAttributes(ctx, c.resolve(), c.Endpoint, c.ClusterID, attrs)
}

// Write writes attributes with the standard read timeout.
func (c *ClusterClient) Write(ctx context.Context, records ...zcl.AttributeRecord) error {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	return c.radio.WriteAttributes(ctx, c.resolve(), c.Endpoint, c.ClusterID, records)
}

// ConfigureReporting writes reporting configuration records.
func (c *ClusterClient) ConfigureReporting(ctx context.Context, configs ...zcl.ReportConfig) error {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	return c.radio.ConfigureReporting(ctx, c.resolve(), c.Endpoint, c.ClusterID, configs)
}

// Bind binds this cluster to the coordinator.
func (c *ClusterClient) Bind(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	return c.radio.Bind(ctx, c.resolve(), c.Endpoint, c.ClusterID)
}

// Command sends a cluster-specific command with the command timeout.
func (c *ClusterClient) Command(ctx context.Context, commandID uint8, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return c.radio.SendClusterCommand(ctx, c.resolve(), c.Endpoint, c.ClusterID, commandID, payload)
}

// AddToGroup adds the endpoint to a group.
func (c *ClusterClient) AddToGroup(ctx context.Context, group uint16) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return c.radio.AddToGroup(ctx, c.resolve(), c.Endpoint, group)
}
