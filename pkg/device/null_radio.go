package device

import (
	"context"

	"github.com/urmzd/zigman/pkg/zcl"
)

// NullRadio is a no-op radio used when no serial port is configured. It lets
// the API and MCP surfaces run in limited mode over cached device state.
type NullRadio struct{}

// NewNullRadio creates a new NullRadio.
func NewNullRadio() *NullRadio {
	return &NullRadio{}
}

func (r *NullRadio) CoordinatorIEEE() string { return "0000000000000000" }
func (r *NullRadio) IsConnected() bool       { return false }

func (r *NullRadio) ReadAttributes(ctx context.Context, addr Address, endpoint uint8, cluster uint16, attrs []uint16) (map[uint16]any, error) {
	return nil, ErrNotConnected
}

func (r *NullRadio) WriteAttributes(ctx context.Context, addr Address, endpoint uint8, cluster uint16, records []zcl.AttributeRecord) error {
	return ErrNotConnected
}

func (r *NullRadio) ConfigureReporting(ctx context.Context, addr Address, endpoint uint8, cluster uint16, configs []zcl.ReportConfig) error {
	return ErrNotConnected
}

func (r *NullRadio) Bind(ctx context.Context, addr Address, endpoint uint8, cluster uint16) error {
	return ErrNotConnected
}

func (r *NullRadio) SendClusterCommand(ctx context.Context, addr Address, endpoint uint8, cluster uint16, commandID uint8, payload []byte) error {
	return ErrNotConnected
}

func (r *NullRadio) AddToGroup(ctx context.Context, addr Address, endpoint uint8, group uint16) error {
	return ErrNotConnected
}

func (r *NullRadio) EnergyScan(ctx context.Context, channels []int, duration uint8) (map[int]float64, error) {
	return nil, ErrNotConnected
}

func (r *NullRadio) PermitJoin(ctx context.Context, seconds uint8) error {
	return ErrNotConnected
}

func (r *NullRadio) Leave(ctx context.Context, addr Address) error {
	return ErrNotConnected
}
