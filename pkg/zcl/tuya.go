package zcl

import "encoding/binary"

// Tuya manufacturer cluster framing (cluster 0xEF00). Data points are
// tunneled as (dp_id:1, dp_type:1, dp_len:2 big-endian, data:dp_len) records
// after a one-byte status and a two-byte transaction id.
const (
	TuyaCluster uint16 = 0xEF00

	TuyaCmdSetData      uint8 = 0x00
	TuyaCmdGetData      uint8 = 0x01
	TuyaCmdReportData   uint8 = 0x02
	TuyaCmdActiveStatus uint8 = 0x06
)

// Tuya DP data types
const (
	TuyaTypeRaw    uint8 = 0x00
	TuyaTypeBool   uint8 = 0x01
	TuyaTypeValue  uint8 = 0x02
	TuyaTypeString uint8 = 0x03
	TuyaTypeEnum   uint8 = 0x04
	TuyaTypeBitmap uint8 = 0x05
)

// TuyaDataPoint is a single decoded DP record.
type TuyaDataPoint struct {
	ID   uint8
	Type uint8
	Data []byte
}

// Bool interprets the DP payload as a boolean.
func (dp TuyaDataPoint) Bool() bool {
	return len(dp.Data) == 1 && dp.Data[0] != 0
}

// Enum returns the DP payload as a single enum byte, or 0.
func (dp TuyaDataPoint) Enum() uint8 {
	if len(dp.Data) != 1 {
		return 0
	}
	return dp.Data[0]
}

// Value returns the DP payload as a 32-bit big-endian value, or 0.
func (dp TuyaDataPoint) Value() int32 {
	if len(dp.Data) != 4 {
		return 0
	}
	return int32(binary.BigEndian.Uint32(dp.Data))
}

// TuyaCarriesDataPoints reports whether the Tuya command carries DP records.
func TuyaCarriesDataPoints(commandID uint8) bool {
	return commandID == TuyaCmdGetData || commandID == TuyaCmdReportData || commandID == TuyaCmdActiveStatus
}

// ParseTuyaDataPoints walks DP records from a Tuya command payload. The
// payload starts after the ZCL header: status(1), transaction(2), records.
// Truncated records end the walk.
func ParseTuyaDataPoints(payload []byte) []TuyaDataPoint {
	var dps []TuyaDataPoint
	idx := 3
	for idx+4 <= len(payload) {
		dp := TuyaDataPoint{ID: payload[idx], Type: payload[idx+1]}
		dpLen := int(binary.BigEndian.Uint16(payload[idx+2 : idx+4]))
		if idx+4+dpLen > len(payload) {
			break
		}
		dp.Data = payload[idx+4 : idx+4+dpLen]
		dps = append(dps, dp)
		idx += 4 + dpLen
	}
	return dps
}
