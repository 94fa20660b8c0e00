package zcl

import (
	"encoding/binary"
	"fmt"
)

// AttributeReport is one record of a Report Attributes frame.
type AttributeReport struct {
	AttrID   uint16
	DataType uint8
	Value    any
}

// AttributeRecord is one record of a Write Attributes frame. Value holds the
// already-encoded bytes for the data type.
type AttributeRecord struct {
	AttrID   uint16
	DataType uint8
	Value    []byte
}

// ReportConfig is one attribute reporting configuration record.
// ReportableChange is ignored for discrete data types.
type ReportConfig struct {
	AttrID           uint16
	DataType         uint8
	MinInterval      uint16
	MaxInterval      uint16
	ReportableChange uint32
}

// ParseAttributeReports walks the records of a Report Attributes payload
// (attr:2 LE, type:1, value). It stops at the first record it cannot size.
func ParseAttributeReports(payload []byte) ([]AttributeReport, error) {
	var reports []AttributeReport
	idx := 0
	for idx+3 <= len(payload) {
		attrID := binary.LittleEndian.Uint16(payload[idx:])
		dataType := payload[idx+2]
		value, n := DecodeValue(dataType, payload[idx+3:])
		if n < 0 {
			return reports, fmt.Errorf("zcl: unsized data type 0x%02x at attr 0x%04x: %w", dataType, attrID, ErrInvalidFrame)
		}
		reports = append(reports, AttributeReport{AttrID: attrID, DataType: dataType, Value: value})
		idx += 3 + n
	}
	return reports, nil
}

// ParseReadAttributesResponse extracts successfully read attributes from a
// Read Attributes Response payload. Records with non-zero status are skipped.
func ParseReadAttributesResponse(payload []byte) map[uint16]AttributeReport {
	result := make(map[uint16]AttributeReport)
	idx := 0
	for idx+3 <= len(payload) {
		attrID := binary.LittleEndian.Uint16(payload[idx:])
		status := payload[idx+2]
		idx += 3
		if status != 0x00 {
			continue
		}
		if idx >= len(payload) {
			break
		}
		dataType := payload[idx]
		idx++
		value, n := DecodeValue(dataType, payload[idx:])
		if n < 0 {
			break
		}
		result[attrID] = AttributeReport{AttrID: attrID, DataType: dataType, Value: value}
		idx += n
	}
	return result
}

// BuildReadAttributes builds a Read Attributes frame.
func BuildReadAttributes(seq uint8, attrIDs ...uint16) []byte {
	payload := make([]byte, len(attrIDs)*2)
	for i, id := range attrIDs {
		binary.LittleEndian.PutUint16(payload[i*2:], id)
	}
	return EncodeGlobalCommand(seq, CmdReadAttributes, payload)
}

// BuildWriteAttributes builds a Write Attributes frame.
func BuildWriteAttributes(seq uint8, records ...AttributeRecord) []byte {
	payload := make([]byte, 0, len(records)*8)
	for _, r := range records {
		var rec [3]byte
		binary.LittleEndian.PutUint16(rec[:], r.AttrID)
		rec[2] = r.DataType
		payload = append(payload, rec[:]...)
		payload = append(payload, r.Value...)
	}
	return EncodeGlobalCommand(seq, CmdWriteAttributes, payload)
}

// BuildConfigureReporting builds a Configure Reporting frame. Each record is
// direction 0x00 (report to us); analog types carry the reportable change
// encoded at the width of the data type.
func BuildConfigureReporting(seq uint8, configs ...ReportConfig) []byte {
	payload := make([]byte, 0, len(configs)*11)
	for _, c := range configs {
		payload = append(payload, 0x00) // direction: reported
		var rec [7]byte
		binary.LittleEndian.PutUint16(rec[0:], c.AttrID)
		rec[2] = c.DataType
		binary.LittleEndian.PutUint16(rec[3:], c.MinInterval)
		binary.LittleEndian.PutUint16(rec[5:], c.MaxInterval)
		payload = append(payload, rec[:]...)
		if IsAnalog(c.DataType) {
			payload = append(payload, encodeChange(c.DataType, c.ReportableChange)...)
		}
	}
	return EncodeGlobalCommand(seq, CmdConfigureReporting, payload)
}

func encodeChange(dataType uint8, change uint32) []byte {
	size := TypeSize(dataType, nil)
	if size <= 0 {
		size = 2
	}
	out := make([]byte, size)
	for i := 0; i < size && i < 4; i++ {
		out[i] = byte(change >> (8 * i))
	}
	return out
}

// ParseDefaultResponse extracts (commandID, status) from a Default Response
// payload.
func ParseDefaultResponse(payload []byte) (uint8, uint8, error) {
	if len(payload) < 2 {
		return 0, 0, fmt.Errorf("zcl: short default response: %w", ErrInvalidFrame)
	}
	return payload[0], payload[1], nil
}
