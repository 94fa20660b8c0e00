package zcl

import (
	"bytes"
	"testing"
)

func TestParseHeader(t *testing.T) {
	h, payload, err := ParseHeader([]byte{0x18, 0x01, 0x0A, 0x00, 0x00, 0x18, 0x01})
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if !h.IsGlobal() {
		t.Error("expected global frame")
	}
	if h.Seq != 0x01 || h.Command != CmdReportAttributes {
		t.Errorf("unexpected header: %+v", h)
	}
	if len(payload) != 4 {
		t.Errorf("expected 4 payload bytes, got %d", len(payload))
	}
}

func TestParseHeaderManufacturerSpecific(t *testing.T) {
	h, payload, err := ParseHeader([]byte{0x05, 0x0B, 0x10, 0x42, 0x01, 0xAA})
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if !h.IsManufacturerSpecific() {
		t.Fatal("expected manufacturer-specific frame")
	}
	if h.Manufacturer != 0x100B {
		t.Errorf("manufacturer = 0x%04x, want 0x100b", h.Manufacturer)
	}
	if h.Seq != 0x42 || h.Command != 0x01 {
		t.Errorf("unexpected header: %+v", h)
	}
	if len(payload) != 1 || payload[0] != 0xAA {
		t.Errorf("unexpected payload: %v", payload)
	}
}

func TestParseHeaderTooShort(t *testing.T) {
	if _, _, err := ParseHeader([]byte{0x18, 0x01}); err == nil {
		t.Error("expected error for short frame")
	}
}

func TestParseAttributeReports(t *testing.T) {
	// occupancy report: attr 0x0000, bitmap8, value 0x01
	reports, err := ParseAttributeReports([]byte{0x00, 0x00, 0x18, 0x01})
	if err != nil {
		t.Fatalf("ParseAttributeReports failed: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	r := reports[0]
	if r.AttrID != 0x0000 || r.DataType != TypeBitmap8 {
		t.Errorf("unexpected report: %+v", r)
	}
	if v, ok := r.Value.(int64); !ok || v != 1 {
		t.Errorf("value = %v, want 1", r.Value)
	}
}

func TestParseAttributeReportsMultiple(t *testing.T) {
	payload := []byte{
		0x05, 0x05, 0x21, 0x01, 0x09, // rms voltage uint16 = 2305
		0x0B, 0x05, 0x29, 0x29, 0x09, // active power int16 = 2345
		0x05, 0x00, 0x42, 0x03, 'T', 'S', '1', // model char string
	}
	reports, err := ParseAttributeReports(payload)
	if err != nil {
		t.Fatalf("ParseAttributeReports failed: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	if v := reports[0].Value.(int64); v != 2305 {
		t.Errorf("voltage raw = %d, want 2305", v)
	}
	if v := reports[1].Value.(int64); v != 2345 {
		t.Errorf("power raw = %d, want 2345", v)
	}
	if v := reports[2].Value.(string); v != "TS1" {
		t.Errorf("model = %q, want TS1", v)
	}
}

func TestParseAttributeReportsUnknownType(t *testing.T) {
	payload := []byte{
		0x00, 0x00, 0x10, 0x01, // bool true
		0x01, 0x00, 0x4C, 0x00, // unknown type aborts walk
	}
	reports, err := ParseAttributeReports(payload)
	if err == nil {
		t.Error("expected error for unknown data type")
	}
	if len(reports) != 1 {
		t.Errorf("expected 1 report before abort, got %d", len(reports))
	}
}

func TestParseReadAttributesResponse(t *testing.T) {
	payload := []byte{
		0x04, 0x06, 0x00, 0x21, 0x01, 0x00, // ac_power_multiplier = 1
		0x05, 0x06, 0x8F, // ac_power_divisor unreadable
		0x0B, 0x05, 0x00, 0x29, 0x0A, 0x00, // active power = 10
	}
	got := ParseReadAttributesResponse(payload)
	if len(got) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(got))
	}
	if v := got[0x0604].Value.(int64); v != 1 {
		t.Errorf("multiplier = %d, want 1", v)
	}
	if _, ok := got[0x0605]; ok {
		t.Error("failed read should be skipped")
	}
	if v := got[0x050B].Value.(int64); v != 10 {
		t.Errorf("power = %d, want 10", v)
	}
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name     string
		dataType uint8
		data     []byte
		want     any
	}{
		{"bool true", TypeBool, []byte{0x01}, true},
		{"bool false", TypeBool, []byte{0x00}, false},
		{"uint8", TypeUint8, []byte{0xFE}, int64(254)},
		{"int16 negative", TypeInt16, []byte{0x9C, 0xFF}, int64(-100)},
		{"uint48", TypeUint48, []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00}, int64(1)},
		{"enum8", TypeEnum8, []byte{0x02}, int64(2)},
		{"char string", TypeCharStr, []byte{0x02, 'h', 'i'}, "hi"},
	}
	for _, tt := range tests {
		got, n := DecodeValue(tt.dataType, tt.data)
		if n < 0 {
			t.Errorf("%s: decode failed", tt.name)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestBuildConfigureReporting(t *testing.T) {
	frame := BuildConfigureReporting(0x10, ReportConfig{
		AttrID:           0x050B,
		DataType:         TypeInt16,
		MinInterval:      10,
		MaxInterval:      60,
		ReportableChange: 10,
	})
	want := []byte{
		0x00, 0x10, 0x06, // header
		0x00,       // direction
		0x0B, 0x05, // attr
		0x29,       // int16
		0x0A, 0x00, // min
		0x3C, 0x00, // max
		0x0A, 0x00, // change
	}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = % x, want % x", frame, want)
	}
}

func TestBuildConfigureReportingDiscrete(t *testing.T) {
	frame := BuildConfigureReporting(0x11, ReportConfig{
		AttrID:      0x0000,
		DataType:    TypeBool,
		MaxInterval: 3600,
	})
	// discrete types carry no reportable change field
	want := []byte{0x00, 0x11, 0x06, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x10, 0x0E}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = % x, want % x", frame, want)
	}
}

func TestBuildReadAttributes(t *testing.T) {
	frame := BuildReadAttributes(0x05, 0x0004, 0x0005)
	want := []byte{0x00, 0x05, 0x00, 0x04, 0x00, 0x05, 0x00}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = % x, want % x", frame, want)
	}
}

func TestBuildWriteAttributes(t *testing.T) {
	frame := BuildWriteAttributes(0x07, AttributeRecord{
		AttrID:   0x0010,
		DataType: TypeEUI64,
		Value:    []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88},
	})
	want := []byte{0x00, 0x07, 0x02, 0x10, 0x00, 0xF0, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = % x, want % x", frame, want)
	}
}

func TestEUI64String(t *testing.T) {
	got := EUI64String([]byte{0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11, 0x00})
	if got != "0011223344556677" {
		t.Errorf("EUI64String = %q, want 0011223344556677", got)
	}
}

func TestParseTuyaDataPoints(t *testing.T) {
	// status, tsn, DP1 enum=1, DP104 bool=1
	payload := []byte{
		0x00, 0x00, 0x01,
		0x01, 0x04, 0x00, 0x01, 0x01,
		0x68, 0x01, 0x00, 0x01, 0x01,
	}
	dps := ParseTuyaDataPoints(payload)
	if len(dps) != 2 {
		t.Fatalf("expected 2 data points, got %d", len(dps))
	}
	if dps[0].ID != 1 || dps[0].Type != TuyaTypeEnum || dps[0].Enum() != 1 {
		t.Errorf("unexpected DP1: %+v", dps[0])
	}
	if dps[1].ID != 104 || !dps[1].Bool() {
		t.Errorf("unexpected DP104: %+v", dps[1])
	}
}

func TestParseTuyaDataPointsTruncated(t *testing.T) {
	payload := []byte{
		0x00, 0x00, 0x01,
		0x01, 0x04, 0x00, 0x01, 0x01,
		0x09, 0x02, 0x00, 0x04, 0x00, // declares 4 bytes, carries 1
	}
	dps := ParseTuyaDataPoints(payload)
	if len(dps) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(dps))
	}
}
