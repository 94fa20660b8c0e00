// Package zcl implements the small slice of the Zigbee Cluster Library
// this gateway speaks: frame headers, attribute records, reporting
// configuration and the handful of cluster commands we issue.
package zcl

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// Profile IDs
const (
	ProfileHomeAutomation uint16 = 0x0104
	ProfileLightLink      uint16 = 0xC05E
)

// Frame control bits
const (
	FrameTypeGlobal          uint8 = 0x00
	FrameTypeClusterSpecific uint8 = 0x01
	ManufacturerSpecific     uint8 = 0x04
	DirectionServerToClient  uint8 = 0x08
	DisableDefaultResponse   uint8 = 0x10
)

// Global command IDs
const (
	CmdReadAttributes             uint8 = 0x00
	CmdReadAttributesResponse     uint8 = 0x01
	CmdWriteAttributes            uint8 = 0x02
	CmdWriteAttributesResponse    uint8 = 0x04
	CmdConfigureReporting         uint8 = 0x06
	CmdConfigureReportingResponse uint8 = 0x07
	CmdReportAttributes           uint8 = 0x0A
	CmdDefaultResponse            uint8 = 0x0B
)

// Header is a parsed ZCL frame header.
type Header struct {
	FrameControl uint8
	Manufacturer uint16 // valid when IsManufacturerSpecific
	Seq          uint8
	Command      uint8
}

// IsGlobal reports whether the frame carries a global (profile-wide) command.
func (h Header) IsGlobal() bool {
	return h.FrameControl&0x03 == FrameTypeGlobal
}

// IsClusterSpecific reports whether the frame carries a cluster-specific command.
func (h Header) IsClusterSpecific() bool {
	return h.FrameControl&0x03 == FrameTypeClusterSpecific
}

// IsManufacturerSpecific reports whether the manufacturer code field is present.
func (h Header) IsManufacturerSpecific() bool {
	return h.FrameControl&ManufacturerSpecific != 0
}

// ParseHeader splits a raw ZCL frame into its header and payload.
func ParseHeader(frame []byte) (Header, []byte, error) {
	if len(frame) < 3 {
		return Header{}, nil, fmt.Errorf("zcl: frame too short (%d bytes): %w", len(frame), ErrInvalidFrame)
	}

	h := Header{FrameControl: frame[0]}
	idx := 1
	if h.IsManufacturerSpecific() {
		if len(frame) < 5 {
			return Header{}, nil, fmt.Errorf("zcl: truncated manufacturer header: %w", ErrInvalidFrame)
		}
		h.Manufacturer = binary.LittleEndian.Uint16(frame[idx:])
		idx += 2
	}
	h.Seq = frame[idx]
	h.Command = frame[idx+1]
	return h, frame[idx+2:], nil
}

var seqCounter atomic.Uint32

// NextSeq returns the next transaction sequence number.
func NextSeq() uint8 {
	return uint8(seqCounter.Add(1))
}

// EncodeClusterCommand builds a cluster-specific command frame.
func EncodeClusterCommand(seq uint8, commandID uint8, payload []byte) []byte {
	frame := make([]byte, 0, 3+len(payload))
	frame = append(frame, FrameTypeClusterSpecific|DisableDefaultResponse)
	frame = append(frame, seq, commandID)
	return append(frame, payload...)
}

// EncodeClusterResponse builds a cluster-specific server-bound response frame,
// reusing the sequence number of the frame it answers.
func EncodeClusterResponse(seq uint8, commandID uint8, payload []byte) []byte {
	frame := make([]byte, 0, 3+len(payload))
	frame = append(frame, FrameTypeClusterSpecific|DisableDefaultResponse)
	frame = append(frame, seq, commandID)
	return append(frame, payload...)
}

// EncodeGlobalCommand builds a global command frame (Read Attributes etc.).
func EncodeGlobalCommand(seq uint8, commandID uint8, payload []byte) []byte {
	frame := make([]byte, 0, 3+len(payload))
	frame = append(frame, FrameTypeGlobal)
	frame = append(frame, seq, commandID)
	return append(frame, payload...)
}
