package zigbee

import (
	"encoding/binary"
	"fmt"
)

// ZDO rides profile 0x0000; the cluster ID selects the operation and
// responses set bit 15. Every frame opens with a one-byte transaction
// sequence. Only the slice of ZDP the gateway needs is implemented: the
// join interview (active endpoints + simple descriptors), address
// resolution, bind, leave and permit join.
const (
	zdoProfile uint16 = 0x0000

	zdoIEEEAddrReq       uint16 = 0x0001
	zdoSimpleDescReq     uint16 = 0x0004
	zdoActiveEPReq       uint16 = 0x0005
	zdoBindReq           uint16 = 0x0021
	zdoMgmtLeaveReq      uint16 = 0x0034
	zdoMgmtPermitJoinReq uint16 = 0x0036

	zdoResponseBit uint16 = 0x8000

	zdoStatusSuccess uint8 = 0x00
)

// broadcastRouters addresses all routers and the coordinator.
const broadcastRouters uint16 = 0xFFFC

// SimpleDescriptor is a parsed ZDP simple descriptor: one endpoint's
// profile, device type and cluster lists.
type SimpleDescriptor struct {
	Endpoint      uint8
	ProfileID     uint16
	DeviceID      uint16
	DeviceVersion uint8
	InClusters    []uint16
	OutClusters   []uint16
}

func buildIEEEAddrReq(seq uint8, nwk uint16) []byte {
	// requestType 0x00 (single device), startIndex 0
	return []byte{seq, byte(nwk), byte(nwk >> 8), 0x00, 0x00}
}

func buildActiveEPReq(seq uint8, nwk uint16) []byte {
	return []byte{seq, byte(nwk), byte(nwk >> 8)}
}

func buildSimpleDescReq(seq uint8, nwk uint16, endpoint uint8) []byte {
	return []byte{seq, byte(nwk), byte(nwk >> 8), endpoint}
}

// buildBindReq binds (srcIEEE, srcEP, cluster) to (dstIEEE, dstEP) using
// 64-bit destination addressing. IEEE addresses are 8-byte little-endian.
func buildBindReq(seq uint8, srcIEEE []byte, srcEP uint8, cluster uint16, dstIEEE []byte, dstEP uint8) []byte {
	out := make([]byte, 0, 22)
	out = append(out, seq)
	out = append(out, srcIEEE...)
	out = append(out, srcEP)
	out = append(out, byte(cluster), byte(cluster>>8))
	out = append(out, 0x03) // DstAddrMode: 64-bit extended
	out = append(out, dstIEEE...)
	out = append(out, dstEP)
	return out
}

func buildMgmtLeaveReq(seq uint8, ieee []byte) []byte {
	out := make([]byte, 0, 10)
	out = append(out, seq)
	out = append(out, ieee...)
	out = append(out, 0x00) // no rejoin, keep children
	return out
}

func buildMgmtPermitJoinReq(seq uint8, seconds uint8) []byte {
	return []byte{seq, seconds, 0x00} // TC_Significance 0
}

// parseActiveEPRsp returns the responding device's NWK address and its
// active endpoint list.
func parseActiveEPRsp(payload []byte) (uint16, []uint8, error) {
	if len(payload) < 5 {
		return 0, nil, fmt.Errorf("active ep response too short: %d bytes", len(payload))
	}
	if payload[1] != zdoStatusSuccess {
		return 0, nil, fmt.Errorf("active ep request failed: status 0x%02X", payload[1])
	}
	nwk := binary.LittleEndian.Uint16(payload[2:4])
	count := int(payload[4])
	if len(payload) < 5+count {
		return 0, nil, fmt.Errorf("active ep response truncated: %d endpoints announced, %d bytes left", count, len(payload)-5)
	}
	eps := make([]uint8, count)
	copy(eps, payload[5:5+count])
	return nwk, eps, nil
}

func parseSimpleDescRsp(payload []byte) (SimpleDescriptor, error) {
	var d SimpleDescriptor
	if len(payload) < 5 {
		return d, fmt.Errorf("simple descriptor response too short: %d bytes", len(payload))
	}
	if payload[1] != zdoStatusSuccess {
		return d, fmt.Errorf("simple descriptor request failed: status 0x%02X", payload[1])
	}

	desc := payload[5:]
	if len(desc) < 8 {
		return d, fmt.Errorf("simple descriptor truncated: %d bytes", len(desc))
	}
	d.Endpoint = desc[0]
	d.ProfileID = binary.LittleEndian.Uint16(desc[1:3])
	d.DeviceID = binary.LittleEndian.Uint16(desc[3:5])
	d.DeviceVersion = desc[5] & 0x0F

	idx := 6
	inCount := int(desc[idx])
	idx++
	if len(desc) < idx+inCount*2+1 {
		return d, fmt.Errorf("simple descriptor input clusters truncated")
	}
	d.InClusters = make([]uint16, 0, inCount)
	for i := 0; i < inCount; i++ {
		d.InClusters = append(d.InClusters, binary.LittleEndian.Uint16(desc[idx:]))
		idx += 2
	}

	outCount := int(desc[idx])
	idx++
	if len(desc) < idx+outCount*2 {
		return d, fmt.Errorf("simple descriptor output clusters truncated")
	}
	d.OutClusters = make([]uint16, 0, outCount)
	for i := 0; i < outCount; i++ {
		d.OutClusters = append(d.OutClusters, binary.LittleEndian.Uint16(desc[idx:]))
		idx += 2
	}

	return d, nil
}

// parseIEEEAddrRsp returns the (ieee LE bytes, nwk) pair from an IEEE
// address response.
func parseIEEEAddrRsp(payload []byte) ([]byte, uint16, error) {
	if len(payload) < 12 {
		return nil, 0, fmt.Errorf("ieee addr response too short: %d bytes", len(payload))
	}
	if payload[1] != zdoStatusSuccess {
		return nil, 0, fmt.Errorf("ieee addr request failed: status 0x%02X", payload[1])
	}
	ieee := make([]byte, 8)
	copy(ieee, payload[2:10])
	nwk := binary.LittleEndian.Uint16(payload[10:12])
	return ieee, nwk, nil
}

// parseZDOStatus extracts the status byte shared by the simple
// acknowledge-style responses (Bind_rsp, Mgmt_Leave_rsp).
func parseZDOStatus(payload []byte) (uint8, error) {
	if len(payload) < 2 {
		return 0, fmt.Errorf("zdo response too short: %d bytes", len(payload))
	}
	return payload[1], nil
}
