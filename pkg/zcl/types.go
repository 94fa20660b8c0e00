package zcl

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrInvalidFrame marks frames that cannot be decoded.
var ErrInvalidFrame = errors.New("invalid frame")

// ZCL data type IDs used by this gateway.
const (
	TypeNoData   uint8 = 0x00
	TypeBool     uint8 = 0x10
	TypeBitmap8  uint8 = 0x18
	TypeBitmap16 uint8 = 0x19
	TypeBitmap24 uint8 = 0x1A
	TypeBitmap32 uint8 = 0x1B
	TypeUint8    uint8 = 0x20
	TypeUint16   uint8 = 0x21
	TypeUint24   uint8 = 0x22
	TypeUint32   uint8 = 0x23
	TypeUint40   uint8 = 0x24
	TypeUint48   uint8 = 0x25
	TypeInt8     uint8 = 0x28
	TypeInt16    uint8 = 0x29
	TypeInt24    uint8 = 0x2A
	TypeInt32    uint8 = 0x2B
	TypeEnum8    uint8 = 0x30
	TypeEnum16   uint8 = 0x31
	TypeFloat16  uint8 = 0x39
	TypeFloat32  uint8 = 0x3A
	TypeOctetStr uint8 = 0x41
	TypeCharStr  uint8 = 0x42
	TypeEUI64    uint8 = 0xF0
)

var fixedTypeSizes = map[uint8]int{
	TypeNoData:   0,
	TypeBool:     1,
	TypeBitmap8:  1,
	TypeBitmap16: 2,
	TypeBitmap24: 3,
	TypeBitmap32: 4,
	TypeUint8:    1,
	TypeUint16:   2,
	TypeUint24:   3,
	TypeUint32:   4,
	TypeUint40:   5,
	TypeUint48:   6,
	TypeInt8:     1,
	TypeInt16:    2,
	TypeInt24:    3,
	TypeInt32:    4,
	TypeEnum8:    1,
	TypeEnum16:   2,
	TypeFloat16:  2,
	TypeFloat32:  4,
	TypeEUI64:    8,
}

// TypeSize returns the encoded byte length of a value of the given data type.
// Variable-length types read their length prefix from rest. Returns -1 for
// unknown types; callers abort the surrounding walk.
func TypeSize(dataType uint8, rest []byte) int {
	if n, ok := fixedTypeSizes[dataType]; ok {
		return n
	}
	if dataType == TypeOctetStr || dataType == TypeCharStr {
		if len(rest) < 1 {
			return -1
		}
		return 1 + int(rest[0])
	}
	return -1
}

// IsAnalog reports whether the data type takes a reportable-change field in
// a reporting configuration record. Discrete types (bool, bitmap, enum,
// strings) do not.
func IsAnalog(dataType uint8) bool {
	switch {
	case dataType >= TypeUint8 && dataType <= 0x2F:
		return true
	case dataType >= 0x38 && dataType <= TypeFloat32:
		return true
	default:
		return false
	}
}

// DecodeValue decodes a single attribute value of the given type from data.
// It returns the Go value and the number of bytes consumed, or (nil, -1) when
// the type is unknown or data is truncated.
func DecodeValue(dataType uint8, data []byte) (any, int) {
	size := TypeSize(dataType, data)
	if size < 0 || len(data) < size {
		return nil, -1
	}

	switch dataType {
	case TypeNoData:
		return nil, 0
	case TypeBool:
		return data[0] != 0, size
	case TypeBitmap8, TypeUint8, TypeEnum8:
		return int64(data[0]), size
	case TypeBitmap16, TypeUint16, TypeEnum16:
		return int64(binary.LittleEndian.Uint16(data)), size
	case TypeBitmap24, TypeUint24:
		return int64(uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16), size
	case TypeBitmap32, TypeUint32:
		return int64(binary.LittleEndian.Uint32(data)), size
	case TypeUint40, TypeUint48:
		var v uint64
		for i := size - 1; i >= 0; i-- {
			v = v<<8 | uint64(data[i])
		}
		return int64(v), size
	case TypeInt8:
		return int64(int8(data[0])), size
	case TypeInt16:
		return int64(int16(binary.LittleEndian.Uint16(data))), size
	case TypeInt24:
		v := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16
		if v&0x800000 != 0 {
			v |= 0xFF000000
		}
		return int64(int32(v)), size
	case TypeInt32:
		return int64(int32(binary.LittleEndian.Uint32(data))), size
	case TypeFloat16:
		return halfToFloat(binary.LittleEndian.Uint16(data)), size
	case TypeFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data))), size
	case TypeOctetStr:
		n := int(data[0])
		v := make([]byte, n)
		copy(v, data[1:1+n])
		return v, size
	case TypeCharStr:
		n := int(data[0])
		return string(data[1 : 1+n]), size
	case TypeEUI64:
		return EUI64String(data[:8]), size
	default:
		return nil, -1
	}
}

// EUI64String renders an 8-byte little-endian IEEE address as 16 lowercase
// hex characters, most significant byte first.
func EUI64String(le []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 0; i < 8; i++ {
		b := le[7-i]
		out[i*2] = hexdigits[b>>4]
		out[i*2+1] = hexdigits[b&0x0F]
	}
	return string(out)
}

func halfToFloat(bits uint16) float64 {
	sign := uint32(bits>>15) & 1
	exp := uint32(bits>>10) & 0x1F
	frac := uint32(bits) & 0x3FF

	var f32 uint32
	switch exp {
	case 0:
		if frac == 0 {
			f32 = sign << 31
		} else {
			// subnormal: renormalise
			e := uint32(127 - 15 + 1)
			for frac&0x400 == 0 {
				frac <<= 1
				e--
			}
			f32 = sign<<31 | e<<23 | (frac&0x3FF)<<13
		}
	case 0x1F:
		f32 = sign<<31 | 0xFF<<23 | frac<<13
	default:
		f32 = sign<<31 | (exp-15+127)<<23 | frac<<13
	}
	return float64(math.Float32frombits(f32))
}
