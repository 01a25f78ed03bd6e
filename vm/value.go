package vm

import (
	"encoding/binary"
	"math"
)

// Integer is the constraint satisfied by every integer width/sign
// combination a type tag can project to.
type Integer interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64
}

// Float is the constraint satisfied by both floating type tags' native
// Go representations.
type Float interface {
	~float32 | ~float64
}

// Number is every concrete target kind project/assign can produce (the
// tagged sum spec.md §9 calls for), expressed as a Go generic
// constraint rather than an enum-plus-union.
type Number interface {
	Integer | Float
}

// decodeNative reads the operand named by tag/payloadAddr and returns
// it as a Go value of its own native width/kind (e.g. a 'h' tag yields
// a uint16, a 'd' tag yields a float64). This is the single place that
// understands the 13-tag table; project converts the result onward.
func decodeNative(mem *Memory, tag byte, payloadAddr uint32) (any, error) {
	info, ok := tagTable[tag]
	if !ok {
		return nil, &VMError{Kind: ErrInvalidType}
	}
	raw := mem.Load4(payloadAddr)
	if info.immediate {
		switch tag {
		case 'U':
			return raw, nil
		case 'I':
			return int32(raw), nil
		case 'F':
			return math.Float32frombits(raw), nil
		}
	}
	addr := raw // payload holds the address of the cell
	bytes := mem.LoadBytes(addr, info.width)
	switch tag {
	case 'z':
		return leUint(bytes), nil
	case 'l':
		return int64(leUint(bytes)), nil
	case 'd':
		return math.Float64frombits(leUint(bytes)), nil
	case 'u':
		return uint32(leUint(bytes)), nil
	case 'i':
		return int32(leUint(bytes)), nil
	case 'f':
		return math.Float32frombits(uint32(leUint(bytes))), nil
	case 'h':
		return uint16(leUint(bytes)), nil
	case 's':
		return int16(leUint(bytes)), nil
	case 'c':
		return bytes[0], nil
	case 'b':
		return int8(bytes[0]), nil
	}
	return nil, &VMError{Kind: ErrInvalidType}
}

// leUint decodes 1, 2, 4, or 8 bytes in host native byte order (see
// SPEC_FULL.md §3, no byte-swapping is ever performed).
func leUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.NativeEndian.Uint16(b))
	case 4:
		return uint64(binary.NativeEndian.Uint32(b))
	case 8:
		return binary.NativeEndian.Uint64(b)
	default:
		panic("vm: unreachable operand width")
	}
}

func leBytes(v uint64, width byte) []byte {
	out := make([]byte, width)
	switch width {
	case 1:
		out[0] = byte(v)
	case 2:
		binary.NativeEndian.PutUint16(out, uint16(v))
	case 4:
		binary.NativeEndian.PutUint32(out, uint32(v))
	case 8:
		binary.NativeEndian.PutUint64(out, v)
	default:
		panic("vm: unreachable operand width")
	}
	return out
}

// convert applies the host language's standard numeric conversion
// rules (Go's own int/float conversion semantics) from whatever
// concrete numeric type v holds to the target type T.
func convert[T Number](v any) T {
	switch x := v.(type) {
	case uint8:
		return T(x)
	case int8:
		return T(x)
	case uint16:
		return T(x)
	case int16:
		return T(x)
	case uint32:
		return T(x)
	case int32:
		return T(x)
	case uint64:
		return T(x)
	case int64:
		return T(x)
	case float32:
		return T(x)
	case float64:
		return T(x)
	default:
		panic("vm: unreachable numeric kind")
	}
}

// project reads the operand named by tag/payloadAddr and converts it
// to T, per spec.md §4.3's project(operand, tag, target_kind).
func project[T Number](mem *Memory, tag byte, payloadAddr uint32) (T, error) {
	native, err := decodeNative(mem, tag, payloadAddr)
	if err != nil {
		var zero T
		return zero, err
	}
	return convert[T](native), nil
}

// addressOf yields the address at which the operand's storage lives:
// the payload cell itself for immediate tags, or the address the
// payload names for addressed tags.
func addressOf(mem *Memory, tag byte, payloadAddr uint32) uint32 {
	if IsImmediate(tag) {
		return payloadAddr
	}
	return mem.Load4(payloadAddr)
}

// assignAny writes v (of native type T) to the destination named by
// dstTag/payloadAddr, converting to the tag's own width/kind first.
// Immediate destinations self-modify the operation record's payload
// cell; addressed destinations write through to the cited address.
func assignAny[T Number](mem *Memory, dstTag byte, payloadAddr uint32, v T) {
	target := addressOf(mem, dstTag, payloadAddr)
	switch dstTag {
	case 'U':
		mem.Store4(target, convert[uint32](v))
	case 'I':
		mem.Store4(target, uint32(convert[int32](v)))
	case 'F':
		mem.Store4(target, math.Float32bits(convert[float32](v)))
	case 'z':
		mem.StoreBytes(target, leBytes(convert[uint64](v), 8))
	case 'l':
		mem.StoreBytes(target, leBytes(uint64(convert[int64](v)), 8))
	case 'd':
		mem.StoreBytes(target, leBytes(math.Float64bits(convert[float64](v)), 8))
	case 'u':
		mem.StoreBytes(target, leBytes(uint64(convert[uint32](v)), 4))
	case 'i':
		mem.StoreBytes(target, leBytes(uint64(uint32(convert[int32](v))), 4))
	case 'f':
		mem.StoreBytes(target, leBytes(uint64(math.Float32bits(convert[float32](v))), 4))
	case 'h':
		mem.StoreBytes(target, leBytes(uint64(convert[uint16](v)), 2))
	case 's':
		mem.StoreBytes(target, leBytes(uint64(uint16(convert[int16](v))), 2))
	case 'c':
		mem.StoreBytes(target, []byte{convert[uint8](v)})
	case 'b':
		mem.StoreBytes(target, []byte{byte(convert[int8](v))})
	}
}
