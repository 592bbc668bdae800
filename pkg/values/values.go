// Copyright 2025 Certen Protocol
//
// Storage value model for the transaction execution engine.
// A StorageValue is the typed, immutable payload carried by an Update
// (see pkg/request and pkg/response): a primitive wrapper, a String, a
// BigInteger, an Enum tag, a StorageReference, or the distinguished null.

package values

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
)

// Kind tags the closed set of storage value variants.
type Kind byte

const (
	KindNull Kind = iota
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindBigInteger
	KindString
	KindEnum
	KindStorageReference
)

// StorageValue is a closed sum type over the kinds above. Implementations
// are comparable so that StorageValue values can be used as map keys and
// compared with ==, mirroring the "all value types are immutable" rule in
// the data model.
type StorageValue interface {
	Kind() Kind
	// MarshalCanonical returns the deterministic byte encoding used both
	// to hash requests and to compare histories across replicas.
	MarshalCanonical() []byte
	String() string
}

// NullValue is the single instance representing a null reference.
type NullValue struct{}

func (NullValue) Kind() Kind               { return KindNull }
func (NullValue) MarshalCanonical() []byte { return []byte{byte(KindNull)} }
func (NullValue) String() string           { return "null" }

// BooleanValue wraps a primitive boolean.
type BooleanValue bool

func (v BooleanValue) Kind() Kind { return KindBoolean }
func (v BooleanValue) MarshalCanonical() []byte {
	b := byte(0)
	if v {
		b = 1
	}
	return []byte{byte(KindBoolean), b}
}
func (v BooleanValue) String() string { return fmt.Sprintf("%t", bool(v)) }

// ByteValue wraps a primitive byte.
type ByteValue byte

func (v ByteValue) Kind() Kind               { return KindByte }
func (v ByteValue) MarshalCanonical() []byte { return []byte{byte(KindByte), byte(v)} }
func (v ByteValue) String() string           { return fmt.Sprintf("%d", byte(v)) }

// CharValue wraps a primitive char (UTF-16 code unit, stored as uint16).
type CharValue uint16

func (v CharValue) Kind() Kind { return KindChar }
func (v CharValue) MarshalCanonical() []byte {
	b := make([]byte, 3)
	b[0] = byte(KindChar)
	binary.BigEndian.PutUint16(b[1:], uint16(v))
	return b
}
func (v CharValue) String() string { return fmt.Sprintf("%c", rune(v)) }

// ShortValue wraps a primitive short.
type ShortValue int16

func (v ShortValue) Kind() Kind { return KindShort }
func (v ShortValue) MarshalCanonical() []byte {
	b := make([]byte, 3)
	b[0] = byte(KindShort)
	binary.BigEndian.PutUint16(b[1:], uint16(v))
	return b
}
func (v ShortValue) String() string { return fmt.Sprintf("%d", int16(v)) }

// IntValue wraps a primitive int.
type IntValue int32

func (v IntValue) Kind() Kind { return KindInt }
func (v IntValue) MarshalCanonical() []byte {
	b := make([]byte, 5)
	b[0] = byte(KindInt)
	binary.BigEndian.PutUint32(b[1:], uint32(v))
	return b
}
func (v IntValue) String() string { return fmt.Sprintf("%d", int32(v)) }

// LongValue wraps a primitive long.
type LongValue int64

func (v LongValue) Kind() Kind { return KindLong }
func (v LongValue) MarshalCanonical() []byte {
	b := make([]byte, 9)
	b[0] = byte(KindLong)
	binary.BigEndian.PutUint64(b[1:], uint64(v))
	return b
}
func (v LongValue) String() string { return fmt.Sprintf("%d", int64(v)) }

// FloatValue wraps a primitive float (IEEE-754 binary32 bit pattern).
type FloatValue float32

func (v FloatValue) Kind() Kind { return KindFloat }
func (v FloatValue) MarshalCanonical() []byte {
	b := make([]byte, 5)
	b[0] = byte(KindFloat)
	binary.BigEndian.PutUint32(b[1:], math.Float32bits(float32(v)))
	return b
}
func (v FloatValue) String() string { return fmt.Sprintf("%v", float32(v)) }

// DoubleValue wraps a primitive double (IEEE-754 binary64 bit pattern).
type DoubleValue float64

func (v DoubleValue) Kind() Kind { return KindDouble }
func (v DoubleValue) MarshalCanonical() []byte {
	b := make([]byte, 9)
	b[0] = byte(KindDouble)
	binary.BigEndian.PutUint64(b[1:], math.Float64bits(float64(v)))
	return b
}
func (v DoubleValue) String() string { return fmt.Sprintf("%v", float64(v)) }

// BigIntegerValue wraps an arbitrary-precision integer. Canonical encoding
// is an explicit sign byte followed by the minimal big-endian magnitude
// bytes of (*big.Int).Bytes, since Bytes() alone discards sign.
type BigIntegerValue struct {
	V *big.Int
}

func (v BigIntegerValue) Kind() Kind { return KindBigInteger }
func (v BigIntegerValue) MarshalCanonical() []byte {
	sign := byte(0)
	mag := []byte{}
	if v.V != nil {
		switch v.V.Sign() {
		case -1:
			sign = 2
		case 1:
			sign = 1
		}
		mag = v.V.Bytes()
	}
	out := make([]byte, 0, 2+len(mag))
	out = append(out, byte(KindBigInteger), sign)
	out = append(out, mag...)
	return out
}
func (v BigIntegerValue) String() string {
	if v.V == nil {
		return "0"
	}
	return v.V.String()
}

// StringValue wraps a java.lang.String-equivalent, UTF-8 with a length
// prefix in its canonical form.
type StringValue string

func (v StringValue) Kind() Kind { return KindString }
func (v StringValue) MarshalCanonical() []byte {
	raw := []byte(v)
	b := make([]byte, 5+len(raw))
	b[0] = byte(KindString)
	binary.BigEndian.PutUint32(b[1:5], uint32(len(raw)))
	copy(b[5:], raw)
	return b
}
func (v StringValue) String() string { return string(v) }

// EnumValue names an enumeration constant by its declaring class and name.
type EnumValue struct {
	EnumClass string
	Name      string
}

func (v EnumValue) Kind() Kind { return KindEnum }
func (v EnumValue) MarshalCanonical() []byte {
	return canonicalStrings(byte(KindEnum), v.EnumClass, v.Name)
}
func (v EnumValue) String() string { return v.EnumClass + "." + v.Name }

func canonicalStrings(tag byte, parts ...string) []byte {
	out := []byte{tag}
	for _, p := range parts {
		raw := []byte(p)
		lenBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBuf, uint32(len(raw)))
		out = append(out, lenBuf...)
		out = append(out, raw...)
	}
	return out
}

