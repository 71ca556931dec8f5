// Copyright 2024 The Docdb Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package encoding implements the order-preserving byte encoding for the
// typed atoms (PrimitiveValue) that make up every DocKey and SubDocKey.
//
// The encoding is chosen so that byte-lexicographic order over encoded
// values equals the desired logical order: the leading type byte orders
// distinct types against each other, and the payload orders values of the
// same type by their natural order.
package encoding

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/tabletdb/docdb/pkg/docerr"
)

// Type is the leading byte of an encoded PrimitiveValue. Its numeric value
// fixes the sort position of the type relative to every other type.
type Type byte

// The type byte table. Ordering is contractual: GroupEnd < Null < False <
// True < Int32 < Int64 < Float < Double < String < Timestamp < Uint32Hash.
// GroupEnd must sort below every other valid type byte so that an empty
// group sorts before any non-empty one. The seek-past sentinel used by
// AdvanceOutOf* is the opposite: a byte above every type byte (see
// AdvancePastAllValueTypes). Uint32Hash must
// sort above every PrimitiveValue type byte so its presence at the head of
// an encoded DocKey is unambiguous (see pkg/dockey).
const (
	GroupEnd   Type = 0x00
	Null       Type = 0x01
	False      Type = 0x02
	True       Type = 0x03
	Int32      Type = 0x04
	Int64      Type = 0x05
	Float      Type = 0x06
	Double     Type = 0x07
	String     Type = 0x08
	Timestamp  Type = 0x09
	Uint32Hash Type = 0x0a

	// maxValueType is the highest type byte ever assigned (Uint32Hash). AdvanceOutOfSubDoc and AdvanceOutOfDocKeyPrefix use a
	// byte strictly greater than this as their seek-past sentinel.
	maxValueType = Uint32Hash
)

// Kind identifies which PrimitiveValue variant a decoded value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindFloat
	KindDouble
	KindString
	KindTimestamp
)

// Value is a single tagged atom: a subkey component, a hashed or range
// component of a DocKey, or the scalar payload of a leaf cell. Values are
// small, copyable, and carry no shared mutable state.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f32  float32
	f64  float64
	s    string
	ts   uint64 // raw timestamp ordinal, see pkg/hlc.Timestamp
}

// NullValue returns the PrimitiveValue null atom.
func NullValue() Value { return Value{kind: KindNull} }

// BoolValue returns a PrimitiveValue boolean atom.
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// Int32Value returns a PrimitiveValue signed 32-bit integer atom.
func Int32Value(v int32) Value { return Value{kind: KindInt32, i: int64(v)} }

// Int64Value returns a PrimitiveValue signed 64-bit integer atom.
func Int64Value(v int64) Value { return Value{kind: KindInt64, i: v} }

// FloatValue returns a PrimitiveValue single-precision float atom.
func FloatValue(v float32) Value { return Value{kind: KindFloat, f32: v} }

// DoubleValue returns a PrimitiveValue double-precision float atom.
func DoubleValue(v float64) Value { return Value{kind: KindDouble, f64: v} }

// StringValue returns a PrimitiveValue UTF-8 string atom.
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

// TimestampValue returns a PrimitiveValue atom wrapping a raw timestamp
// ordinal, encoded in ascending order. A SubDocKey's terminating timestamp
// does not use this atom: pkg/dockey writes its own descending form after
// the same Timestamp type byte, and its decoder reads any Timestamp-typed
// byte after the DocKey as that terminating timestamp.
func TimestampValue(raw uint64) Value { return Value{kind: KindTimestamp, ts: raw} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean payload of v. Only valid if Kind() == KindBool.
func (v Value) AsBool() bool { return v.b }

// AsInt32 returns the int32 payload of v. Only valid if Kind() == KindInt32.
func (v Value) AsInt32() int32 { return int32(v.i) }

// AsInt64 returns the int64 payload of v. Only valid if Kind() == KindInt64.
func (v Value) AsInt64() int64 { return v.i }

// AsFloat32 returns the float32 payload of v. Only valid if Kind() == KindFloat.
func (v Value) AsFloat32() float32 { return v.f32 }

// AsFloat64 returns the float64 payload of v. Only valid if Kind() == KindDouble.
func (v Value) AsFloat64() float64 { return v.f64 }

// AsString returns the string payload of v. Only valid if Kind() == KindString.
func (v Value) AsString() string { return v.s }

// AsTimestampRaw returns the raw timestamp ordinal of v. Only valid if
// Kind() == KindTimestamp.
func (v Value) AsTimestampRaw() uint64 { return v.ts }

// Equal reports whether v and other hold the same kind and payload. Float
// payloads are compared with ==, so 0 and -0 are equal (though they encode
// differently) and NaN is not equal to itself.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt32, KindInt64:
		return v.i == other.i
	case KindFloat:
		return v.f32 == other.f32
	case KindDouble:
		return v.f64 == other.f64
	case KindString:
		return v.s == other.s
	case KindTimestamp:
		return v.ts == other.ts
	default:
		return false
	}
}

// String renders a debug form of v. It is not redaction-aware; callers that
// log Values across a trust boundary should use the wrapper in pkg/dockey
// instead.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt32:
		return fmt.Sprintf("%d", int32(v.i))
	case KindInt64:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f32)
	case KindDouble:
		return fmt.Sprintf("%g", v.f64)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindTimestamp:
		return fmt.Sprintf("ts(%d)", v.ts)
	default:
		return "<invalid PrimitiveValue>"
	}
}

// EncodeInto appends the order-preserving encoding of v to buf and returns
// the grown buffer. Encoding a Value never fails.
func EncodeInto(buf []byte, v Value) []byte {
	switch v.kind {
	case KindNull:
		return append(buf, byte(Null))
	case KindBool:
		if v.b {
			return append(buf, byte(True))
		}
		return append(buf, byte(False))
	case KindInt32:
		buf = append(buf, byte(Int32))
		return appendInt32Payload(buf, int32(v.i))
	case KindInt64:
		buf = append(buf, byte(Int64))
		return appendInt64Payload(buf, v.i)
	case KindFloat:
		buf = append(buf, byte(Float))
		return appendFloat32Payload(buf, v.f32)
	case KindDouble:
		buf = append(buf, byte(Double))
		return appendFloat64Payload(buf, v.f64)
	case KindString:
		buf = append(buf, byte(String))
		return appendEscapedString(buf, v.s)
	case KindTimestamp:
		buf = append(buf, byte(Timestamp))
		return appendUint64BE(buf, v.ts)
	default:
		panic(errors.AssertionFailedf("encoding: unknown PrimitiveValue kind %d", v.kind))
	}
}

// appendInt64Payload appends the sign-flipped big-endian payload used for
// Int32 and Int64: flipping the sign bit maps the signed range onto an
// unsigned range in the same relative order, so unsigned byte compare
// equals signed numeric compare.
func appendInt64Payload(buf []byte, v int64) []byte {
	u := uint64(v) ^ (1 << 63)
	return appendUint64BE(buf, u)
}

func appendInt32Payload(buf []byte, v int32) []byte {
	u := uint32(v) ^ (1 << 31)
	return append(buf, byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

func appendUint64BE(buf []byte, u uint64) []byte {
	return append(buf,
		byte(u>>56), byte(u>>48), byte(u>>40), byte(u>>32),
		byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

// appendFloat64Payload encodes a double so that its IEEE-754 bit pattern,
// transformed as below, sorts in numeric order under unsigned byte compare:
// non-negative values get their sign bit flipped (so they sort above all
// negatives); negative values get every bit flipped (so larger-magnitude
// negatives, which have a larger raw bit pattern, sort lower).
func appendFloat64Payload(buf []byte, f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) == 0 {
		bits |= 1 << 63
	} else {
		bits = ^bits
	}
	return appendUint64BE(buf, bits)
}

func appendFloat32Payload(buf []byte, f float32) []byte {
	bits := math.Float32bits(f)
	if bits&(1<<31) == 0 {
		bits |= 1 << 31
	} else {
		bits = ^bits
	}
	return append(buf, byte(bits>>24), byte(bits>>16), byte(bits>>8), byte(bits))
}

// appendEscapedString appends the NUL-escaped, NUL-terminated encoding of s.
// Every 0x00 byte in s is escaped as 0x00 0x01; the string is terminated by
// 0x00 0x00. Because 0x01 never appears immediately after an unescaped 0x00
// except as part of this escape, the encoding is unambiguous and
// length-free, and it preserves codepoint order.
func appendEscapedString(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0x00 {
			buf = append(buf, 0x00, 0x01)
		} else {
			buf = append(buf, c)
		}
	}
	return append(buf, 0x00, 0x00)
}

// DecodeFrom decodes a single PrimitiveValue from the front of buf,
// returning the decoded value and the unconsumed remainder. It fails with a
// Corruption error on truncated input, an unknown type byte, an
// unterminated escaped string, or a numeric payload shorter than required.
func DecodeFrom(buf []byte) (Value, []byte, error) {
	if len(buf) == 0 {
		return Value{}, nil, docerr.Corruptf("encoding: empty input decoding PrimitiveValue")
	}
	t := Type(buf[0])
	rest := buf[1:]
	switch t {
	case Null:
		return NullValue(), rest, nil
	case True:
		return BoolValue(true), rest, nil
	case False:
		return BoolValue(false), rest, nil
	case Int32:
		u, rem, err := takeUint32BE(rest)
		if err != nil {
			return Value{}, nil, err
		}
		return Int32Value(int32(u ^ (1 << 31))), rem, nil
	case Int64:
		u, rem, err := takeUint64BE(rest)
		if err != nil {
			return Value{}, nil, err
		}
		return Int64Value(int64(u ^ (1 << 63))), rem, nil
	case Float:
		if len(rest) < 4 {
			return Value{}, nil, errCorruptf("truncated Float payload (have %d bytes, need 4)", len(rest))
		}
		bits := uint32(rest[0])<<24 | uint32(rest[1])<<16 | uint32(rest[2])<<8 | uint32(rest[3])
		if bits&(1<<31) != 0 {
			bits &^= 1 << 31
		} else {
			bits = ^bits
		}
		return FloatValue(math.Float32frombits(bits)), rest[4:], nil
	case Double:
		u, rem, err := takeUint64BE(rest)
		if err != nil {
			return Value{}, nil, err
		}
		if u&(1<<63) != 0 {
			u &^= 1 << 63
		} else {
			u = ^u
		}
		return DoubleValue(math.Float64frombits(u)), rem, nil
	case String:
		s, rem, err := takeEscapedString(rest)
		if err != nil {
			return Value{}, nil, err
		}
		return StringValue(s), rem, nil
	case Timestamp:
		u, rem, err := takeUint64BE(rest)
		if err != nil {
			return Value{}, nil, err
		}
		return TimestampValue(u), rem, nil
	default:
		return Value{}, nil, errCorruptf("unknown PrimitiveValue type byte 0x%02x", byte(t))
	}
}

func takeUint32BE(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, errCorruptf("truncated numeric payload (have %d bytes, need 4)", len(buf))
	}
	u := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	return u, buf[4:], nil
}

func takeUint64BE(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, errCorruptf("truncated numeric payload (have %d bytes, need 8)", len(buf))
	}
	u := uint64(buf[0])<<56 | uint64(buf[1])<<48 | uint64(buf[2])<<40 | uint64(buf[3])<<32 |
		uint64(buf[4])<<24 | uint64(buf[5])<<16 | uint64(buf[6])<<8 | uint64(buf[7])
	return u, buf[8:], nil
}

// takeEscapedString consumes bytes up to and including the 0x00 0x00
// terminator, unescaping 0x00 0x01 into a literal 0x00 along the way.
func takeEscapedString(buf []byte) (string, []byte, error) {
	var out []byte
	for i := 0; i < len(buf); i++ {
		if buf[i] != 0x00 {
			out = append(out, buf[i])
			continue
		}
		if i+1 >= len(buf) {
			return "", nil, errCorruptf("unterminated string: trailing NUL with no escape/terminator byte")
		}
		switch buf[i+1] {
		case 0x00:
			return string(out), buf[i+2:], nil
		case 0x01:
			out = append(out, 0x00)
			i++
		default:
			return "", nil, errCorruptf("invalid string escape sequence 0x00 0x%02x", buf[i+1])
		}
	}
	return "", nil, errCorruptf("unterminated string: no 0x00 0x00 terminator found")
}

// PeekType reports the type byte at the front of buf without consuming it.
// Used by the DocKey and SubDocKey decoders to spot a GroupEnd terminator or
// a trailing Timestamp before decoding the next value.
func PeekType(buf []byte) (Type, error) {
	if len(buf) == 0 {
		return 0, errCorruptf("empty input peeking PrimitiveValue type")
	}
	return Type(buf[0]), nil
}

// AdvancePastAllValueTypes returns a byte strictly greater than every type
// byte ever assigned to a PrimitiveValue (including Uint32Hash). Appending
// this byte to an encoded prefix produces the smallest key that sorts after
// every key extending that prefix.
func AdvancePastAllValueTypes() byte {
	return byte(maxValueType) + 1
}

func errCorruptf(format string, args ...interface{}) error {
	return docerr.Corruptf("encoding: "+format, args...)
}
