/*
 *
 * Copyright 2025 ImageStreamIO authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package datatype

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// DecodeFloat64 converts the raw bytes of one or more elements of type t
// into float64 values. Complex types are rejected; use DecodeComplex128.
func DecodeFloat64(t Type, raw []byte, dst []float64) ([]float64, error) {
	if !IsReal(t) {
		return dst, fmt.Errorf("decode %s: not a real type", t)
	}
	size := t.Size()
	if len(raw)%size != 0 {
		return dst, fmt.Errorf("decode %s: %d bytes is not a multiple of %d", t, len(raw), size)
	}
	ne := binary.NativeEndian
	for off := 0; off < len(raw); off += size {
		b := raw[off : off+size]
		var v float64
		switch t {
		case Uint8:
			v = float64(b[0])
		case Int8:
			v = float64(int8(b[0]))
		case Uint16:
			v = float64(ne.Uint16(b))
		case Int16:
			v = float64(int16(ne.Uint16(b)))
		case Uint32:
			v = float64(ne.Uint32(b))
		case Int32:
			v = float64(int32(ne.Uint32(b)))
		case Uint64:
			v = float64(ne.Uint64(b))
		case Int64:
			v = float64(int64(ne.Uint64(b)))
		case Half:
			v = float64(float16.Frombits(ne.Uint16(b)).Float32())
		case Float:
			v = float64(math.Float32frombits(ne.Uint32(b)))
		case Double:
			v = math.Float64frombits(ne.Uint64(b))
		}
		dst = append(dst, v)
	}
	return dst, nil
}

// EncodeFloat64 writes src into raw as elements of type t, converting
// each value to the element type. raw must hold exactly len(src) elements.
// Integer conversions truncate toward zero and saturate at the limits of
// the element type; NaN becomes 0.
func EncodeFloat64(t Type, raw []byte, src []float64) error {
	if !IsReal(t) {
		return fmt.Errorf("encode %s: not a real type", t)
	}
	size := t.Size()
	if len(raw) != len(src)*size {
		return fmt.Errorf("encode %s: buffer holds %d bytes, need %d", t, len(raw), len(src)*size)
	}
	ne := binary.NativeEndian
	for i, v := range src {
		b := raw[i*size : (i+1)*size]
		switch t {
		case Uint8:
			b[0] = uint8(toUint(v, math.MaxUint8))
		case Int8:
			b[0] = uint8(int8(toInt(v, math.MinInt8, math.MaxInt8)))
		case Uint16:
			ne.PutUint16(b, uint16(toUint(v, math.MaxUint16)))
		case Int16:
			ne.PutUint16(b, uint16(int16(toInt(v, math.MinInt16, math.MaxInt16))))
		case Uint32:
			ne.PutUint32(b, uint32(toUint(v, math.MaxUint32)))
		case Int32:
			ne.PutUint32(b, uint32(int32(toInt(v, math.MinInt32, math.MaxInt32))))
		case Uint64:
			ne.PutUint64(b, toUint(v, math.MaxUint64))
		case Int64:
			ne.PutUint64(b, uint64(toInt(v, math.MinInt64, math.MaxInt64)))
		case Half:
			ne.PutUint16(b, float16.Fromfloat32(float32(v)).Bits())
		case Float:
			ne.PutUint32(b, math.Float32bits(float32(v)))
		case Double:
			ne.PutUint64(b, math.Float64bits(v))
		}
	}
	return nil
}

// toInt truncates v toward zero and clamps it to [lo, hi].
func toInt(v float64, lo, hi int64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v <= float64(lo):
		return lo
	case v >= float64(hi):
		return hi
	}
	return int64(v)
}

// toUint truncates v toward zero and clamps it to [0, hi].
func toUint(v float64, hi uint64) uint64 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= float64(hi):
		return hi
	}
	return uint64(v)
}

// DecodeComplex128 converts the raw bytes of complex elements to
// complex128 values.
func DecodeComplex128(t Type, raw []byte, dst []complex128) ([]complex128, error) {
	if !t.IsComplex() {
		return dst, fmt.Errorf("decode %s: not a complex type", t)
	}
	size := t.Size()
	if len(raw)%size != 0 {
		return dst, fmt.Errorf("decode %s: %d bytes is not a multiple of %d", t, len(raw), size)
	}
	ne := binary.NativeEndian
	half := size / 2
	for off := 0; off < len(raw); off += size {
		re, im := raw[off:off+half], raw[off+half:off+size]
		if t == ComplexFloat {
			dst = append(dst, complex(
				float64(math.Float32frombits(ne.Uint32(re))),
				float64(math.Float32frombits(ne.Uint32(im)))))
		} else {
			dst = append(dst, complex(
				math.Float64frombits(ne.Uint64(re)),
				math.Float64frombits(ne.Uint64(im))))
		}
	}
	return dst, nil
}

// EncodeComplex128 writes src into raw as complex elements of type t.
func EncodeComplex128(t Type, raw []byte, src []complex128) error {
	if !t.IsComplex() {
		return fmt.Errorf("encode %s: not a complex type", t)
	}
	size := t.Size()
	if len(raw) != len(src)*size {
		return fmt.Errorf("encode %s: buffer holds %d bytes, need %d", t, len(raw), len(src)*size)
	}
	ne := binary.NativeEndian
	half := size / 2
	for i, v := range src {
		re, im := raw[i*size:i*size+half], raw[i*size+half:(i+1)*size]
		if t == ComplexFloat {
			ne.PutUint32(re, math.Float32bits(float32(real(v))))
			ne.PutUint32(im, math.Float32bits(float32(imag(v))))
		} else {
			ne.PutUint64(re, math.Float64bits(real(v)))
			ne.PutUint64(im, math.Float64bits(imag(v)))
		}
	}
	return nil
}
