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

// Package fitsio maps image stream element types to CFITSIO type and
// BITPIX codes. Importing it installs the mapping as the datatype
// package's format codec.
package fitsio

import "github.com/magao-x/ImageStreamIO/datatype"

// CFITSIO datatype codes (fitsio.h).
const (
	TBYTE   = 11
	TSBYTE  = 12
	TUSHORT = 20
	TSHORT  = 21
	TUINT   = 30
	TINT    = 31
	TULONG  = 40
	TLONG   = 41
	TFLOAT  = 42
	TDOUBLE = 82
)

// CFITSIO BITPIX codes (fitsio.h).
const (
	BYTE_IMG      = 8
	SBYTE_IMG     = 10
	SHORT_IMG     = 16
	USHORT_IMG    = 20
	LONG_IMG      = 32
	ULONG_IMG     = 40
	LONGLONG_IMG  = 64
	ULONGLONG_IMG = 80
	FLOAT_IMG     = -32
	DOUBLE_IMG    = -64
)

type codes struct {
	datatype int
	bitpix   int
}

var mapping = map[datatype.Type]codes{
	datatype.Uint8:  {TBYTE, BYTE_IMG},
	datatype.Int8:   {TSBYTE, SBYTE_IMG},
	datatype.Uint16: {TUSHORT, USHORT_IMG},
	datatype.Int16:  {TSHORT, SHORT_IMG},
	datatype.Uint32: {TUINT, ULONG_IMG},
	datatype.Int32:  {TINT, LONG_IMG},
	datatype.Uint64: {TULONG, ULONGLONG_IMG},
	datatype.Int64:  {TLONG, LONGLONG_IMG},
	datatype.Float:  {TFLOAT, FLOAT_IMG},
	datatype.Double: {TDOUBLE, DOUBLE_IMG},
}

// Codec implements datatype.FormatCodec for CFITSIO.
type Codec struct{}

// DatatypeCode returns the CFITSIO datatype code for t, or -1.
func (Codec) DatatypeCode(t datatype.Type) int {
	if c, ok := mapping[t]; ok {
		return c.datatype
	}
	return -1
}

// BitpixCode returns the CFITSIO BITPIX value for t, or -1.
func (Codec) BitpixCode(t datatype.Type) int {
	if c, ok := mapping[t]; ok {
		return c.bitpix
	}
	return -1
}

func init() {
	datatype.SetFormatCodec(Codec{})
}
