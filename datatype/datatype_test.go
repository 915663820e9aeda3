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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryTable(t *testing.T) {
	tests := []struct {
		typ       Type
		size      int
		name      string
		name7     string
		nameShort string
		check     int
		checkCplx int
		float     Type
		floatOK   bool
	}{
		{Uint8, 1, "UINT8", "UINT8  ", " UI8", 0, 0, Float, true},
		{Int8, 1, "INT8", "INT8   ", "  I8", 0, 0, Float, true},
		{Uint16, 2, "UINT16", "UINT16 ", "UI16", 0, 0, Float, true},
		{Int16, 2, "INT16", "INT16  ", " I16", 0, 0, Float, true},
		{Uint32, 4, "UINT32", "UINT32 ", "UI32", 0, 0, Float, true},
		{Int32, 4, "INT32", "INT32  ", " I32", 0, 0, Float, true},
		{Uint64, 8, "UINT64", "UINT64 ", "UI64", 0, 0, Double, true},
		{Int64, 8, "INT64", "INT64  ", " I64", 0, 0, Double, true},
		{Half, 2, "FLT16", "FLT16  ", " F16", 0, 0, Half, true},
		{Float, 4, "FLT32", "FLOAT  ", " FLT", 0, 0, Float, true},
		{Double, 8, "FLT64", "DOUBLE ", " DBL", 0, 0, Double, true},
		{ComplexFloat, 8, "CPLX32", "CFLOAT ", "CFLT", -1, 0, ComplexFloat, true},
		{ComplexDouble, 16, "CPLX64", "CDOUBLE", "CDBL", -1, 0, ComplexDouble, true},
		{Uninitialized, -1, "unknown", "unknown", " ???", -1, -1, Uninitialized, false},
		{Type(14), -1, "unknown", "unknown", " ???", -1, -1, Uninitialized, false},
		{Type(255), -1, "unknown", "unknown", " ???", -1, -1, Uninitialized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name7, func(t *testing.T) {
			assert.Equal(t, tt.size, tt.typ.Size())
			assert.Equal(t, tt.name, tt.typ.Name())
			assert.Equal(t, tt.name7, tt.typ.Name7())
			assert.Len(t, tt.typ.Name7(), 7)
			assert.Equal(t, tt.nameShort, tt.typ.NameShort())
			assert.Len(t, tt.typ.NameShort(), 4)
			assert.Equal(t, tt.check, CheckType(tt.typ, false))
			assert.Equal(t, tt.checkCplx, CheckType(tt.typ, true))
			assert.Equal(t, tt.check == 0, IsReal(tt.typ))

			ft, ok := FloatType(tt.typ)
			assert.Equal(t, tt.floatOK, ok)
			assert.Equal(t, tt.float, ft)
		})
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "FLT32", Float.String())
	assert.Equal(t, "unknown", Type(99).String())
	assert.True(t, Half.Known())
	assert.False(t, Uninitialized.Known())
}

func TestParseType(t *testing.T) {
	tests := map[string]Type{
		"FLT32":   Float,
		"float":   Float,
		" flt ":   Float,
		"UINT16":  Uint16,
		"ui16":    Uint16,
		"CDOUBLE": ComplexDouble,
		"f16":     Half,
	}
	for in, want := range tests {
		got, ok := ParseType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "unknown", "???", "int128"} {
		_, ok := ParseType(in)
		assert.False(t, ok, in)
	}
}
