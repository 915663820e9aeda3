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
	"github.com/stretchr/testify/require"
)

// fixedCodec derives both codes from the type code.
type fixedCodec struct{}

func (fixedCodec) DatatypeCode(t Type) int { return int(t) + 100 }
func (fixedCodec) BitpixCode(t Type) int   { return int(t) * 8 }

func withCodec(t *testing.T, c FormatCodec) {
	t.Helper()
	prev, had := Codec()
	SetFormatCodec(c)
	t.Cleanup(func() {
		if had {
			SetFormatCodec(prev)
		} else {
			SetFormatCodec(nil)
		}
	})
}

func allCodes() []Type {
	codes := make([]Type, 0, 16)
	for c := 0; c <= 15; c++ {
		codes = append(codes, Type(c))
	}
	return append(codes, Type(255))
}

func TestFormatCodesWithoutCodec(t *testing.T) {
	withCodec(t, nil)

	for _, typ := range allCodes() {
		assert.Equal(t, -1, FITSDatatype(typ), "datatype %d", typ)
		assert.Equal(t, -1, FITSBitpix(typ), "bitpix %d", typ)
	}
}

func TestFormatCodesWithCodec(t *testing.T) {
	withCodec(t, fixedCodec{})

	_, ok := Codec()
	require.True(t, ok)

	for _, typ := range allCodes() {
		switch typ {
		case Uint8, Int8, Uint16, Int16, Uint32, Int32, Uint64, Int64, Float, Double:
			assert.Equal(t, int(typ)+100, FITSDatatype(typ))
			assert.Equal(t, int(typ)*8, FITSBitpix(typ))
		default:
			assert.Equal(t, -1, FITSDatatype(typ), "datatype %s", typ.Name())
			assert.Equal(t, -1, FITSBitpix(typ), "bitpix %s", typ.Name())
		}
	}
}
