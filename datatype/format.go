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

import "sync/atomic"

// FormatCodec maps scalar types to the type and bit depth codes of an
// external scientific file format library. Implementations return -1 for
// types the format cannot represent.
type FormatCodec interface {
	DatatypeCode(t Type) int
	BitpixCode(t Type) int
}

var formatCodec atomic.Pointer[FormatCodec]

// SetFormatCodec installs c as the process-wide format codec. Passing nil
// removes it. Codecs normally install themselves from an init function
// selected by a build tag.
func SetFormatCodec(c FormatCodec) {
	if c == nil {
		formatCodec.Store(nil)
		return
	}
	formatCodec.Store(&c)
}

// Codec returns the installed format codec, if any.
func Codec() (FormatCodec, bool) {
	p := formatCodec.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

// formatEligible reports whether t can ever have an external format code.
func formatEligible(t Type) bool {
	return t.Known() && t != Half && !t.IsComplex()
}

// FITSDatatype returns the external format type code of t, or -1 when no
// codec is installed or t has no representation.
func FITSDatatype(t Type) int {
	c, ok := Codec()
	if !ok || !formatEligible(t) {
		return -1
	}
	return c.DatatypeCode(t)
}

// FITSBitpix returns the external format bit depth code of t, or -1 when
// no codec is installed or t has no representation.
func FITSBitpix(t Type) int {
	c, ok := Codec()
	if !ok || !formatEligible(t) {
		return -1
	}
	return c.BitpixCode(t)
}
