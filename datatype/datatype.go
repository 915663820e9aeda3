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

// Package datatype is the registry of scalar element types an image
// stream can carry. Every query is a total function: unrecognized codes
// yield -1 or a placeholder name instead of an error, so the registry is
// safe to call from a real-time loop.
package datatype

import "strings"

// Type is the one-byte scalar type code stored in an image descriptor.
type Type uint8

// Scalar type codes. The values are part of the shared memory layout.
const (
	Uninitialized Type = iota
	Uint8
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Float
	Double
	ComplexFloat
	ComplexDouble
	Half
)

type entry struct {
	size      int
	name      string
	name7     string
	nameShort string
	float     Type
}

var table = [...]entry{
	Uint8:         {1, "UINT8", "UINT8  ", " UI8", Float},
	Int8:          {1, "INT8", "INT8   ", "  I8", Float},
	Uint16:        {2, "UINT16", "UINT16 ", "UI16", Float},
	Int16:         {2, "INT16", "INT16  ", " I16", Float},
	Uint32:        {4, "UINT32", "UINT32 ", "UI32", Float},
	Int32:         {4, "INT32", "INT32  ", " I32", Float},
	Uint64:        {8, "UINT64", "UINT64 ", "UI64", Double},
	Int64:         {8, "INT64", "INT64  ", " I64", Double},
	Float:         {4, "FLT32", "FLOAT  ", " FLT", Float},
	Double:        {8, "FLT64", "DOUBLE ", " DBL", Double},
	ComplexFloat:  {8, "CPLX32", "CFLOAT ", "CFLT", ComplexFloat},
	ComplexDouble: {16, "CPLX64", "CDOUBLE", "CDBL", ComplexDouble},
	Half:          {2, "FLT16", "FLT16  ", " F16", Half},
}

// Placeholders returned for uninitialized or unrecognized codes.
const (
	UnknownName  = "unknown"
	UnknownShort = " ???"
)

func (t Type) lookup() (entry, bool) {
	if t == Uninitialized || int(t) >= len(table) {
		return entry{}, false
	}
	return table[t], true
}

// Known reports whether t is one of the supported scalar codes.
func (t Type) Known() bool {
	_, ok := t.lookup()
	return ok
}

// Size returns the element width in bytes, or -1.
func (t Type) Size() int {
	if e, ok := t.lookup(); ok {
		return e.size
	}
	return -1
}

// Name returns the display name, e.g. "FLT32".
func (t Type) Name() string {
	if e, ok := t.lookup(); ok {
		return e.name
	}
	return UnknownName
}

// Name7 returns the name padded to seven characters, e.g. "FLOAT  ".
func (t Type) Name7() string {
	if e, ok := t.lookup(); ok {
		return e.name7
	}
	return UnknownName
}

// NameShort returns the four character name, e.g. " FLT".
func (t Type) NameShort() string {
	if e, ok := t.lookup(); ok {
		return e.nameShort
	}
	return UnknownShort
}

func (t Type) String() string { return t.Name() }

// IsComplex reports whether t is a complex type.
func (t Type) IsComplex() bool {
	return t == ComplexFloat || t == ComplexDouble
}

// ParseType returns the type whose Name, Name7 or NameShort matches s,
// ignoring case and surrounding blanks.
func ParseType(s string) (Type, bool) {
	s = strings.TrimSpace(s)
	for i := range table {
		t := Type(i)
		if !t.Known() {
			continue
		}
		for _, n := range []string{t.Name(), t.Name7(), t.NameShort()} {
			if strings.EqualFold(s, strings.TrimSpace(n)) {
				return t, true
			}
		}
	}
	return Uninitialized, false
}
