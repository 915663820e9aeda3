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

// CheckType returns 0 when t is a real numeric type and -1 otherwise.
// Complex types pass only when complexAllowed is set. Uninitialized and
// unrecognized codes never pass.
func CheckType(t Type, complexAllowed bool) int {
	if !t.Known() {
		return -1
	}
	if t.IsComplex() && !complexAllowed {
		return -1
	}
	return 0
}

// IsReal reports whether t is one of the real scalar types.
func IsReal(t Type) bool {
	return CheckType(t, false) == 0
}

// FloatType returns the smallest floating type that holds values of t
// without loss for arithmetic. Integers up to 32 bits map to Float, 64-bit
// integers to Double, and floating and complex types to themselves. The
// boolean is false for uninitialized or unrecognized codes.
func FloatType(t Type) (Type, bool) {
	e, ok := t.lookup()
	if !ok {
		return Uninitialized, false
	}
	return e.float, true
}
