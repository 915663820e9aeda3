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

package isio

import (
	"errors"
	"fmt"
)

// Kind classifies a failed operation.
//
//go:generate go tool stringer -type=Kind -trimprefix=Kind
type Kind uint8

const (
	KindFailure Kind = iota + 1
	KindInvalidArgument
	KindOpenFailed
	KindAlreadyExists
	KindTimeout
)

// Sentinel errors, one per Kind. errors.Is(err, ErrOpenFailed) holds for
// every *Error of kind KindOpenFailed.
var (
	ErrFailure         = &Error{Kind: KindFailure}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrOpenFailed      = &Error{Kind: KindOpenFailed}
	ErrAlreadyExists   = &Error{Kind: KindAlreadyExists}
	ErrTimeout         = &Error{Kind: KindTimeout}
)

// Error describes a failed image stream operation.
type Error struct {
	Op   string // operation, e.g. "create"
	Name string // image name, if any
	Kind Kind
	Err  error // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Name != "" {
		msg += " (" + e.Name + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(op, name string, kind Kind, err error) *Error {
	return &Error{Op: op, Name: name, Kind: kind, Err: err}
}

func errorf(op, name string, kind Kind, format string, args ...any) *Error {
	return newError(op, name, kind, fmt.Errorf(format, args...))
}
