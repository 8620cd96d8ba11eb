// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package scanerr defines the small closed set of error
// kinds produced by the scan and flight packages.
package scanerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error produced by this engine.
type Kind int

const (
	// IO indicates a filesystem, path, or transport fault.
	IO Kind = iota
	// Decode indicates malformed columnar metadata or batch data.
	Decode
	// SchemaMismatch indicates files in a scan disagree on schema.
	SchemaMismatch
	// InvalidPath indicates a non-UTF-8 or missing path.
	InvalidPath
	// Config indicates invalid runtime configuration.
	Config
	// StatisticsUnavailable indicates the predicate engine could
	// not evaluate a predicate against a row group.
	StatisticsUnavailable
	// Internal indicates a contract violation that should not happen.
	Internal
	// Unimplemented indicates a flight method this service
	// intentionally does not support (do_put, do_action).
	Unimplemented
)

func (k Kind) String() string {
	switch k {
	case IO:
		return "IO"
	case Decode:
		return "Decode"
	case SchemaMismatch:
		return "SchemaMismatch"
	case InvalidPath:
		return "InvalidPath"
	case Config:
		return "Config"
	case StatisticsUnavailable:
		return "StatisticsUnavailable"
	case Internal:
		return "Internal"
	case Unimplemented:
		return "Unimplemented"
	default:
		return "Unknown"
	}
}

// Error is a wrapped error tagged with a Kind and the
// operation during which it occurred.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf constructs an *Error of the given kind with a formatted message.
func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Internalf is shorthand for Newf(Internal, op, format, args...).
func Internalf(op, format string, args ...any) *Error {
	return Newf(Internal, op, format, args...)
}
