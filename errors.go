// errors.go - recoverable error kinds shared across snapshot loading and
// ROM loading. Other snapshot read failures, such as reading past the end of
// the data, are returned as the wrapped I/O error.

package main

import "errors"

var (
	errBadMagic       = errors.New("bad magic")
	errBadVersion     = errors.New("unsupported version")
	errLengthMismatch = errors.New("length mismatch")
	errEmptyROM       = errors.New("empty ROM data")
)
