// Package iobridge implements FuzzerK's I/O bridge facade (spec §4.H):
// a minimal uniform surface over stdout, file and TCP back-ends.
//
// Grounded on the teacher's small-interface-plus-concrete-backends
// shape (go/vm/*: a VirtualMachine interface with one struct per
// backend, registered and constructed by address/name), retargeted
// from EVM execution backends to byte-stream transports.
package iobridge

import (
	"fmt"
	"strconv"
	"strings"
)

// Bridge is the uniform surface every back-end implements (spec §4.H).
type Bridge interface {
	Write(p []byte) (int, error)
	Flush() error
	Read(p []byte) (int, error)
	Close() error
}

// Open constructs a Bridge for addr, dispatching on its scheme (spec
// §6): "none", "console", "file://PATH" (with append=true|false), or
// "tcp://HOST:PORT". Open is fallible; on failure the caller should log
// the error and fall back to None() (spec §4.H: "new is fallible and
// returns a None-equivalent plus a logged error on failure").
func Open(addr string, opts map[string]string) (Bridge, error) {
	switch {
	case addr == "" || addr == "none":
		return None(), nil
	case addr == "console":
		return newConsole(), nil
	case strings.HasPrefix(addr, "file://"):
		path := strings.TrimPrefix(addr, "file://")
		append_ := false
		if v, ok := opts["append"]; ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("iobridge: invalid append option %q: %w", v, err)
			}
			append_ = b
		}
		return newFile(path, append_)
	case strings.HasPrefix(addr, "tcp://"):
		hostport := strings.TrimPrefix(addr, "tcp://")
		return newTCPClient(hostport)
	default:
		return nil, fmt.Errorf("iobridge: unrecognized address scheme %q", addr)
	}
}
