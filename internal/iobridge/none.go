package iobridge

// noneBridge is the sink backend: it discards writes and never yields
// data on read. Open itself returns an error when constructing a real
// backend fails; the interpreter's iobnew then binds None() in its place
// (spec §4.H).
type noneBridge struct{}

// None returns the sink Bridge.
func None() Bridge { return noneBridge{} }

func (noneBridge) Write(p []byte) (int, error) { return len(p), nil }
func (noneBridge) Flush() error                { return nil }
func (noneBridge) Read(p []byte) (int, error)  { return 0, nil }
func (noneBridge) Close() error                { return nil }
