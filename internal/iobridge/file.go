package iobridge

import (
	"bufio"
	"fmt"
	"os"
)

type fileBridge struct {
	f *os.File
	w *bufio.Writer
}

func newFile(path string, appendMode bool) (Bridge, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("iobridge: open file %s: %w", path, err)
	}
	return &fileBridge{f: f, w: bufio.NewWriter(f)}, nil
}

func (b *fileBridge) Write(p []byte) (int, error) { return b.w.Write(p) }
func (b *fileBridge) Flush() error                 { return b.w.Flush() }

func (b *fileBridge) Read(p []byte) (int, error) {
	if err := b.w.Flush(); err != nil {
		return 0, err
	}
	return b.f.Read(p)
}

func (b *fileBridge) Close() error {
	if err := b.w.Flush(); err != nil {
		b.f.Close()
		return err
	}
	return b.f.Close()
}
