package iobridge

import (
	"bufio"
	"io"
	"os"
)

// consoleBridge writes to stdout and reads from stdin, buffered the way
// interactive CLI tools in the pack typically wrap os.Stdout/os.Stdin.
type consoleBridge struct {
	w *bufio.Writer
	r *bufio.Reader
}

func newConsole() Bridge {
	return &consoleBridge{
		w: bufio.NewWriter(os.Stdout),
		r: bufio.NewReader(os.Stdin),
	}
}

func (c *consoleBridge) Write(p []byte) (int, error) { return c.w.Write(p) }
func (c *consoleBridge) Flush() error                 { return c.w.Flush() }

func (c *consoleBridge) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}

func (c *consoleBridge) Close() error { return c.w.Flush() }
