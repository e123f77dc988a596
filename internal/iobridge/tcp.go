package iobridge

import (
	"fmt"
	"net"
	"time"
)

type tcpClientBridge struct {
	conn net.Conn
}

func newTCPClient(hostport string) (Bridge, error) {
	conn, err := net.DialTimeout("tcp", hostport, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("iobridge: dial %s: %w", hostport, err)
	}
	return &tcpClientBridge{conn: conn}, nil
}

func (b *tcpClientBridge) Write(p []byte) (int, error) { return b.conn.Write(p) }
func (b *tcpClientBridge) Flush() error                 { return nil }
func (b *tcpClientBridge) Read(p []byte) (int, error)  { return b.conn.Read(p) }
func (b *tcpClientBridge) Close() error                 { return b.conn.Close() }
