//go:build windows

package ipc

import (
	"net"

	"github.com/Microsoft/go-winio"
)

func pipePath(name string) string {
	return `\\.\pipe\` + name
}

func newListener(name string) (net.Listener, error) {
	return winio.ListenPipe(pipePath(name), nil)
}

func dial(name string) (net.Conn, error) {
	return winio.DialPipe(pipePath(name), nil)
}
