package ipc

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"

	"github.com/haasonsaas/deskmcp/internal/deskerr"
)

// Channel is the publishing side of one named telemetry stream: it accepts
// any number of reader connections and broadcasts every Publish call to all
// of them as a newline-delimited JSON line. A reader that isn't keeping up
// is dropped rather than allowed to block the publisher.
type Channel struct {
	name     string
	listener net.Listener

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
}

// Open starts accepting connections on name, a bare channel name such as
// the value EventChannelName/LogChannelName returns. The underlying
// transport is a Unix-domain socket on every platform except Windows, which
// uses a named pipe.
func Open(name string) (*Channel, error) {
	listener, err := newListener(name)
	if err != nil {
		return nil, deskerr.Wrap(deskerr.KindPlatformFatal, err, "opening ipc channel %q failed", name)
	}
	c := &Channel{name: name, listener: listener, conns: make(map[net.Conn]struct{})}
	go c.acceptLoop()
	return c, nil
}

func (c *Channel) acceptLoop() {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			return
		}
		c.mu.Lock()
		if c.closing {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conns[conn] = struct{}{}
		c.mu.Unlock()
		go c.watchForClose(conn)
	}
}

// watchForClose removes a connection once its reader side goes away, since
// this channel is write-only from the publisher's perspective.
func (c *Channel) watchForClose(conn net.Conn) {
	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			c.mu.Lock()
			delete(c.conns, conn)
			c.mu.Unlock()
			conn.Close()
			return
		}
	}
}

// Publish writes record, marshalled to JSON, as one line to every currently
// connected reader. A connection that errors on write is dropped instead of
// surfacing the error to the caller, since one slow or gone reader must not
// stall the workflow producing these events.
func (c *Channel) Publish(record any) error {
	line, err := json.Marshal(record)
	if err != nil {
		return deskerr.Wrap(deskerr.KindInvalidArgument, err, "encoding ipc record failed")
	}
	line = append(line, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	for conn := range c.conns {
		if _, err := conn.Write(line); err != nil {
			delete(c.conns, conn)
			conn.Close()
		}
	}
	return nil
}

// Close stops accepting new connections and closes every connected reader.
// Already-written lines are left for each reader to drain from its own
// buffer; Close does not wait on that, since the reader's drain-before-close
// discipline is the reader's responsibility, not the publisher's.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.closing = true
	for conn := range c.conns {
		conn.Close()
		delete(c.conns, conn)
	}
	c.mu.Unlock()
	return c.listener.Close()
}

// Reader is the subscribing side of a Channel: it dials an already-open
// channel by name and yields one decoded line at a time.
type Reader struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// Dial connects to an already-open channel by name.
func Dial(name string) (*Reader, error) {
	conn, err := dial(name)
	if err != nil {
		return nil, deskerr.Wrap(deskerr.KindPlatformFatal, err, "dialing ipc channel %q failed", name)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Reader{conn: conn, scanner: scanner}, nil
}

// Next reads and returns the next line as raw JSON. Lines that are not
// complete JSON objects are dropped rather than returned, matching the
// "non-matching lines dropped" discipline spec §6 names; returns (nil, nil)
// at end of stream.
func (r *Reader) Next() (json.RawMessage, error) {
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var probe json.RawMessage
		if err := json.Unmarshal(line, &probe); err != nil {
			continue
		}
		out := make(json.RawMessage, len(line))
		copy(out, line)
		return out, nil
	}
	return nil, r.scanner.Err()
}

// Close drains any lines still buffered on the connection before closing
// it, so a reader shutting down does not silently lose records the
// publisher already sent.
func (r *Reader) Close() error {
	for {
		msg, err := r.Next()
		if err != nil || msg == nil {
			break
		}
	}
	return r.conn.Close()
}
