package network

import (
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nullstream/mqtt5core/encoding"
)

type Event struct {
	Fd    int
	Conn  *Connection
	Error error
}

type EventType int

const (
	EventRead EventType = 1 << iota
	EventWrite
	EventError
	EventHup
)

type Poller interface {
	Add(conn *Connection, events EventType) error
	Modify(conn *Connection, events EventType) error
	Remove(conn *Connection) error
	Wait(timeout time.Duration) ([]*Event, error)
	Close() error
}

type PollerConfig struct {
	MaxEvents int
	Timeout   time.Duration
}

func DefaultPollerConfig() *PollerConfig {
	return &PollerConfig{
		MaxEvents: 1024,
		Timeout:   100 * time.Millisecond,
	}
}

type pollerState struct {
	mu      sync.RWMutex
	connMap map[int]*Connection
	closed  atomic.Bool
}

func newPollerState() *pollerState {
	return &pollerState{
		connMap: make(map[int]*Connection),
	}
}

func (ps *pollerState) add(fd int, conn *Connection) {
	ps.mu.Lock()
	ps.connMap[fd] = conn
	ps.mu.Unlock()
}

func (ps *pollerState) get(fd int) (*Connection, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	conn, ok := ps.connMap[fd]
	return conn, ok
}

func (ps *pollerState) remove(fd int) {
	ps.mu.Lock()
	delete(ps.connMap, fd)
	ps.mu.Unlock()
}

func (ps *pollerState) isClosed() bool {
	return ps.closed.Load()
}

func (ps *pollerState) close() {
	ps.closed.Store(true)
}

// MonitorHangups runs poller.Wait in a loop until stop is closed, treating
// any event carrying a socket error as an abnormal disconnection: a TCP
// reset or half-close the peer never announced with a DISCONNECT. Each
// such event is reported to dm with ReasonUnspecifiedError, the closest
// MQTT 5.0 analogue to "the network dropped the connection without
// telling us why", so Will delivery and session teardown still run as if
// a DISCONNECT had been read. Intended for transports that plug a Poller
// in instead of the blocking per-connection Pipeline read loop.
func MonitorHangups(poller Poller, dm *DisconnectManager, timeout time.Duration, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		events, err := poller.Wait(timeout)
		if err != nil {
			continue
		}

		for _, ev := range events {
			if ev.Conn == nil || ev.Error == nil {
				continue
			}

			pkt := &encoding.DisconnectPacket{
				FixedHeader: encoding.FixedHeader{Type: encoding.DISCONNECT},
				ReasonCode:  encoding.ReasonUnspecifiedError,
			}
			_ = dm.HandleDisconnect(ev.Conn, pkt)
			_ = poller.Remove(ev.Conn)
		}
	}
}

func getConnFd(conn *Connection) (int, error) {
	type syscallConn interface {
		SyscallConn() (syscall.RawConn, error)
	}

	if sc, ok := conn.conn.(syscallConn); ok {
		rawConn, err := sc.SyscallConn()
		if err != nil {
			return -1, err
		}

		var fd int
		err = rawConn.Control(func(fdPtr uintptr) {
			fd = int(fdPtr)
		})
		if err != nil {
			return -1, err
		}

		return fd, nil
	}

	return -1, syscall.ENOTSUP
}
