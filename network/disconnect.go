package network

import (
	"context"
	"sync"
	"time"

	"github.com/nullstream/mqtt5core/encoding"
)

// DisconnectHandler observes a DISCONNECT before or after it reaches the
// wire; used for session teardown, logging, or metrics hooks.
type DisconnectHandler func(*Connection, *encoding.DisconnectPacket) error

// DisconnectManager fans a DISCONNECT out to registered handlers and,
// where the connection has a pipeline bound, enqueues the packet on its
// outbound channel so T-encode puts it on the wire.
type DisconnectManager struct {
	mu              sync.RWMutex
	handlers        []DisconnectHandler
	gracefulTimeout time.Duration
}

func NewDisconnectManager(gracefulTimeout time.Duration) *DisconnectManager {
	if gracefulTimeout == 0 {
		gracefulTimeout = 5 * time.Second
	}

	return &DisconnectManager{
		handlers:        make([]DisconnectHandler, 0),
		gracefulTimeout: gracefulTimeout,
	}
}

func (dm *DisconnectManager) OnDisconnect(handler DisconnectHandler) {
	dm.mu.Lock()
	dm.handlers = append(dm.handlers, handler)
	dm.mu.Unlock()
}

func (dm *DisconnectManager) HandleDisconnect(conn *Connection, packet *encoding.DisconnectPacket) error {
	dm.mu.RLock()
	handlers := make([]DisconnectHandler, len(dm.handlers))
	copy(handlers, dm.handlers)
	dm.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(conn, packet); err != nil {
			return err
		}
	}

	return nil
}

// GracefulDisconnect notifies handlers, hands the DISCONNECT to the
// connection's pipeline for encoding, then closes the connection. It times
// out if handlers (session teardown, persistence flush, etc.) take too long.
func (dm *DisconnectManager) GracefulDisconnect(ctx context.Context, conn *Connection, reason encoding.ReasonCode) error {
	packet := &encoding.DisconnectPacket{
		FixedHeader: encoding.FixedHeader{Type: encoding.DISCONNECT},
		ReasonCode:  reason,
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, dm.gracefulTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if err := dm.HandleDisconnect(conn, packet); err != nil {
			done <- err
			return
		}
		sendErr := conn.SendPacket(timeoutCtx, packet)
		closeErr := conn.Close()
		if sendErr != nil {
			done <- sendErr
			return
		}
		done <- closeErr
	}()

	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		_ = conn.Close()
		return ErrGracefulShutdownTimeout
	}
}

// SendDisconnect runs handlers for packet (defaulting to a normal
// disconnection if packet is nil) and best-effort enqueues it for encoding;
// unlike GracefulDisconnect it does not close the connection.
func (dm *DisconnectManager) SendDisconnect(conn *Connection, packet *encoding.DisconnectPacket) error {
	if packet == nil {
		packet = &encoding.DisconnectPacket{
			FixedHeader: encoding.FixedHeader{Type: encoding.DISCONNECT},
			ReasonCode:  encoding.ReasonNormalDisconnection,
		}
	}

	if err := dm.HandleDisconnect(conn, packet); err != nil {
		return err
	}

	return conn.SendPacket(context.Background(), packet)
}

type GracefulShutdown struct {
	pool    *Pool
	dm      *DisconnectManager
	timeout time.Duration

	mu       sync.Mutex
	shutdown bool
}

func NewGracefulShutdown(pool *Pool, dm *DisconnectManager, timeout time.Duration) *GracefulShutdown {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &GracefulShutdown{
		pool:    pool,
		dm:      dm,
		timeout: timeout,
	}
}

func (gs *GracefulShutdown) Shutdown(ctx context.Context) error {
	gs.mu.Lock()
	if gs.shutdown {
		gs.mu.Unlock()
		return nil
	}
	gs.shutdown = true
	gs.mu.Unlock()

	timeoutCtx, cancel := context.WithTimeout(ctx, gs.timeout)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	gs.pool.ForEach(func(conn *Connection) bool {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()

			if err := gs.dm.GracefulDisconnect(timeoutCtx, c, encoding.ReasonServerShuttingDown); err != nil {
				select {
				case errCh <- err:
				default:
				}
			}
		}(conn)

		return true
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case err := <-errCh:
		return err
	case <-timeoutCtx.Done():
		return ErrGracefulShutdownTimeout
	}
}

func (gs *GracefulShutdown) IsShutdown() bool {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.shutdown
}
