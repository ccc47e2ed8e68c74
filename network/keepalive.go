package network

import (
	"context"
	"sync"
	"time"

	"github.com/nullstream/mqtt5core/encoding"
)

// KeepAliveConfig configures how a KeepAlive paces PINGREQ packets and
// decides when silence from the peer counts as a timeout.
type KeepAliveConfig struct {
	Interval   time.Duration
	Timeout    time.Duration
	MaxRetries int

	// PingHandler sends the PINGREQ; defaults to writing one through the
	// connection's bound pipeline. Overridable for tests.
	PingHandler func(*Connection) error

	// OnTimeout is invoked once MaxRetries consecutive PINGREQs have gone
	// unanswered, or when sending a PINGREQ fails. Defaults to a graceful DISCONNECT with
	// ReasonKeepAliveTimeout through dm, falling back to a bare Close if dm
	// is nil.
	OnTimeout func(*Connection)
}

// DefaultKeepAliveConfig returns generic defaults; NewKeepAliveConfig
// derives Interval/Timeout from a CONNECT packet's KeepAlive field instead.
func DefaultKeepAliveConfig() *KeepAliveConfig {
	return &KeepAliveConfig{
		Interval:   30 * time.Second,
		Timeout:    10 * time.Second,
		MaxRetries: 3,
	}
}

// NewKeepAliveConfig derives Interval/Timeout from a CONNECT packet's
// KeepAlive seconds per MQTT 5.0 section 3.1.2.10: the server treats
// 1.5x the client's keep-alive value, elapsed with nothing received, as
// a protocol violation. A zero keepAliveSeconds disables the grace
// multiplier in favor of DefaultKeepAliveConfig's fixed timeout, since
// KeepAlive=0 means the client asked for keep-alive checking to be
// turned off.
func NewKeepAliveConfig(keepAliveSeconds uint16, dm *DisconnectManager) *KeepAliveConfig {
	if keepAliveSeconds == 0 {
		cfg := DefaultKeepAliveConfig()
		cfg.OnTimeout = disconnectOnKeepAliveTimeout(dm)
		return cfg
	}

	interval := time.Duration(keepAliveSeconds) * time.Second
	return &KeepAliveConfig{
		Interval:   interval,
		Timeout:    interval / 2, // combined with Interval this yields the 1.5x grace window
		MaxRetries: 1,
		OnTimeout:  disconnectOnKeepAliveTimeout(dm),
	}
}

func disconnectOnKeepAliveTimeout(dm *DisconnectManager) func(*Connection) {
	return func(conn *Connection) {
		if dm == nil {
			conn.Close()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dm.GracefulDisconnect(ctx, conn, encoding.ReasonKeepAliveTimeout)
	}
}

// KeepAlive paces PINGREQ packets for one connection and watches for
// PINGRESP, via OnPong, to reset the missed-ping counter.
type KeepAlive struct {
	config *KeepAliveConfig
	conn   *Connection

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	lastPing time.Time
	lastPong time.Time
	mu       sync.RWMutex

	missedPings int
}

func NewKeepAlive(conn *Connection, config *KeepAliveConfig) *KeepAlive {
	if config == nil {
		config = DefaultKeepAliveConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	ka := &KeepAlive{
		config:   config,
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
		lastPong: time.Now(),
	}

	return ka
}

func (ka *KeepAlive) Start() {
	ka.wg.Add(1)
	go ka.keepAliveLoop()
}

func (ka *KeepAlive) keepAliveLoop() {
	defer ka.wg.Done()

	ticker := time.NewTicker(ka.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := ka.sendPing(); err != nil {
				if ka.config.OnTimeout != nil {
					ka.config.OnTimeout(ka.conn)
				} else {
					ka.conn.Close()
				}
				return
			}
		case <-ka.ctx.Done():
			return
		case <-ka.conn.CloseChan():
			return
		}
	}
}

func (ka *KeepAlive) sendPing() error {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	if time.Since(ka.lastPong) > ka.config.Interval+ka.config.Timeout {
		ka.missedPings++
		if ka.missedPings >= ka.config.MaxRetries {
			return ErrKeepAliveTimeout
		}
	}

	ka.lastPing = time.Now()

	if ka.config.PingHandler != nil {
		return ka.config.PingHandler(ka.conn)
	}

	pingreq := &encoding.PingreqPacket{FixedHeader: encoding.FixedHeader{Type: encoding.PINGREQ}}
	return ka.conn.SendPacket(context.Background(), pingreq)
}

// OnPong records receipt of a PINGRESP (or any other inbound packet, since
// MQTT treats any control packet as proof of liveness), resetting the
// missed-ping counter.
func (ka *KeepAlive) OnPong() {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	ka.lastPong = time.Now()
	ka.missedPings = 0
}

func (ka *KeepAlive) Stop() {
	ka.cancel()
	ka.wg.Wait()
}

func (ka *KeepAlive) LastPing() time.Time {
	ka.mu.RLock()
	defer ka.mu.RUnlock()
	return ka.lastPing
}

func (ka *KeepAlive) LastPong() time.Time {
	ka.mu.RLock()
	defer ka.mu.RUnlock()
	return ka.lastPong
}

func (ka *KeepAlive) MissedPings() int {
	ka.mu.RLock()
	defer ka.mu.RUnlock()
	return ka.missedPings
}

// KeepAliveManager tracks one KeepAlive per connection ID.
type KeepAliveManager struct {
	mu         sync.RWMutex
	keepAlives map[string]*KeepAlive
	config     *KeepAliveConfig
	dm         *DisconnectManager
}

// NewKeepAliveManager builds a manager that derives each connection's
// KeepAlive from its own CONNECT keep-alive value via AddFromConnect; config
// is used by Add, the fallback when a connection's keep-alive seconds are
// unknown.
func NewKeepAliveManager(config *KeepAliveConfig) *KeepAliveManager {
	if config == nil {
		config = DefaultKeepAliveConfig()
	}

	return &KeepAliveManager{
		keepAlives: make(map[string]*KeepAlive),
		config:     config,
	}
}

// BindDisconnectManager wires a DisconnectManager so that future
// AddFromConnect calls send a graceful DISCONNECT on keep-alive timeout
// instead of closing the connection outright.
func (kam *KeepAliveManager) BindDisconnectManager(dm *DisconnectManager) {
	kam.mu.Lock()
	kam.dm = dm
	kam.mu.Unlock()
}

// Add starts a KeepAlive using the manager's fallback config.
func (kam *KeepAliveManager) Add(conn *Connection) *KeepAlive {
	kam.mu.RLock()
	cfg := kam.config
	kam.mu.RUnlock()

	ka := NewKeepAlive(conn, cfg)

	kam.mu.Lock()
	kam.keepAlives[conn.ID()] = ka
	kam.mu.Unlock()

	ka.Start()
	return ka
}

// AddFromConnect starts a KeepAlive paced by the keep-alive seconds the
// client asked for in its CONNECT packet.
func (kam *KeepAliveManager) AddFromConnect(conn *Connection, keepAliveSeconds uint16) *KeepAlive {
	kam.mu.RLock()
	dm := kam.dm
	kam.mu.RUnlock()

	ka := NewKeepAlive(conn, NewKeepAliveConfig(keepAliveSeconds, dm))

	kam.mu.Lock()
	kam.keepAlives[conn.ID()] = ka
	kam.mu.Unlock()

	ka.Start()
	return ka
}

func (kam *KeepAliveManager) Remove(connID string) {
	kam.mu.Lock()
	defer kam.mu.Unlock()

	if ka, ok := kam.keepAlives[connID]; ok {
		ka.Stop()
		delete(kam.keepAlives, connID)
	}
}

func (kam *KeepAliveManager) Get(connID string) (*KeepAlive, bool) {
	kam.mu.RLock()
	defer kam.mu.RUnlock()

	ka, ok := kam.keepAlives[connID]
	return ka, ok
}

func (kam *KeepAliveManager) Close() {
	kam.mu.Lock()
	defer kam.mu.Unlock()

	for _, ka := range kam.keepAlives {
		ka.Stop()
	}

	kam.keepAlives = make(map[string]*KeepAlive)
}
