package network

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/nullstream/mqtt5core/encoding"
	"github.com/nullstream/mqtt5core/framer"
	"github.com/nullstream/mqtt5core/pkg/logger"
)

// PipelineConfig configures a Pipeline's framer limits, channel depths, and
// read buffer size. A zero value plus DefaultPipelineConfig rather than
// functional options.
type PipelineConfig struct {
	MaxPacketSize       uint32
	ChannelCapacity     int
	FramerBufferInitial int
}

func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		MaxPacketSize:       framer.DefaultMaxPacketSize,
		ChannelCapacity:     10,
		FramerBufferInitial: 4096,
	}
}

// Pipeline runs the three cooperating tasks for one connection: T-read
// pulls bytes off the transport and feeds them through a Framer, T-decode
// turns complete frames into typed packets for upstream, and T-encode
// turns typed packets from upstream into bytes on the wire. The three are
// supervised by an errgroup so the first failure tears the whole
// connection down; one goroutine per task, one Pipeline per accepted
// connection.
type Pipeline struct {
	conn    *Connection
	cfg     *PipelineConfig
	metrics *PipelineMetrics
	log     *logger.SlogLogger

	framer *framer.Framer

	toUpstream   chan<- encoding.Packet
	fromUpstream <-chan encoding.Packet
}

// SetLogger attaches a logger for connection lifecycle and decode/encode
// error events. Optional; Pipeline logs nothing if it is never called.
func (p *Pipeline) SetLogger(l *logger.SlogLogger) {
	p.log = l
}

// NewPipeline wires conn to toUpstream (decoded inbound packets) and
// fromUpstream (packets to encode and send), binding fromUpstream's sender
// side onto conn so DisconnectManager and other callers can reach it via
// Connection.SendPacket. cfg and metrics default if nil.
func NewPipeline(conn *Connection, toUpstream chan<- encoding.Packet, fromUpstream chan encoding.Packet, cfg *PipelineConfig, metrics *PipelineMetrics) *Pipeline {
	if cfg == nil {
		cfg = DefaultPipelineConfig()
	}

	p := &Pipeline{
		conn:         conn,
		cfg:          cfg,
		metrics:      metrics,
		framer:       framer.New(cfg.MaxPacketSize),
		toUpstream:   toUpstream,
		fromUpstream: fromUpstream,
	}
	conn.BindOutbound(fromUpstream)
	return p
}

// Run drives the pipeline until the transport closes, an upstream channel
// closes, a decode/encode error occurs, or ctx is canceled. A return value
// of context.Canceled means one of those channels closed and the pipeline
// wound itself down cleanly; callers should treat it the same as nil.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.log != nil {
		p.log.Info("pipeline starting", "conn_id", p.conn.ID())
	}

	if p.metrics != nil {
		p.metrics.ActiveConnections.Inc()
		defer p.metrics.ActiveConnections.Dec()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	frames := make(chan []byte, p.cfg.ChannelCapacity)

	g.Go(func() error {
		defer cancel()
		return p.readLoop(gctx, frames)
	})
	g.Go(func() error {
		defer cancel()
		return p.decodeLoop(gctx, frames)
	})
	g.Go(func() error {
		defer cancel()
		return p.encodeLoop(gctx)
	})

	// A blocking Read on the transport does not observe context
	// cancellation on its own; close the connection once any task exits
	// so T-read unblocks instead of leaking a goroutine forever.
	go func() {
		<-gctx.Done()
		_ = p.conn.Close()
	}()

	err := g.Wait()
	_ = p.conn.Close()

	if p.log != nil {
		if err != nil && !errors.Is(err, context.Canceled) {
			p.log.Warn("pipeline ended", "conn_id", p.conn.ID(), "error", err)
		} else {
			p.log.Info("pipeline ended", "conn_id", p.conn.ID())
		}
	}

	return err
}

// readLoop is T-read: it owns the framer buffer exclusively.
func (p *Pipeline) readLoop(ctx context.Context, frames chan<- []byte) error {
	defer close(frames)

	bufSize := p.cfg.FramerBufferInitial
	if bufSize <= 0 {
		bufSize = 4096
	}
	buf := make([]byte, bufSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := p.conn.Read(buf)
		if n > 0 {
			if p.metrics != nil {
				p.metrics.BytesIn.Add(float64(n))
			}

			out, ferr := p.framer.Feed(buf[:n])
			for _, f := range out {
				select {
				case frames <- f:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if ferr != nil {
				if p.metrics != nil {
					p.metrics.DecodeErrors.Inc()
				}
				return ferr
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}

// decodeLoop is T-decode.
func (p *Pipeline) decodeLoop(ctx context.Context, frames <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}

			fh, n, err := encoding.ParseFixedHeaderFromBytes(frame)
			if err != nil {
				if p.metrics != nil {
					p.metrics.DecodeErrors.Inc()
				}
				if p.log != nil {
					p.log.Warn("fixed header decode failed", "conn_id", p.conn.ID(), "error", err)
				}
				return err
			}

			pkt, err := encoding.DecodePacket(fh, frame[n:])
			if err != nil {
				if p.metrics != nil {
					p.metrics.DecodeErrors.Inc()
				}
				if p.log != nil {
					p.log.Warn("packet decode failed", "conn_id", p.conn.ID(), "packet_type", fh.Type.String(), "error", err)
				}
				return err
			}
			if p.metrics != nil {
				p.metrics.PacketsDecoded.Inc()
			}

			select {
			case p.toUpstream <- pkt:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// encodeLoop is T-encode.
func (p *Pipeline) encodeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-p.fromUpstream:
			if !ok {
				return nil
			}

			data, err := encoding.EncodePacket(pkt)
			if err != nil {
				if p.metrics != nil {
					p.metrics.EncodeErrors.Inc()
				}
				if p.log != nil {
					p.log.Warn("packet encode failed", "conn_id", p.conn.ID(), "packet_type", pkt.Type().String(), "error", err)
				}
				return err
			}

			if _, err := p.conn.Write(data); err != nil {
				return err
			}
			if p.metrics != nil {
				p.metrics.PacketsEncoded.Inc()
				p.metrics.BytesOut.Add(float64(len(data)))
			}
		}
	}
}
