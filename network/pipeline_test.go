package network

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullstream/mqtt5core/builder"
	"github.com/nullstream/mqtt5core/encoding"
)

func newTestPipeline(t *testing.T, conn *Connection, cfg *PipelineConfig) (*Pipeline, chan encoding.Packet, chan encoding.Packet) {
	t.Helper()
	toUpstream := make(chan encoding.Packet, 4)
	fromUpstream := make(chan encoding.Packet, 4)
	metrics := NewPipelineMetrics(prometheus.NewRegistry())
	return NewPipeline(conn, toUpstream, fromUpstream, cfg, metrics), toUpstream, fromUpstream
}

// TestPipeline_RoundTripsConnectAndConnack is a net-integration smoke test:
// a built packet crosses an in-memory net.Pipe connection, and the pipeline on the other
// side decodes it back to an equal value, then the reverse direction
// carries a reply out.
func TestPipeline_RoundTripsConnectAndConnack(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	conn := NewConnection(server, "pipeline-1", nil)
	p, toUpstream, fromUpstream := newTestPipeline(t, conn, nil)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	connectPkt, err := builder.NewConnect().ClientID("client-1").KeepAlive(60).Build()
	require.NoError(t, err)

	var connectBuf bytes.Buffer
	require.NoError(t, connectPkt.Encode(&connectBuf))

	writeDone := make(chan error, 1)
	go func() { _, werr := client.Write(connectBuf.Bytes()); writeDone <- werr }()
	require.NoError(t, <-writeDone)

	select {
	case pkt := <-toUpstream:
		got, ok := pkt.(*encoding.ConnectPacket)
		require.True(t, ok)
		assert.Equal(t, "client-1", got.ClientID)
		assert.Equal(t, uint16(60), got.KeepAlive)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decoded CONNECT")
	}

	connackPkt, err := builder.NewConnack(encoding.ReasonSuccess).SessionPresent(false).Build()
	require.NoError(t, err)

	var connackBuf bytes.Buffer
	require.NoError(t, connackPkt.Encode(&connackBuf))

	fromUpstream <- connackPkt

	readBuf := make([]byte, connackBuf.Len())
	readDone := make(chan error, 1)
	go func() { _, rerr := io.ReadFull(client, readBuf); readDone <- rerr }()

	select {
	case err := <-readDone:
		require.NoError(t, err)
		assert.Equal(t, connackBuf.Bytes(), readBuf)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for encoded CONNACK")
	}

	cancel()
	select {
	case err := <-runErr:
		assert.True(t, err == nil || errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
}

// TestPipeline_ClosingFromUpstreamEndsPipeline exercises the "closing an
// upstream channel terminates the pipeline" rule for the encode side.
func TestPipeline_ClosingFromUpstreamEndsPipeline(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := NewConnection(server, "pipeline-2", nil)
	p, _, fromUpstream := newTestPipeline(t, conn, nil)

	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(context.Background()) }()

	close(fromUpstream)

	select {
	case err := <-runErr:
		assert.True(t, err == nil || errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after fromUpstream closed")
	}
	assert.Equal(t, StateClosed, conn.State())
}

// TestPipeline_OversizedPacketTerminatesConnection confirms a framer
// rejection surfaces as a Run error rather than being silently dropped.
func TestPipeline_OversizedPacketTerminatesConnection(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	conn := NewConnection(server, "pipeline-3", nil)
	cfg := &PipelineConfig{MaxPacketSize: 4, ChannelCapacity: 10, FramerBufferInitial: 4096}
	p, _, _ := newTestPipeline(t, conn, cfg)

	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(context.Background()) }()

	pkt, err := builder.NewPublish("topic").Payload([]byte("this is long enough to exceed four bytes")).Build()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, pkt.Encode(&buf))

	writeDone := make(chan error, 1)
	go func() { _, werr := client.Write(buf.Bytes()); writeDone <- werr }()
	select {
	case <-writeDone:
	case <-time.After(2 * time.Second):
	}

	select {
	case err := <-runErr:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after oversized packet")
	}
}

func TestPipeline_ConnectionSendPacketReachesOutboundChannel(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	conn := NewConnection(server, "pipeline-4", nil)
	_, _, fromUpstream := newTestPipeline(t, conn, nil)

	pkt, err := builder.NewPuback(1).Build()
	require.NoError(t, err)

	require.NoError(t, conn.SendPacket(context.Background(), pkt))

	select {
	case got := <-fromUpstream:
		assert.Equal(t, pkt, got)
	case <-time.After(time.Second):
		t.Fatal("SendPacket did not reach the bound outbound channel")
	}
}

func TestConnection_SendPacketWithoutPipelineFails(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := NewConnection(server, "unbound", nil)
	pkt, err := builder.NewPuback(1).Build()
	require.NoError(t, err)

	err = conn.SendPacket(context.Background(), pkt)
	assert.ErrorIs(t, err, ErrPipelineNotBound)
}
