package framer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullstream/mqtt5core/builder"
	"github.com/nullstream/mqtt5core/encoding"
)

func encodedPingreq(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	pkt := &encoding.PingreqPacket{FixedHeader: encoding.FixedHeader{Type: encoding.PINGREQ}}
	require.NoError(t, pkt.Encode(&buf))
	return buf.Bytes()
}

func encodedPublish(t *testing.T, topic string, payload []byte) []byte {
	t.Helper()
	pkt, err := builder.NewPublish(topic).Payload(payload).Build()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, pkt.Encode(&buf))
	return buf.Bytes()
}

func TestFramer_SingleFrameInOneFeed(t *testing.T) {
	f := New(0)
	frame := encodedPingreq(t)

	frames, err := f.Feed(frame)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, frame, frames[0])
	assert.Zero(t, f.Pending())
}

func TestFramer_FrameSplitAcrossFeeds(t *testing.T) {
	f := New(0)
	frame := encodedPublish(t, "a/b", []byte("hello world"))

	// Feed one byte at a time; only the final Feed should yield a frame.
	var got [][]byte
	for i := 0; i < len(frame)-1; i++ {
		frames, err := f.Feed(frame[i : i+1])
		require.NoError(t, err)
		assert.Empty(t, frames)
	}
	frames, err := f.Feed(frame[len(frame)-1:])
	require.NoError(t, err)
	got = append(got, frames...)

	require.Len(t, got, 1)
	assert.Equal(t, frame, got[0])
}

func TestFramer_ShortVarintWaitsForMoreData(t *testing.T) {
	// A remaining-length field spanning more than one byte can arrive split
	// across two reads: the first Feed sees the fixed header byte plus a
	// varint byte with its continuation bit still set and nothing after it.
	// A naive varint reader could treat that the same as a genuinely
	// malformed remaining-length field and give up; Feed must instead treat
	// it as "need more data" and keep the connection open.
	f := New(0)
	full := encodedPublish(t, "x", bytes.Repeat([]byte("z"), 200))
	require.NotZero(t, full[1]&0x80, "sanity: remaining length must need a continuation byte")

	frames, err := f.Feed(full[:2])
	require.NoError(t, err)
	assert.Empty(t, frames)
	assert.Equal(t, 2, f.Pending())

	frames, err = f.Feed(full[2:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, full, frames[0])
}

func TestFramer_MultipleFramesInOneFeed(t *testing.T) {
	f := New(0)
	first := encodedPingreq(t)
	second := encodedPublish(t, "t", []byte("p"))

	combined := append(append([]byte{}, first...), second...)
	frames, err := f.Feed(combined)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, first, frames[0])
	assert.Equal(t, second, frames[1])
}

func TestFramer_RejectsOversizedPacket(t *testing.T) {
	f := New(4)
	frame := encodedPublish(t, "topic", []byte("this payload pushes the frame past four bytes"))

	frames, err := f.Feed(frame)
	assert.ErrorIs(t, err, ErrPacketTooLarge)
	assert.Empty(t, frames)
}

func TestFramer_MalformedHeaderPropagatesAsError(t *testing.T) {
	f := New(0)
	// Packet type 0 (Reserved) is never valid, regardless of more data.
	frames, err := f.Feed([]byte{0x00, 0x00})
	assert.Error(t, err)
	assert.Empty(t, frames)
}

func TestFramer_ResetDiscardsPartialFrame(t *testing.T) {
	f := New(0)
	_, err := f.Feed([]byte{0x30, 0x80})
	require.NoError(t, err)
	require.Equal(t, 2, f.Pending())

	f.Reset()
	assert.Zero(t, f.Pending())
}
