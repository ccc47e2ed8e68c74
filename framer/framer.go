// Package framer reassembles a byte stream into complete MQTT control packet
// frames: peek a fixed header off the front of the buffer, compute the
// total frame length from the remaining-length field, and split off a
// frame once enough bytes have arrived.
//
// A naive version of this loop could treat a short read on the
// remaining-length varint the same as any other decode failure and break
// out entirely, ending the connection on an ordinary TCP short read. A
// Framer never does that: a varint that is merely incomplete
// (encoding.ErrUnexpectedEOF) means wait for the next Feed, not give up.
// Only a header that can never become valid terminates the connection.
package framer

import (
	"errors"

	"github.com/nullstream/mqtt5core/encoding"
)

// DefaultMaxPacketSize bounds an unconfigured Framer to 256 MiB, the upper
// bound spec callers are expected to tighten per deployment.
const DefaultMaxPacketSize = 256 * 1024 * 1024

// Framer holds the single buffer of bytes read so far for one connection.
// It has exactly one owner: the goroutine reading off the wire. Feed is not
// safe for concurrent use.
type Framer struct {
	buf           []byte
	maxPacketSize uint32
}

// New returns a Framer that rejects any packet whose total encoded size
// exceeds maxPacketSize. A maxPacketSize of 0 selects DefaultMaxPacketSize.
func New(maxPacketSize uint32) *Framer {
	if maxPacketSize == 0 {
		maxPacketSize = DefaultMaxPacketSize
	}
	return &Framer{maxPacketSize: maxPacketSize}
}

// Feed appends chunk to the internal buffer and returns every complete
// control packet frame (fixed header plus variable header plus payload)
// that can now be extracted. Bytes belonging to a still-incomplete frame
// remain buffered for the next call.
//
// A non-nil error means the buffered bytes can never form a valid frame
// (corrupt remaining-length, oversized packet); the connection should be
// closed after inspecting it. Running out of bytes mid-frame is not an
// error: Feed returns the frames extracted so far and waits for more.
func (f *Framer) Feed(chunk []byte) ([][]byte, error) {
	if len(chunk) > 0 {
		f.buf = append(f.buf, chunk...)
	}

	var frames [][]byte
	for {
		fh, headerLen, err := encoding.ParseFixedHeaderFromBytes(f.buf)
		if err != nil {
			if errors.Is(err, encoding.ErrUnexpectedEOF) {
				break
			}
			return frames, err
		}

		total := headerLen + int(fh.RemainingLength)
		if uint32(total) > f.maxPacketSize {
			return frames, ErrPacketTooLarge
		}
		if len(f.buf) < total {
			break
		}

		frame := make([]byte, total)
		copy(frame, f.buf[:total])
		frames = append(frames, frame)
		f.buf = f.buf[total:]
	}

	return frames, nil
}

// Pending returns the number of bytes currently buffered for an incomplete
// frame. Useful for diagnostics and for the pipeline's backpressure metrics.
func (f *Framer) Pending() int {
	return len(f.buf)
}

// Reset discards any buffered partial frame, for use after a decode error
// forces the connection closed and the Framer is about to be discarded too.
func (f *Framer) Reset() {
	f.buf = nil
}
