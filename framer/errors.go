package framer

import "errors"

// ErrPacketTooLarge is returned by Feed when a peeked fixed header advertises
// a total packet size exceeding the framer's configured maximum.
var ErrPacketTooLarge = errors.New("control packet exceeds configured maximum size")
