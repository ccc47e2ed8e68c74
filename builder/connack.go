package builder

import "github.com/nullstream/mqtt5core/encoding"

// ConnackBuilder assembles a CONNACK packet.
type ConnackBuilder struct {
	pkt encoding.ConnackPacket
	err error
}

// NewConnack starts a CONNACK builder with the given reason code.
func NewConnack(reasonCode encoding.ReasonCode) *ConnackBuilder {
	return &ConnackBuilder{
		pkt: encoding.ConnackPacket{
			FixedHeader: encoding.FixedHeader{Type: encoding.CONNACK},
			ReasonCode:  reasonCode,
		},
	}
}

// SessionPresent sets the session-present flag.
func (b *ConnackBuilder) SessionPresent(present bool) *ConnackBuilder {
	b.pkt.SessionPresent = present
	return b
}

// SetProperties validates props against CONNACK's permitted-property set.
func (b *ConnackBuilder) SetProperties(props []encoding.Property) *ConnackBuilder {
	if b.err != nil {
		return b
	}
	if err := encoding.ValidateProperties(props, encoding.PermittedProperties(encoding.CONNACK), "CONNACK"); err != nil {
		b.err = err
		return b
	}
	b.pkt.Properties = encoding.Properties{Properties: props}
	return b
}

// Build validates the accumulated fields and returns the finished packet.
func (b *ConnackBuilder) Build() (*encoding.ConnackPacket, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := encoding.ValidateReasonCode(encoding.CONNACK, b.pkt.ReasonCode); err != nil {
		return nil, err
	}

	pkt := b.pkt
	return &pkt, nil
}
