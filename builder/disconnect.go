package builder

import "github.com/nullstream/mqtt5core/encoding"

// DisconnectBuilder assembles a DISCONNECT packet.
type DisconnectBuilder struct {
	pkt encoding.DisconnectPacket
	err error
}

// NewDisconnect starts a DISCONNECT builder, defaulting to normal disconnection.
func NewDisconnect() *DisconnectBuilder {
	return &DisconnectBuilder{
		pkt: encoding.DisconnectPacket{
			FixedHeader: encoding.FixedHeader{Type: encoding.DISCONNECT},
			ReasonCode:  encoding.ReasonNormalDisconnection,
		},
	}
}

// ReasonCode sets the reason code, validated against DISCONNECT's allowed set.
func (b *DisconnectBuilder) ReasonCode(rc encoding.ReasonCode) *DisconnectBuilder {
	if b.err != nil {
		return b
	}
	if err := encoding.ValidateReasonCode(encoding.DISCONNECT, rc); err != nil {
		b.err = err
		return b
	}
	b.pkt.ReasonCode = rc
	return b
}

// SetProperties validates props against DISCONNECT's permitted-property set.
func (b *DisconnectBuilder) SetProperties(props []encoding.Property) *DisconnectBuilder {
	if b.err != nil {
		return b
	}
	if err := encoding.ValidateProperties(props, encoding.PermittedProperties(encoding.DISCONNECT), "DISCONNECT"); err != nil {
		b.err = err
		return b
	}
	b.pkt.Properties = encoding.Properties{Properties: props}
	return b
}

// Build returns the finished packet.
func (b *DisconnectBuilder) Build() (*encoding.DisconnectPacket, error) {
	if b.err != nil {
		return nil, b.err
	}
	pkt := b.pkt
	return &pkt, nil
}

// AuthBuilder assembles an AUTH packet.
type AuthBuilder struct {
	pkt encoding.AuthPacket
	err error
}

// NewAuth starts an AUTH builder with the given reason code (AUTH has no
// reason-code omission shortcut, unlike DISCONNECT).
func NewAuth(reasonCode encoding.ReasonCode) *AuthBuilder {
	return &AuthBuilder{
		pkt: encoding.AuthPacket{
			FixedHeader: encoding.FixedHeader{Type: encoding.AUTH},
			ReasonCode:  reasonCode,
		},
	}
}

// SetProperties validates props against AUTH's permitted-property set.
func (b *AuthBuilder) SetProperties(props []encoding.Property) *AuthBuilder {
	if b.err != nil {
		return b
	}
	if err := encoding.ValidateProperties(props, encoding.PermittedProperties(encoding.AUTH), "AUTH"); err != nil {
		b.err = err
		return b
	}
	b.pkt.Properties = encoding.Properties{Properties: props}
	return b
}

// Build validates the accumulated fields and returns the finished packet.
func (b *AuthBuilder) Build() (*encoding.AuthPacket, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := encoding.ValidateReasonCode(encoding.AUTH, b.pkt.ReasonCode); err != nil {
		return nil, err
	}
	pkt := b.pkt
	return &pkt, nil
}
