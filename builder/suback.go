package builder

import "github.com/nullstream/mqtt5core/encoding"

// SubackBuilder assembles a SUBACK packet.
type SubackBuilder struct {
	pkt encoding.SubackPacket
	err error
}

// NewSuback starts a SUBACK builder for the given packet identifier.
func NewSuback(packetID uint16) *SubackBuilder {
	return &SubackBuilder{
		pkt: encoding.SubackPacket{
			FixedHeader: encoding.FixedHeader{Type: encoding.SUBACK},
			PacketID:    packetID,
		},
	}
}

// AddReasonCode appends a per-subscription reason code, validated against
// SUBACK's allowed set (grant codes and the SUBACK-specific error codes).
func (b *SubackBuilder) AddReasonCode(rc encoding.ReasonCode) *SubackBuilder {
	if b.err != nil {
		return b
	}
	if err := encoding.ValidateReasonCode(encoding.SUBACK, rc); err != nil {
		b.err = err
		return b
	}
	b.pkt.ReasonCodes = append(b.pkt.ReasonCodes, rc)
	return b
}

// SetProperties validates props against SUBACK's permitted-property set.
func (b *SubackBuilder) SetProperties(props []encoding.Property) *SubackBuilder {
	if b.err != nil {
		return b
	}
	if err := encoding.ValidateProperties(props, encoding.PermittedProperties(encoding.SUBACK), "SUBACK"); err != nil {
		b.err = err
		return b
	}
	b.pkt.Properties = encoding.Properties{Properties: props}
	return b
}

// Build validates the accumulated fields and returns the finished packet.
func (b *SubackBuilder) Build() (*encoding.SubackPacket, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.pkt.ReasonCodes) == 0 {
		return nil, ErrNoSubscriptions
	}
	if err := encoding.ValidatePacketID(b.pkt.PacketID, true); err != nil {
		return nil, err
	}

	pkt := b.pkt
	return &pkt, nil
}

// UnsubackBuilder assembles an UNSUBACK packet.
type UnsubackBuilder struct {
	pkt encoding.UnsubackPacket
	err error
}

// NewUnsuback starts an UNSUBACK builder for the given packet identifier.
func NewUnsuback(packetID uint16) *UnsubackBuilder {
	return &UnsubackBuilder{
		pkt: encoding.UnsubackPacket{
			FixedHeader: encoding.FixedHeader{Type: encoding.UNSUBACK},
			PacketID:    packetID,
		},
	}
}

// AddReasonCode appends a per-filter reason code, validated against
// UNSUBACK's allowed set.
func (b *UnsubackBuilder) AddReasonCode(rc encoding.ReasonCode) *UnsubackBuilder {
	if b.err != nil {
		return b
	}
	if err := encoding.ValidateReasonCode(encoding.UNSUBACK, rc); err != nil {
		b.err = err
		return b
	}
	b.pkt.ReasonCodes = append(b.pkt.ReasonCodes, rc)
	return b
}

// SetProperties validates props against UNSUBACK's permitted-property set.
func (b *UnsubackBuilder) SetProperties(props []encoding.Property) *UnsubackBuilder {
	if b.err != nil {
		return b
	}
	if err := encoding.ValidateProperties(props, encoding.PermittedProperties(encoding.UNSUBACK), "UNSUBACK"); err != nil {
		b.err = err
		return b
	}
	b.pkt.Properties = encoding.Properties{Properties: props}
	return b
}

// Build validates the accumulated fields and returns the finished packet.
func (b *UnsubackBuilder) Build() (*encoding.UnsubackPacket, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.pkt.ReasonCodes) == 0 {
		return nil, ErrNoTopicFilters
	}
	if err := encoding.ValidatePacketID(b.pkt.PacketID, true); err != nil {
		return nil, err
	}

	pkt := b.pkt
	return &pkt, nil
}
