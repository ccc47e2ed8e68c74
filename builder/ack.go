package builder

import "github.com/nullstream/mqtt5core/encoding"

// ackBuilder is the shared shape of PUBACK/PUBREC/PUBREL/PUBCOMP builders:
// packet identifier, reason code, and a properties set validated against
// that packet type's permitted set.
type ackBuilder struct {
	packetType encoding.PacketType
	flags      byte
	packetID   uint16
	reasonCode encoding.ReasonCode
	properties encoding.Properties
	err        error
}

func newAckBuilder(pt encoding.PacketType, flags byte, packetID uint16) *ackBuilder {
	return &ackBuilder{packetType: pt, flags: flags, packetID: packetID, reasonCode: encoding.ReasonSuccess}
}

func (b *ackBuilder) setReasonCode(rc encoding.ReasonCode) {
	if b.err != nil {
		return
	}
	if err := encoding.ValidateReasonCode(b.packetType, rc); err != nil {
		b.err = err
		return
	}
	b.reasonCode = rc
}

func (b *ackBuilder) setProperties(props []encoding.Property) {
	if b.err != nil {
		return
	}
	if err := encoding.ValidateProperties(props, encoding.PermittedProperties(b.packetType), b.packetType.String()); err != nil {
		b.err = err
		return
	}
	b.properties = encoding.Properties{Properties: props}
}

func (b *ackBuilder) build() error {
	if b.err != nil {
		return b.err
	}
	return encoding.ValidatePacketID(b.packetID, true)
}

// PubackBuilder assembles a PUBACK packet.
type PubackBuilder struct{ b *ackBuilder }

// NewPuback starts a PUBACK builder for packetID, defaulting to Success.
func NewPuback(packetID uint16) *PubackBuilder {
	return &PubackBuilder{b: newAckBuilder(encoding.PUBACK, 0, packetID)}
}

// ReasonCode sets the reason code, validated against PUBACK's allowed set.
func (b *PubackBuilder) ReasonCode(rc encoding.ReasonCode) *PubackBuilder {
	b.b.setReasonCode(rc)
	return b
}

// SetProperties validates props against PUBACK's permitted-property set.
func (b *PubackBuilder) SetProperties(props []encoding.Property) *PubackBuilder {
	b.b.setProperties(props)
	return b
}

// Build validates the accumulated fields and returns the finished packet.
func (b *PubackBuilder) Build() (*encoding.PubackPacket, error) {
	if err := b.b.build(); err != nil {
		return nil, err
	}
	return &encoding.PubackPacket{
		FixedHeader: encoding.FixedHeader{Type: encoding.PUBACK},
		PacketID:    b.b.packetID,
		ReasonCode:  b.b.reasonCode,
		Properties:  b.b.properties,
	}, nil
}

// PubrecBuilder assembles a PUBREC packet.
type PubrecBuilder struct{ b *ackBuilder }

// NewPubrec starts a PUBREC builder for packetID, defaulting to Success.
func NewPubrec(packetID uint16) *PubrecBuilder {
	return &PubrecBuilder{b: newAckBuilder(encoding.PUBREC, 0, packetID)}
}

// ReasonCode sets the reason code, validated against PUBREC's allowed set.
func (b *PubrecBuilder) ReasonCode(rc encoding.ReasonCode) *PubrecBuilder {
	b.b.setReasonCode(rc)
	return b
}

// SetProperties validates props against PUBREC's permitted-property set.
func (b *PubrecBuilder) SetProperties(props []encoding.Property) *PubrecBuilder {
	b.b.setProperties(props)
	return b
}

// Build validates the accumulated fields and returns the finished packet.
func (b *PubrecBuilder) Build() (*encoding.PubrecPacket, error) {
	if err := b.b.build(); err != nil {
		return nil, err
	}
	return &encoding.PubrecPacket{
		FixedHeader: encoding.FixedHeader{Type: encoding.PUBREC},
		PacketID:    b.b.packetID,
		ReasonCode:  b.b.reasonCode,
		Properties:  b.b.properties,
	}, nil
}

// PubrelBuilder assembles a PUBREL packet.
type PubrelBuilder struct{ b *ackBuilder }

// NewPubrel starts a PUBREL builder for packetID, defaulting to Success.
func NewPubrel(packetID uint16) *PubrelBuilder {
	return &PubrelBuilder{b: newAckBuilder(encoding.PUBREL, 0x02, packetID)}
}

// ReasonCode sets the reason code, validated against PUBREL's allowed set.
func (b *PubrelBuilder) ReasonCode(rc encoding.ReasonCode) *PubrelBuilder {
	b.b.setReasonCode(rc)
	return b
}

// SetProperties validates props against PUBREL's permitted-property set.
func (b *PubrelBuilder) SetProperties(props []encoding.Property) *PubrelBuilder {
	b.b.setProperties(props)
	return b
}

// Build validates the accumulated fields and returns the finished packet.
func (b *PubrelBuilder) Build() (*encoding.PubrelPacket, error) {
	if err := b.b.build(); err != nil {
		return nil, err
	}
	return &encoding.PubrelPacket{
		FixedHeader: encoding.FixedHeader{Type: encoding.PUBREL, Flags: 0x02},
		PacketID:    b.b.packetID,
		ReasonCode:  b.b.reasonCode,
		Properties:  b.b.properties,
	}, nil
}

// PubcompBuilder assembles a PUBCOMP packet.
type PubcompBuilder struct{ b *ackBuilder }

// NewPubcomp starts a PUBCOMP builder for packetID, defaulting to Success.
func NewPubcomp(packetID uint16) *PubcompBuilder {
	return &PubcompBuilder{b: newAckBuilder(encoding.PUBCOMP, 0, packetID)}
}

// ReasonCode sets the reason code, validated against PUBCOMP's allowed set.
func (b *PubcompBuilder) ReasonCode(rc encoding.ReasonCode) *PubcompBuilder {
	b.b.setReasonCode(rc)
	return b
}

// SetProperties validates props against PUBCOMP's permitted-property set.
func (b *PubcompBuilder) SetProperties(props []encoding.Property) *PubcompBuilder {
	b.b.setProperties(props)
	return b
}

// Build validates the accumulated fields and returns the finished packet.
func (b *PubcompBuilder) Build() (*encoding.PubcompPacket, error) {
	if err := b.b.build(); err != nil {
		return nil, err
	}
	return &encoding.PubcompPacket{
		FixedHeader: encoding.FixedHeader{Type: encoding.PUBCOMP},
		PacketID:    b.b.packetID,
		ReasonCode:  b.b.reasonCode,
		Properties:  b.b.properties,
	}, nil
}
