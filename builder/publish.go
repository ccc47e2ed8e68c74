package builder

import "github.com/nullstream/mqtt5core/encoding"

// PublishBuilder assembles a PUBLISH packet.
type PublishBuilder struct {
	pkt encoding.PublishPacket
	err error
}

// NewPublish starts a PUBLISH builder for the given topic at QoS0.
func NewPublish(topic string) *PublishBuilder {
	return &PublishBuilder{
		pkt: encoding.PublishPacket{
			FixedHeader: encoding.FixedHeader{Type: encoding.PUBLISH, QoS: encoding.QoS0},
			TopicName:   topic,
		},
	}
}

// QoS sets the delivery QoS. PacketID must be set separately for QoS1/2.
func (b *PublishBuilder) QoS(qos encoding.QoS) *PublishBuilder {
	if !qos.IsValid() {
		b.err = encoding.ErrInvalidQoS
		return b
	}
	b.pkt.FixedHeader.QoS = qos
	return b
}

// PacketID sets the packet identifier, required for QoS1/2.
func (b *PublishBuilder) PacketID(id uint16) *PublishBuilder {
	b.pkt.PacketID = id
	return b
}

// Retain sets the RETAIN flag.
func (b *PublishBuilder) Retain(retain bool) *PublishBuilder {
	b.pkt.FixedHeader.Retain = retain
	return b
}

// Dup sets the DUP flag.
func (b *PublishBuilder) Dup(dup bool) *PublishBuilder {
	b.pkt.FixedHeader.DUP = dup
	return b
}

// Payload sets the application payload.
func (b *PublishBuilder) Payload(payload []byte) *PublishBuilder {
	b.pkt.Payload = payload
	return b
}

// SetProperties validates props against PUBLISH's permitted-property set.
func (b *PublishBuilder) SetProperties(props []encoding.Property) *PublishBuilder {
	if b.err != nil {
		return b
	}
	if err := encoding.ValidateProperties(props, encoding.PermittedProperties(encoding.PUBLISH), "PUBLISH"); err != nil {
		b.err = err
		return b
	}
	b.pkt.Properties = encoding.Properties{Properties: props}
	return b
}

// Build validates the accumulated fields and returns the finished packet.
func (b *PublishBuilder) Build() (*encoding.PublishPacket, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := encoding.ValidatePublishPacket(b.pkt.TopicName, b.pkt.FixedHeader.QoS, b.pkt.PacketID, b.pkt.FixedHeader.DUP); err != nil {
		return nil, err
	}

	pkt := b.pkt
	return &pkt, nil
}
