package builder

import "github.com/nullstream/mqtt5core/encoding"

// SubscribeBuilder assembles a SUBSCRIBE packet from one or more filters.
type SubscribeBuilder struct {
	pkt encoding.SubscribePacket
	err error
}

// NewSubscribe starts a SUBSCRIBE builder with the given packet identifier.
func NewSubscribe(packetID uint16) *SubscribeBuilder {
	return &SubscribeBuilder{
		pkt: encoding.SubscribePacket{
			FixedHeader: encoding.FixedHeader{Type: encoding.SUBSCRIBE, Flags: 0x02},
			PacketID:    packetID,
		},
	}
}

// AddFilter appends a subscription for filter at the given QoS.
func (b *SubscribeBuilder) AddFilter(filter string, qos encoding.QoS) *SubscribeBuilder {
	if b.err != nil {
		return b
	}
	if err := encoding.ValidateTopicFilter(filter); err != nil {
		b.err = err
		return b
	}
	if !qos.IsValid() {
		b.err = encoding.ErrInvalidQoS
		return b
	}
	b.pkt.Subscriptions = append(b.pkt.Subscriptions, encoding.Subscription{
		TopicFilter: filter,
		QoS:         qos,
	})
	return b
}

// SetProperties validates props against SUBSCRIBE's permitted-property set.
func (b *SubscribeBuilder) SetProperties(props []encoding.Property) *SubscribeBuilder {
	if b.err != nil {
		return b
	}
	if err := encoding.ValidateProperties(props, encoding.PermittedProperties(encoding.SUBSCRIBE), "SUBSCRIBE"); err != nil {
		b.err = err
		return b
	}
	b.pkt.Properties = encoding.Properties{Properties: props}
	return b
}

// Build validates the accumulated fields and returns the finished packet.
func (b *SubscribeBuilder) Build() (*encoding.SubscribePacket, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.pkt.Subscriptions) == 0 {
		return nil, ErrNoSubscriptions
	}
	if err := encoding.ValidatePacketID(b.pkt.PacketID, true); err != nil {
		return nil, err
	}

	pkt := b.pkt
	return &pkt, nil
}

// UnsubscribeBuilder assembles an UNSUBSCRIBE packet from one or more filters.
type UnsubscribeBuilder struct {
	pkt encoding.UnsubscribePacket
	err error
}

// NewUnsubscribe starts an UNSUBSCRIBE builder with the given packet identifier.
func NewUnsubscribe(packetID uint16) *UnsubscribeBuilder {
	return &UnsubscribeBuilder{
		pkt: encoding.UnsubscribePacket{
			FixedHeader: encoding.FixedHeader{Type: encoding.UNSUBSCRIBE, Flags: 0x02},
			PacketID:    packetID,
		},
	}
}

// AddFilter appends a topic filter to unsubscribe from.
func (b *UnsubscribeBuilder) AddFilter(filter string) *UnsubscribeBuilder {
	if b.err != nil {
		return b
	}
	if err := encoding.ValidateTopicFilter(filter); err != nil {
		b.err = err
		return b
	}
	b.pkt.TopicFilters = append(b.pkt.TopicFilters, filter)
	return b
}

// SetProperties validates props against UNSUBSCRIBE's permitted-property set.
func (b *UnsubscribeBuilder) SetProperties(props []encoding.Property) *UnsubscribeBuilder {
	if b.err != nil {
		return b
	}
	if err := encoding.ValidateProperties(props, encoding.PermittedProperties(encoding.UNSUBSCRIBE), "UNSUBSCRIBE"); err != nil {
		b.err = err
		return b
	}
	b.pkt.Properties = encoding.Properties{Properties: props}
	return b
}

// Build validates the accumulated fields and returns the finished packet.
func (b *UnsubscribeBuilder) Build() (*encoding.UnsubscribePacket, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.pkt.TopicFilters) == 0 {
		return nil, ErrNoTopicFilters
	}
	if err := encoding.ValidatePacketID(b.pkt.PacketID, true); err != nil {
		return nil, err
	}

	pkt := b.pkt
	return &pkt, nil
}
