// Package builder provides chainable constructors for MQTT 5.0 control
// packets: setters return the builder (or record an error) so construction
// can be checked incrementally, and Build finalizes to an immutable packet.
package builder

import (
	"github.com/nullstream/mqtt5core/encoding"
)

// ConnectBuilder assembles a CONNECT packet field by field.
type ConnectBuilder struct {
	pkt encoding.ConnectPacket
	err error
}

// NewConnect starts a CONNECT builder with protocol defaults (MQTT 5.0,
// clean start, no keep-alive).
func NewConnect() *ConnectBuilder {
	return &ConnectBuilder{
		pkt: encoding.ConnectPacket{
			FixedHeader:     encoding.FixedHeader{Type: encoding.CONNECT},
			ProtocolName:    "MQTT",
			ProtocolVersion: encoding.ProtocolVersion50,
			CleanStart:      true,
		},
	}
}

// ClientID sets the client identifier.
func (b *ConnectBuilder) ClientID(id string) *ConnectBuilder {
	b.pkt.ClientID = id
	return b
}

// CleanStart sets the clean-start flag.
func (b *ConnectBuilder) CleanStart(clean bool) *ConnectBuilder {
	b.pkt.CleanStart = clean
	return b
}

// KeepAlive sets the keep-alive interval in seconds.
func (b *ConnectBuilder) KeepAlive(seconds uint16) *ConnectBuilder {
	b.pkt.KeepAlive = seconds
	return b
}

// Username sets the username and its presence flag.
func (b *ConnectBuilder) Username(username string) *ConnectBuilder {
	b.pkt.Username = username
	b.pkt.UsernameFlag = true
	return b
}

// Password sets the password and its presence flag. Per MQTT-3.1.2-22,
// password requires username; Build rejects password set without username.
func (b *ConnectBuilder) Password(password []byte) *ConnectBuilder {
	b.pkt.Password = password
	b.pkt.PasswordFlag = true
	return b
}

// SetProperties validates props against CONNECT's permitted-property set
// and, if they pass, replaces the builder's current properties.
func (b *ConnectBuilder) SetProperties(props []encoding.Property) *ConnectBuilder {
	if b.err != nil {
		return b
	}
	if err := encoding.ValidateProperties(props, encoding.PermittedProperties(encoding.CONNECT), "CONNECT"); err != nil {
		b.err = err
		return b
	}
	b.pkt.Properties = encoding.Properties{Properties: props}
	return b
}

// WillMessage atomically sets the will flag, will properties, will topic,
// and will payload. willProps is validated against the will-specific
// permitted set (distinct from CONNECT's own properties) before any field
// is committed.
func (b *ConnectBuilder) WillMessage(willProps []encoding.Property, qos encoding.QoS, retain bool, topic string, payload []byte) *ConnectBuilder {
	if b.err != nil {
		return b
	}
	if topic == "" {
		b.err = ErrTopicRequired
		return b
	}
	if payload == nil {
		b.err = ErrWillPayloadRequired
		return b
	}
	if !qos.IsValid() {
		b.err = encoding.ErrInvalidWillQoS
		return b
	}
	if err := encoding.ValidateProperties(willProps, encoding.WillPermittedProperties(), "CONNECT will"); err != nil {
		b.err = err
		return b
	}

	b.pkt.WillFlag = true
	b.pkt.WillQoS = qos
	b.pkt.WillRetain = retain
	b.pkt.WillProperties = encoding.Properties{Properties: willProps}
	b.pkt.WillTopic = topic
	b.pkt.WillPayload = payload
	return b
}

// Build validates the accumulated fields and returns the finished packet.
func (b *ConnectBuilder) Build() (*encoding.ConnectPacket, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.pkt.CleanStart && b.pkt.ClientID == "" {
		return nil, ErrClientIDRequired
	}
	if b.pkt.PasswordFlag && !b.pkt.UsernameFlag {
		return nil, ErrPasswordWithoutUsername
	}
	if err := encoding.ValidateConnectWill(&b.pkt); err != nil {
		return nil, err
	}

	pkt := b.pkt
	return &pkt, nil
}
