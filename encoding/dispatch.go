package encoding

import (
	"bytes"
	"io"
)

// Packet is implemented by every MQTT 5.0 control packet struct. The framer
// and pipeline operate against this interface rather than switching on
// concrete packet type at each call site.
type Packet interface {
	Type() PacketType
	Encode(w io.Writer) error
}

func (p *ConnectPacket) Type() PacketType     { return CONNECT }
func (p *ConnackPacket) Type() PacketType     { return CONNACK }
func (p *PublishPacket) Type() PacketType     { return PUBLISH }
func (p *PubackPacket) Type() PacketType      { return PUBACK }
func (p *PubrecPacket) Type() PacketType      { return PUBREC }
func (p *PubrelPacket) Type() PacketType      { return PUBREL }
func (p *PubcompPacket) Type() PacketType     { return PUBCOMP }
func (p *SubscribePacket) Type() PacketType   { return SUBSCRIBE }
func (p *SubackPacket) Type() PacketType      { return SUBACK }
func (p *UnsubscribePacket) Type() PacketType { return UNSUBSCRIBE }
func (p *UnsubackPacket) Type() PacketType    { return UNSUBACK }
func (p *PingreqPacket) Type() PacketType     { return PINGREQ }
func (p *PingrespPacket) Type() PacketType    { return PINGRESP }
func (p *DisconnectPacket) Type() PacketType  { return DISCONNECT }
func (p *AuthPacket) Type() PacketType        { return AUTH }

// DecodePacket dispatches on fh.Type, parses body (the bytes following the
// fixed header) into the matching packet struct, and runs the validation
// that depends on having the whole packet in hand: permitted-property sets,
// per-packet reason-code validity, and the CONNECT will-flag invariant.
func DecodePacket(fh *FixedHeader, body []byte) (Packet, error) {
	r := bytes.NewReader(body)

	switch fh.Type {
	case CONNECT:
		pkt, err := ParseConnectPacket(r, fh)
		if err != nil {
			return nil, err
		}
		if err := ValidateProperties(pkt.Properties.Properties, permittedProperties[CONNECT], "CONNECT"); err != nil {
			return nil, err
		}
		if pkt.WillFlag {
			if err := ValidateProperties(pkt.WillProperties.Properties, willPermittedProperties, "CONNECT will"); err != nil {
				return nil, err
			}
		}
		if err := ValidateConnectWill(pkt); err != nil {
			return nil, err
		}
		return pkt, nil

	case CONNACK:
		pkt, err := ParseConnackPacket(r, fh)
		if err != nil {
			return nil, err
		}
		return pkt, validateDecoded(CONNACK, pkt.ReasonCode, pkt.Properties.Properties)

	case PUBLISH:
		pkt, err := ParsePublishPacket(r, fh)
		if err != nil {
			return nil, err
		}
		if err := ValidatePublishPacket(pkt.TopicName, pkt.FixedHeader.QoS, pkt.PacketID, pkt.FixedHeader.DUP); err != nil {
			return nil, err
		}
		return pkt, validateDecoded(PUBLISH, 0, pkt.Properties.Properties)

	case PUBACK:
		pkt, err := ParsePubackPacket(r, fh)
		if err != nil {
			return nil, err
		}
		return pkt, validateDecoded(PUBACK, pkt.ReasonCode, pkt.Properties.Properties)

	case PUBREC:
		pkt, err := ParsePubrecPacket(r, fh)
		if err != nil {
			return nil, err
		}
		return pkt, validateDecoded(PUBREC, pkt.ReasonCode, pkt.Properties.Properties)

	case PUBREL:
		pkt, err := ParsePubrelPacket(r, fh)
		if err != nil {
			return nil, err
		}
		return pkt, validateDecoded(PUBREL, pkt.ReasonCode, pkt.Properties.Properties)

	case PUBCOMP:
		pkt, err := ParsePubcompPacket(r, fh)
		if err != nil {
			return nil, err
		}
		return pkt, validateDecoded(PUBCOMP, pkt.ReasonCode, pkt.Properties.Properties)

	case SUBSCRIBE:
		pkt, err := ParseSubscribePacket(r, fh)
		if err != nil {
			return nil, err
		}
		if len(pkt.Subscriptions) == 0 {
			return nil, ErrEmptySubscriptionList
		}
		for _, sub := range pkt.Subscriptions {
			if err := ValidateTopicFilter(sub.TopicFilter); err != nil {
				return nil, err
			}
		}
		return pkt, validateDecoded(SUBSCRIBE, 0, pkt.Properties.Properties)

	case SUBACK:
		pkt, err := ParseSubackPacket(r, fh)
		if err != nil {
			return nil, err
		}
		for _, rc := range pkt.ReasonCodes {
			if err := ValidateReasonCode(SUBACK, rc); err != nil {
				return nil, err
			}
		}
		return pkt, validateDecoded(SUBACK, 0, pkt.Properties.Properties)

	case UNSUBSCRIBE:
		pkt, err := ParseUnsubscribePacket(r, fh)
		if err != nil {
			return nil, err
		}
		if len(pkt.TopicFilters) == 0 {
			return nil, ErrEmptyUnsubscribeList
		}
		for _, filter := range pkt.TopicFilters {
			if err := ValidateTopicFilter(filter); err != nil {
				return nil, err
			}
		}
		return pkt, validateDecoded(UNSUBSCRIBE, 0, pkt.Properties.Properties)

	case UNSUBACK:
		pkt, err := ParseUnsubackPacket(r, fh)
		if err != nil {
			return nil, err
		}
		for _, rc := range pkt.ReasonCodes {
			if err := ValidateReasonCode(UNSUBACK, rc); err != nil {
				return nil, err
			}
		}
		return pkt, validateDecoded(UNSUBACK, 0, pkt.Properties.Properties)

	case PINGREQ:
		return ParsePingreqPacket(fh)

	case PINGRESP:
		return ParsePingrespPacket(fh)

	case DISCONNECT:
		pkt, err := ParseDisconnectPacket(r, fh)
		if err != nil {
			return nil, err
		}
		return pkt, validateDecoded(DISCONNECT, pkt.ReasonCode, pkt.Properties.Properties)

	case AUTH:
		pkt, err := ParseAuthPacket(r, fh)
		if err != nil {
			return nil, err
		}
		return pkt, validateDecoded(AUTH, pkt.ReasonCode, pkt.Properties.Properties)

	default:
		return nil, ErrInvalidType
	}
}

func validateDecoded(pt PacketType, rc ReasonCode, props []Property) error {
	if err := ValidateReasonCode(pt, rc); err != nil {
		return err
	}
	return ValidateProperties(props, permittedProperties[pt], pt.String())
}

// EncodePacket serializes p using its Encode method into a freshly
// allocated byte slice, the counterpart to DecodePacket.
func EncodePacket(p Packet) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ValidateConnectWill enforces CONNECT's will-flag symmetry invariant: will
// topic/payload/properties are present if and only if the will flag is set,
// and a will QoS/retain value is only meaningful when the flag is set.
func ValidateConnectWill(pkt *ConnectPacket) error {
	if !pkt.WillFlag {
		if len(pkt.WillProperties.Properties) > 0 || pkt.WillTopic != "" || len(pkt.WillPayload) > 0 {
			return NewProtocolError(ErrWillPayloadMismatch, "will fields present without will flag")
		}
		return nil
	}

	if pkt.WillTopic == "" {
		return NewProtocolError(ErrWillPayloadMismatch, "will flag set without will topic")
	}
	if pkt.WillPayload == nil {
		return NewProtocolError(ErrWillPayloadNotSet, "will flag set without will payload")
	}
	if !pkt.WillQoS.IsValid() {
		return ErrInvalidWillQoS
	}
	return nil
}
