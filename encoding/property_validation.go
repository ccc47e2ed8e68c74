package encoding

// permittedProperties lists, per packet type, the set of property IDs MQTT
// 5.0 allows in that packet's variable header. This is the single
// authoritative table: both the builder surface and the decoder validate
// against it, so the two call sites cannot drift.
var permittedProperties = map[PacketType]map[PropertyID]struct{}{
	CONNECT: propertySet(
		PropSessionExpiryInterval, PropAuthenticationMethod, PropAuthenticationData,
		PropRequestProblemInformation, PropRequestResponseInformation, PropReceiveMaximum,
		PropTopicAliasMaximum, PropUserProperty, PropMaximumPacketSize,
	),
	CONNACK: propertySet(
		PropSessionExpiryInterval, PropAssignedClientIdentifier, PropServerKeepAlive,
		PropAuthenticationMethod, PropAuthenticationData, PropResponseInformation,
		PropServerReference, PropReasonString, PropReceiveMaximum, PropTopicAliasMaximum,
		PropMaximumQoS, PropRetainAvailable, PropUserProperty, PropMaximumPacketSize,
		PropWildcardSubscriptionAvailable, PropSubscriptionIdentifierAvailable,
		PropSharedSubscriptionAvailable,
	),
	PUBLISH: propertySet(
		PropPayloadFormatIndicator, PropMessageExpiryInterval, PropContentType,
		PropResponseTopic, PropCorrelationData, PropSubscriptionIdentifier,
		PropTopicAlias, PropUserProperty,
	),
	PUBACK:      propertySet(PropReasonString, PropUserProperty),
	PUBREC:      propertySet(PropReasonString, PropUserProperty),
	PUBREL:      propertySet(PropReasonString, PropUserProperty),
	PUBCOMP:     propertySet(PropReasonString, PropUserProperty),
	SUBSCRIBE:   propertySet(PropSubscriptionIdentifier, PropUserProperty),
	SUBACK:      propertySet(PropReasonString, PropUserProperty),
	UNSUBSCRIBE: propertySet(PropUserProperty),
	UNSUBACK:    propertySet(PropReasonString, PropUserProperty),
	DISCONNECT: propertySet(
		PropSessionExpiryInterval, PropServerReference, PropReasonString, PropUserProperty,
	),
	AUTH: propertySet(
		PropAuthenticationMethod, PropAuthenticationData, PropReasonString, PropUserProperty,
	),
}

// willPermittedProperties is the separate permitted set for the Will
// properties carried in a CONNECT payload, per MQTT 5.0 section 3.1.3.2.
var willPermittedProperties = propertySet(
	PropWillDelayInterval, PropPayloadFormatIndicator, PropMessageExpiryInterval,
	PropContentType, PropResponseTopic, PropCorrelationData, PropUserProperty,
)

// PermittedProperties returns the permitted-property set for pt, the same
// table DecodePacket validates against. Builders use this so construction
// and decoding can never disagree on what a packet type allows.
func PermittedProperties(pt PacketType) map[PropertyID]struct{} {
	return permittedProperties[pt]
}

// WillPermittedProperties returns the permitted set for CONNECT's will
// properties, distinct from CONNECT's own variable-header properties.
func WillPermittedProperties() map[PropertyID]struct{} {
	return willPermittedProperties
}

func propertySet(ids ...PropertyID) map[PropertyID]struct{} {
	set := make(map[PropertyID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// ValidateProperties checks every property in props against the permitted
// set, and rejects duplicates of any property that isn't allowed to repeat
// (User Property is the only MQTT 5.0 property that may appear more than
// once). packetName is used only to build a descriptive PacketError message.
func ValidateProperties(props []Property, permitted map[PropertyID]struct{}, packetName string) error {
	seen := make(map[PropertyID]struct{}, len(props))
	for _, prop := range props {
		if _, ok := permitted[prop.ID]; !ok {
			return NewProtocolError(ErrPropertyNotAllowed, packetName+": "+prop.ID.String())
		}

		spec, ok := propertySpecs[prop.ID]
		if ok && spec.Multiple {
			continue
		}

		if _, dup := seen[prop.ID]; dup {
			return NewProtocolError(ErrDuplicateProperty, packetName+": "+prop.ID.String())
		}
		seen[prop.ID] = struct{}{}
	}
	return nil
}
