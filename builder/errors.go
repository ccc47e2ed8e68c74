package builder

import "errors"

var (
	// ErrClientIDRequired indicates CONNECT was built without a client ID and CleanStart is false
	ErrClientIDRequired = errors.New("client ID required when CleanStart is false")

	// ErrWillNotSet indicates a will-dependent setter was called before WillMessage
	ErrWillNotSet = errors.New("will message not set")

	// ErrTopicRequired indicates a packet was built without a required topic
	ErrTopicRequired = errors.New("topic required")

	// ErrWillPayloadRequired indicates WillMessage was called with a nil payload
	ErrWillPayloadRequired = errors.New("will payload required")

	// ErrNoSubscriptions indicates SUBSCRIBE was built with zero subscriptions
	ErrNoSubscriptions = errors.New("at least one subscription required")

	// ErrNoTopicFilters indicates UNSUBSCRIBE was built with zero topic filters
	ErrNoTopicFilters = errors.New("at least one topic filter required")

	// ErrPasswordWithoutUsername indicates Password was set but Username was not
	ErrPasswordWithoutUsername = errors.New("password set without username")
)
