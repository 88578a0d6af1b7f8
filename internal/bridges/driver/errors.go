package driver

import "errors"

var (
	// ErrInvalidMessage is returned for payloads that cannot be decoded
	// into a discovery event or sample.
	ErrInvalidMessage = errors.New("bridge: invalid message")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("bridge: closed")

	// ErrNotConnected is returned by Send while the broker is unreachable.
	ErrNotConnected = errors.New("bridge: not connected")

	// ErrAlreadySubscribed is returned by a second SubscribeDiscovery.
	ErrAlreadySubscribed = errors.New("bridge: discovery already subscribed")
)
