package hub

import "errors"

// Hub construction and lifecycle errors.
var (
	// ErrNoSink is returned by New when no CommandSink is configured.
	ErrNoSink = errors.New("hub: command sink is required")

	// ErrNoDiscoveryFeed is returned by Start when no DiscoveryFeed is configured.
	ErrNoDiscoveryFeed = errors.New("hub: discovery feed is required")

	// ErrAlreadyStarted is returned by Start on a second call.
	ErrAlreadyStarted = errors.New("hub: already started")

	// ErrClosed is returned by Start after ShutdownAll.
	ErrClosed = errors.New("hub: shut down")

	// ErrInvalidUnlockPolicy is returned when an unlock policy is not recognised.
	ErrInvalidUnlockPolicy = errors.New("hub: invalid unlock policy")
)
