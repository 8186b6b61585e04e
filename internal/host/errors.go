package host

import "errors"

// Host errors.
var (
	// ErrNoTransport indicates Start was called without a transport.
	ErrNoTransport = errors.New("host: no transport configured")

	// ErrNoEntryFile indicates the payload has no resolvable entry file.
	ErrNoEntryFile = errors.New("host: payload entry file not found")

	// ErrNoModules indicates the payload node_modules dir is missing.
	ErrNoModules = errors.New("host: payload node_modules not found")

	// ErrNoFreePort indicates loopback port allocation failed.
	ErrNoFreePort = errors.New("host: no free loopback port")
)
