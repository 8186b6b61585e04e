package node

import "errors"

// Provisioner errors.
var (
	// ErrRuntimeNotFound indicates no interpreter was found in any tier.
	ErrRuntimeNotFound = errors.New("node: no usable runtime found")

	// ErrBadVersion indicates an unparseable version string.
	ErrBadVersion = errors.New("node: invalid version")

	// ErrMirrorUnreachable indicates the download mirror failed its probe.
	ErrMirrorUnreachable = errors.New("node: mirror unreachable")

	// ErrNoArchive indicates the manifest has no archive for this platform.
	ErrNoArchive = errors.New("node: no archive for platform")

	// ErrNoManifest indicates the payload ships neither a runtime manifest
	// nor an offline installer.
	ErrNoManifest = errors.New("node: no runtime manifest or installer in payload")

	// ErrInstallIncomplete indicates an install finished without producing
	// a usable binary.
	ErrInstallIncomplete = errors.New("node: install completed but runtime still missing")
)
