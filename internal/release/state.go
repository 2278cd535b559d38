// Package release classifies project versions as releases or snapshots and
// decides whether published artifacts must be signed.
package release

import "strings"

// SnapshotSuffix marks a Maven snapshot version.
const SnapshotSuffix = "-SNAPSHOT"

// State is the release classification of a version string.
type State uint8

const (
	// Release is any version not ending in the snapshot suffix.
	Release State = iota
	// Snapshot is a version ending in "-SNAPSHOT".
	Snapshot
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == Snapshot {
		return "snapshot"
	}
	return "release"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Classify returns Snapshot if version ends with "-SNAPSHOT" (case-sensitive)
// and Release otherwise. The version is not otherwise parsed or validated.
func Classify(version string) State {
	if strings.HasSuffix(version, SnapshotSuffix) {
		return Snapshot
	}
	return Release
}

// HeadInfo is the git state relevant to tag-gated release detection.
type HeadInfo struct {
	// RepositoryPresent is false when the project is not inside a git repository.
	RepositoryPresent bool
	// Tagged is true when some tag points at HEAD.
	Tagged bool
}

// Resolve classifies version. When requireTag is set a non-snapshot version
// only counts as a release if HEAD is tagged or there is no repository at all;
// otherwise it is treated as a snapshot.
func Resolve(version string, requireTag bool, head HeadInfo) State {
	state := Classify(version)
	if state == Snapshot || !requireTag {
		return state
	}
	if !head.RepositoryPresent || head.Tagged {
		return Release
	}
	return Snapshot
}
