package config

import "fmt"

// CurrentVersion is the configuration file version this build reads.
const CurrentVersion = 1

// VersionError reports a missing or unsupported `version` key.
type VersionError struct {
	Version int
	Current int
}

func (e *VersionError) Error() string {
	switch {
	case e.Version <= 0:
		return fmt.Sprintf("config has no version; add `version: %d`", e.Current)
	case e.Newer():
		return fmt.Sprintf("config version %d is newer than this build (%d); upgrade pathfinder", e.Version, e.Current)
	default:
		return fmt.Sprintf("config version %d is no longer supported; update the file to version %d", e.Version, e.Current)
	}
}

// Newer reports whether the file was written for a later release.
func (e *VersionError) Newer() bool { return e.Version > e.Current }

// ValidateVersion accepts only CurrentVersion.
func ValidateVersion(version int) error {
	if version != CurrentVersion {
		return &VersionError{Version: version, Current: CurrentVersion}
	}
	return nil
}
