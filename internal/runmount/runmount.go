// Package runmount provides utilities for working with RUN --mount options.
//
// BuildKit's instructions.GetMounts() uses deferred evaluation - it returns
// default values until RunCommand.Expand() is called with an expander.
// This package provides helpers to eagerly parse mount options for static analysis.
package runmount

import (
	"slices"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/instructions"
)

// identityExpander returns input unchanged, enabling mount parsing without variable expansion.
func identityExpander(word string) (string, error) {
	return word, nil
}

// GetMounts returns parsed mount configurations from a RUN command.
// Unlike instructions.GetMounts(), this eagerly parses mount options
// by calling Expand() with an identity expander if needed.
//
// This is safe for static analysis - any ARG/ENV variables in mount
// options will be preserved as literal strings.
func GetMounts(run *instructions.RunCommand) []*instructions.Mount {
	// Check if mounts are already populated
	mounts := instructions.GetMounts(run)
	if len(mounts) > 0 && mountsPopulated(mounts) {
		return mounts
	}

	// Check if there are any mount flags to parse
	if !hasMountFlags(run) {
		return nil
	}

	// Trigger mount parsing with identity expander
	// This populates the mount state with actual values
	_ = run.Expand(identityExpander) //nolint:errcheck // identity expander never fails

	return instructions.GetMounts(run)
}

// hasMountFlags checks if the RUN command has any mount flags.
func hasMountFlags(run *instructions.RunCommand) bool {
	return slices.ContainsFunc(run.FlagsUsed, func(flag string) bool {
		return strings.HasPrefix(flag, "mount")
	})
}

// mountsPopulated checks if mounts have been properly parsed (not just defaults).
// Default unparsed mounts have Type=bind and empty Target.
func mountsPopulated(mounts []*instructions.Mount) bool {
	for _, m := range mounts {
		// A properly parsed mount should have a target (except for secret/ssh which use ID)
		if m.Target != "" || m.CacheID != "" {
			return true
		}
		// If type is not bind, it was parsed
		if m.Type != instructions.MountTypeBind {
			return true
		}
	}
	return false
}
