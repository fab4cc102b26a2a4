// Package version computes the next hotfix version from a project version.
//
// Only plain MAJOR.MINOR.PATCH versions are recognised. Anything carrying a
// qualifier ("2.0.0-SNAPSHOT"), a missing component ("1.2") or non-decimal
// parts is reported as unparsable, and callers fall back to
// DefaultHotfixVersion.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// DefaultHotfixVersion is offered when the current version cannot be parsed.
const DefaultHotfixVersion = "1.0.1"

// ErrUnparsableVersion is returned by NextVersion for strings that are not
// of the form MAJOR.MINOR.PATCH.
var ErrUnparsableVersion = errors.New("unparsable version")

var releasePattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

// NextVersion returns current with its patch component incremented:
// "1.2.0" becomes "1.2.1". Major and minor components are copied through
// verbatim, so leading zeros there are preserved.
func NextVersion(current string) (string, error) {
	m := releasePattern.FindStringSubmatch(current)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrUnparsableVersion, current)
	}

	patch, err := strconv.ParseUint(m[3], 10, 64)
	if err != nil {
		// Only reachable on overflow; the pattern guarantees digits.
		return "", fmt.Errorf("%w: %q: %v", ErrUnparsableVersion, current, err)
	}

	return fmt.Sprintf("%s.%s.%d", m[1], m[2], patch+1), nil
}

// Suggestion is the outcome of inferring a default hotfix version.
type Suggestion struct {
	// Version is the version to offer the operator.
	Version string

	// Inferred is true when Version was computed from the current version,
	// false when DefaultHotfixVersion was substituted.
	Inferred bool

	// Reason holds the inference error when Inferred is false.
	Reason error
}

// Suggest infers the default hotfix version for current. It never fails:
// an unparsable version yields DefaultHotfixVersion with Inferred unset.
func Suggest(current string) Suggestion {
	next, err := NextVersion(current)
	if err != nil {
		return Suggestion{Version: DefaultHotfixVersion, Reason: err}
	}
	return Suggestion{Version: next, Inferred: true}
}
