package adapterconfig

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

var semverPattern = regexp.MustCompile(`\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?`)

// extractSemver pulls the first dotted-triple version string out of free-form
// "--version" output, e.g. "lldb-dap version 18.1.3" -> 18.1.3.
func extractSemver(text string) (*semver.Version, error) {
	match := semverPattern.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("no semver-like version found in %q", text)
	}

	return semver.NewVersion(match)
}
