// Package validate provides input validation for pfbatch configuration and
// operator requests.
//
// Names cover daemon node names and destination names. Both show up in
// logs, gossip member tags and API paths, so they share one restricted
// alphabet.

package validate

import (
	"fmt"
	"regexp"
	"strings"
)

var nameRegex = regexp.MustCompile(`^[a-z0-9_-]+$`)

// NameFormat checks that name contains only [a-z0-9_-] and does not start or
// end with a hyphen or underscore. kind names the thing being validated in
// error messages, e.g. "node" or "destination".
func NameFormat(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s name cannot be empty", kind)
	}

	if !nameRegex.MatchString(name) {
		return fmt.Errorf("%s name '%s' must contain only lowercase letters [a-z], numbers [0-9], hyphens (-), and underscores (_)", kind, name)
	}

	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "_") ||
		strings.HasSuffix(name, "-") || strings.HasSuffix(name, "_") {
		return fmt.Errorf("%s name '%s' cannot start or end with hyphen (-) or underscore (_)", kind, name)
	}

	return nil
}

// NodeNameFormat validates a daemon node name.
func NodeNameFormat(name string) error {
	return NameFormat("node", name)
}
