package utils

import (
	"fmt"
	"strings"

	"github.com/concave-dev/pfbatch/internal/logging"
)

// nodeIDLength is the length of a generated node id in hex characters
const nodeIDLength = 12

// MemberLike is anything with an id and a name
type MemberLike interface {
	GetID() string
	GetName() string
}

// ResolveNodeIdentifier expands a unique partial node id to the full id.
// Names, full ids and identifiers that match nothing are returned as given
// and left to the daemon to resolve.
func ResolveNodeIdentifier(members []MemberLike, identifier string) (string, error) {
	if !IsHexString(identifier) || len(identifier) > nodeIDLength {
		return identifier, nil
	}

	var matches []MemberLike
	for _, member := range members {
		if member.GetName() == identifier {
			return identifier, nil
		}
		if strings.HasPrefix(member.GetID(), identifier) {
			matches = append(matches, member)
		}
	}

	switch len(matches) {
	case 0:
		return identifier, nil
	case 1:
		logging.Info("Resolved partial ID '%s' to full ID '%s' (node: %s)",
			identifier, matches[0].GetID(), matches[0].GetName())
		return matches[0].GetID(), nil
	default:
		logging.Error("Partial ID '%s' is not unique, matches multiple nodes:", identifier)
		for _, match := range matches {
			logging.Error("  %s (%s)", match.GetID(), match.GetName())
		}
		return "", fmt.Errorf("partial ID '%s' matches %d nodes", identifier, len(matches))
	}
}

// IsHexString checks if a string contains only hexadecimal characters
func IsHexString(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, char := range s {
		if !((char >= '0' && char <= '9') || (char >= 'a' && char <= 'f') || (char >= 'A' && char <= 'F')) {
			return false
		}
	}
	return true
}
