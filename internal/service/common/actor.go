//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
	"os/user"

	"github.com/oshokin/studio-control/internal/domain/operator"
)

var errInvalidRole = errors.New("role must be producer or talent")

// DetectActor gathers host and user information for the audit trail.
func DetectActor(role operator.Role) (*operator.Actor, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", errInvalidRole, role)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &operator.Actor{
		Hostname: hostname,
		Username: currentUser.Username,
		Role:     role,
	}, nil
}
