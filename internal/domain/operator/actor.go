// Package operator identifies the console that performed an action.
package operator

import "fmt"

// Role distinguishes the authoritative console from read-mostly ones.
type Role string

const (
	RoleProducer Role = "producer"
	RoleTalent   Role = "talent"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleProducer || r == RoleTalent
}

// Actor is the console identity recorded on replicated records.
type Actor struct {
	// Hostname is the machine the console runs on.
	Hostname string
	// Username is the system user running the console.
	Username string
	Role     Role
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// String renders the actor as user@host/role.
func (a *Actor) String() string {
	if a == nil {
		return "<unknown>"
	}

	return fmt.Sprintf("%s@%s/%s", a.Username, a.Hostname, a.Role)
}
