// Package agents manages the human side of the platform: who may take a
// conversation, how many they can carry, and what each role may see.
package agents

import "time"

// Role is an agent's place in the hierarchy. Higher roles see and supervise
// everything lower ones do.
type Role string

const (
	RoleSeller          Role = "SELLER"
	RoleManager         Role = "MANAGER"
	RoleZoneSupervisor  Role = "ZONE_SUPERVISOR"
	RoleRegionalManager Role = "REGIONAL_MANAGER"
)

var roleOrder = map[Role]int{
	RoleSeller:          1,
	RoleManager:         2,
	RoleZoneSupervisor:  3,
	RoleRegionalManager: 4,
}

// Valid reports whether the role is one of the known levels.
func (r Role) Valid() bool {
	_, ok := roleOrder[r]
	return ok
}

// AtLeast reports whether the role ranks at or above the other.
func (r Role) AtLeast(other Role) bool {
	return roleOrder[r] >= roleOrder[other]
}

// Outranks reports whether the role ranks strictly above the other.
func (r Role) Outranks(other Role) bool {
	return roleOrder[r] > roleOrder[other]
}

// Availability is whether an agent can take new conversations. BUSY is
// derived from the load counter, never set by hand.
type Availability string

const (
	AvailabilityAvailable Availability = "AVAILABLE"
	AvailabilityBusy      Availability = "BUSY"
	AvailabilityOffline   Availability = "OFFLINE"
)

// Agent is one operator. Sellers and managers are scoped to a store (and its
// zone); zone supervisors carry only a zone; the regional manager neither.
type Agent struct {
	ID                  string
	Name                string
	Email               string
	Role                Role
	StoreID             string
	ZoneID              string
	Status              Availability
	ActiveConversations int
	MaxConversations    int
	CreatedAt           time.Time
}

// CanTakeConversation reports whether the agent has spare capacity right now.
func (a Agent) CanTakeConversation() bool {
	return a.Status == AvailabilityAvailable && a.ActiveConversations < a.MaxConversations
}
