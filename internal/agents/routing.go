package agents

import "github.com/tiendatec/chat-platform/internal/conversation"

// Visibility rules, tightest first: sellers only work their own assignments
// plus the claimable queue of their store, managers cover a store, zone
// supervisors cover the stores of one zone, the regional manager covers the
// network. A conversation with no store yet is claimable by anyone so new
// handoffs never go unseen.

// CanViewConversation reports whether the agent may see the conversation.
func CanViewConversation(agent Agent, conv conversation.Conversation) bool {
	switch agent.Role {
	case RoleRegionalManager:
		return true
	case RoleZoneSupervisor:
		return conv.ZoneID == "" || conv.ZoneID == agent.ZoneID
	case RoleManager:
		return conv.StoreID == "" || conv.StoreID == agent.StoreID
	default:
		if conv.AssignedAgentID == agent.ID {
			return true
		}
		return conv.Status == conversation.StatusWaiting &&
			(conv.StoreID == "" || conv.StoreID == agent.StoreID)
	}
}

// CanActOnConversation reports whether the agent may message or resolve the
// conversation: the assignee always can, and anyone who outranks a seller can
// step into conversations they are allowed to see.
func CanActOnConversation(agent Agent, conv conversation.Conversation) bool {
	if conv.AssignedAgentID == agent.ID {
		return true
	}
	return agent.Role.AtLeast(RoleManager) && CanViewConversation(agent, conv)
}

// CanSupervise reports whether agent a may manage agent b's availability and
// load. Managers cover their own store's sellers; zone supervisors cover
// their zone and any store-scoped operator; the regional manager covers
// everyone below.
func CanSupervise(a, b Agent) bool {
	if a.ID == b.ID {
		return true
	}
	if !a.Role.Outranks(b.Role) {
		return false
	}
	switch a.Role {
	case RoleRegionalManager:
		return true
	case RoleZoneSupervisor:
		return b.ZoneID == a.ZoneID || b.StoreID != ""
	case RoleManager:
		return a.StoreID == b.StoreID
	}
	return false
}

// ListScope narrows conversation list queries to what a role may see. The
// zero value means no filter.
type ListScope struct {
	StoreID string
	ZoneID  string
}

// listScope returns the conversation-list filter for the agent's role.
func listScope(agent Agent) ListScope {
	switch agent.Role {
	case RoleRegionalManager:
		return ListScope{}
	case RoleZoneSupervisor:
		return ListScope{ZoneID: agent.ZoneID}
	default:
		return ListScope{StoreID: agent.StoreID}
	}
}
