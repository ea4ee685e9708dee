package agents

import (
	"testing"

	"github.com/tiendatec/chat-platform/internal/conversation"
)

func TestRoleOrdering(t *testing.T) {
	tests := []struct {
		a, b     Role
		outranks bool
	}{
		{RoleManager, RoleSeller, true},
		{RoleZoneSupervisor, RoleManager, true},
		{RoleRegionalManager, RoleZoneSupervisor, true},
		{RoleSeller, RoleManager, false},
		{RoleSeller, RoleSeller, false},
	}
	for _, tt := range tests {
		if got := tt.a.Outranks(tt.b); got != tt.outranks {
			t.Errorf("%s.Outranks(%s) = %v, want %v", tt.a, tt.b, got, tt.outranks)
		}
	}
}

func TestCanViewConversation(t *testing.T) {
	waitingCentro := conversation.Conversation{
		ID: "c1", StoreID: "centro", ZoneID: "capital",
		Status: conversation.StatusWaiting,
	}
	unscoped := conversation.Conversation{ID: "c2", Status: conversation.StatusWaiting}

	seller := Agent{ID: "a1", Role: RoleSeller, StoreID: "norte", ZoneID: "gba_norte"}
	if CanViewConversation(seller, waitingCentro) {
		t.Error("seller must not see another store's conversation")
	}
	if !CanViewConversation(seller, unscoped) {
		t.Error("unscoped waiting conversations are visible to everyone")
	}

	sameStore := Agent{ID: "a2", Role: RoleSeller, StoreID: "centro", ZoneID: "capital"}
	if !CanViewConversation(sameStore, waitingCentro) {
		t.Error("seller must see own store's waiting conversation")
	}

	manager := Agent{ID: "a3", Role: RoleManager, StoreID: "centro", ZoneID: "capital"}
	assigned := conversation.Conversation{
		ID: "c3", StoreID: "centro", ZoneID: "capital",
		Status: conversation.StatusAssigned, AssignedAgentID: "a2",
	}
	if !CanViewConversation(manager, assigned) {
		t.Error("manager sees every conversation in the store")
	}
}

func TestSellerCannotViewPeerAssignment(t *testing.T) {
	assigned := conversation.Conversation{
		ID: "c1", StoreID: "centro", ZoneID: "capital",
		Status: conversation.StatusAssigned, AssignedAgentID: "owner",
	}

	owner := Agent{ID: "owner", Role: RoleSeller, StoreID: "centro", ZoneID: "capital"}
	if !CanViewConversation(owner, assigned) {
		t.Error("assignee always sees their own conversation")
	}

	peer := Agent{ID: "peer", Role: RoleSeller, StoreID: "centro", ZoneID: "capital"}
	if CanViewConversation(peer, assigned) {
		t.Error("a seller must not see a peer's assigned conversation")
	}

	unscopedAssigned := conversation.Conversation{
		ID: "c2", Status: conversation.StatusAssigned, AssignedAgentID: "owner",
	}
	if CanViewConversation(peer, unscopedAssigned) {
		t.Error("assignment hides unscoped conversations from other sellers too")
	}
}

func TestZoneSupervisorVisibility(t *testing.T) {
	supervisor := Agent{ID: "z1", Role: RoleZoneSupervisor, ZoneID: "capital"}

	inZone := conversation.Conversation{ID: "c1", StoreID: "centro", ZoneID: "capital"}
	if !CanViewConversation(supervisor, inZone) {
		t.Error("zone supervisor sees conversations in their zone")
	}

	outOfZone := conversation.Conversation{ID: "c2", StoreID: "norte", ZoneID: "gba_norte"}
	if CanViewConversation(supervisor, outOfZone) {
		t.Error("zone supervisor must not see another zone")
	}

	unscoped := conversation.Conversation{ID: "c3"}
	if !CanViewConversation(supervisor, unscoped) {
		t.Error("unscoped conversations are visible to zone supervisors")
	}

	regional := Agent{ID: "r1", Role: RoleRegionalManager}
	if !CanViewConversation(regional, outOfZone) {
		t.Error("regional manager sees every zone")
	}
}

func TestCanActOnConversation(t *testing.T) {
	conv := conversation.Conversation{
		ID: "c1", StoreID: "centro", ZoneID: "capital", AssignedAgentID: "owner",
	}

	owner := Agent{ID: "owner", Role: RoleSeller, StoreID: "centro", ZoneID: "capital"}
	if !CanActOnConversation(owner, conv) {
		t.Error("assignee can always act")
	}

	otherSeller := Agent{ID: "a2", Role: RoleSeller, StoreID: "centro", ZoneID: "capital"}
	if CanActOnConversation(otherSeller, conv) {
		t.Error("a different seller cannot act on someone else's conversation")
	}

	manager := Agent{ID: "a3", Role: RoleManager, StoreID: "centro", ZoneID: "capital"}
	if !CanActOnConversation(manager, conv) {
		t.Error("the store manager can step in")
	}

	otherManager := Agent{ID: "a4", Role: RoleManager, StoreID: "norte", ZoneID: "gba_norte"}
	if CanActOnConversation(otherManager, conv) {
		t.Error("a manager from another store cannot step in")
	}
}

func TestCanSupervise(t *testing.T) {
	seller := Agent{ID: "s", Role: RoleSeller, StoreID: "centro", ZoneID: "capital"}
	manager := Agent{ID: "m", Role: RoleManager, StoreID: "centro", ZoneID: "capital"}
	otherManager := Agent{ID: "m2", Role: RoleManager, StoreID: "norte", ZoneID: "gba_norte"}
	supervisor := Agent{ID: "z", Role: RoleZoneSupervisor, ZoneID: "capital"}
	regional := Agent{ID: "r", Role: RoleRegionalManager}

	if !CanSupervise(seller, seller) {
		t.Error("agents manage themselves")
	}
	if !CanSupervise(manager, seller) {
		t.Error("manager supervises own store's sellers")
	}
	if CanSupervise(otherManager, seller) {
		t.Error("manager must not supervise another store")
	}
	if CanSupervise(seller, manager) {
		t.Error("seller must not supervise upward")
	}
	if !CanSupervise(supervisor, manager) {
		t.Error("zone supervisor covers managers in their zone")
	}
	if !CanSupervise(supervisor, otherManager) {
		t.Error("zone supervisor covers any store-scoped operator")
	}
	if !CanSupervise(regional, otherManager) {
		t.Error("regional manager supervises everyone below")
	}
}

func TestListScope(t *testing.T) {
	seller := listScope(Agent{Role: RoleSeller, StoreID: "centro", ZoneID: "capital"})
	if seller.StoreID != "centro" || seller.ZoneID != "" {
		t.Errorf("seller scope = %+v, want store filter only", seller)
	}

	supervisor := listScope(Agent{Role: RoleZoneSupervisor, ZoneID: "capital"})
	if supervisor.ZoneID != "capital" || supervisor.StoreID != "" {
		t.Errorf("supervisor scope = %+v, want zone filter only", supervisor)
	}

	regional := listScope(Agent{Role: RoleRegionalManager})
	if regional != (ListScope{}) {
		t.Errorf("regional scope = %+v, want unrestricted", regional)
	}
}
