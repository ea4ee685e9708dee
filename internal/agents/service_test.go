package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/tiendatec/chat-platform/internal/conversation"
	"github.com/tiendatec/chat-platform/internal/customers"
	"github.com/tiendatec/chat-platform/internal/messaging"
)

type fakeStore struct {
	agents        map[string]Agent
	assigned      []string
	resolved      []string
	returned      []string
	assignErr     error
	waiting       []conversation.Conversation
	all           []conversation.Conversation
	lastScope     ListScope
	lastAssignee  string
	listAllCalled bool
}

func (f *fakeStore) GetByID(_ context.Context, id string) (Agent, error) {
	agent, ok := f.agents[id]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	return agent, nil
}

func (f *fakeStore) Assign(_ context.Context, conversationID, agentID string) error {
	if f.assignErr != nil {
		return f.assignErr
	}
	f.assigned = append(f.assigned, conversationID+":"+agentID)
	return nil
}

func (f *fakeStore) Resolve(_ context.Context, conversationID, agentID string) error {
	f.resolved = append(f.resolved, conversationID+":"+agentID)
	return nil
}

func (f *fakeStore) TransferToBot(_ context.Context, conversationID, agentID string) error {
	f.returned = append(f.returned, conversationID+":"+agentID)
	return nil
}

func (f *fakeStore) SetAvailability(_ context.Context, _ string, _ Availability) error {
	return nil
}

func (f *fakeStore) ListWaiting(_ context.Context, scope ListScope) ([]conversation.Conversation, error) {
	f.lastScope = scope
	return f.waiting, nil
}

func (f *fakeStore) ListAssignedTo(_ context.Context, agentID string) ([]conversation.Conversation, error) {
	f.lastAssignee = agentID
	var out []conversation.Conversation
	for _, conv := range f.all {
		if conv.AssignedAgentID == agentID {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAll(_ context.Context, scope ListScope) ([]conversation.Conversation, error) {
	f.listAllCalled = true
	f.lastScope = scope
	return f.all, nil
}

type fakeConvReader struct {
	convs map[string]conversation.Conversation
}

func (f *fakeConvReader) GetByID(_ context.Context, id string) (conversation.Conversation, error) {
	conv, ok := f.convs[id]
	if !ok {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	return conv, nil
}

type fakeCustomerReader struct{}

func (fakeCustomerReader) GetByID(_ context.Context, id string) (customers.Customer, error) {
	return customers.Customer{ID: id, Phone: "+549351000111"}, nil
}

type fakeMessages struct {
	appended []conversation.Message
}

func (f *fakeMessages) Append(_ context.Context, msg conversation.Message) (conversation.Message, error) {
	msg.ID = "m"
	f.appended = append(f.appended, msg)
	return msg, nil
}

func (f *fakeMessages) ListByConversation(_ context.Context, _ string) ([]conversation.Message, error) {
	return f.appended, nil
}

type serviceFixture struct {
	service  *Service
	store    *fakeStore
	convs    *fakeConvReader
	messages *fakeMessages
	gateway  *messaging.MemoryGateway
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		store: &fakeStore{agents: map[string]Agent{
			"seller-centro": {ID: "seller-centro", Role: RoleSeller, StoreID: "centro", ZoneID: "capital", Status: AvailabilityAvailable, MaxConversations: 5},
			"seller-norte":  {ID: "seller-norte", Role: RoleSeller, StoreID: "norte", ZoneID: "gba_norte", Status: AvailabilityAvailable, MaxConversations: 5},
			"super-capital": {ID: "super-capital", Role: RoleZoneSupervisor, ZoneID: "capital", Status: AvailabilityAvailable, MaxConversations: 5},
			"regional":      {ID: "regional", Role: RoleRegionalManager, Status: AvailabilityAvailable, MaxConversations: 5},
		}},
		convs: &fakeConvReader{convs: map[string]conversation.Conversation{
			"conv-centro": {ID: "conv-centro", CustomerID: "cust-1", Status: conversation.StatusWaiting, StoreID: "centro", ZoneID: "capital"},
			"conv-owned":  {ID: "conv-owned", CustomerID: "cust-2", Status: conversation.StatusAssigned, StoreID: "centro", ZoneID: "capital", AssignedAgentID: "seller-centro"},
		}},
		messages: &fakeMessages{},
		gateway:  messaging.NewMemoryGateway(),
	}
	f.service = NewService(ServiceDeps{
		Store:     f.store,
		Convs:     f.convs,
		Customers: fakeCustomerReader{},
		Messages:  f.messages,
		Gateway:   f.gateway,
	})
	return f
}

func TestClaim(t *testing.T) {
	f := newServiceFixture(t)

	if err := f.service.Claim(context.Background(), "seller-centro", "conv-centro"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(f.store.assigned) != 1 {
		t.Fatalf("assigned = %v", f.store.assigned)
	}
}

func TestClaimOutsideStoreForbidden(t *testing.T) {
	f := newServiceFixture(t)

	err := f.service.Claim(context.Background(), "seller-norte", "conv-centro")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if len(f.store.assigned) != 0 {
		t.Error("forbidden claim must not reach the repository")
	}
}

func TestClaimPropagatesCapacityError(t *testing.T) {
	f := newServiceFixture(t)
	f.store.assignErr = ErrAgentUnavailable

	err := f.service.Claim(context.Background(), "seller-centro", "conv-centro")
	if !errors.Is(err, ErrAgentUnavailable) {
		t.Fatalf("err = %v, want ErrAgentUnavailable", err)
	}
}

func TestSendMessageByAssignee(t *testing.T) {
	f := newServiceFixture(t)

	if err := f.service.SendMessage(context.Background(), "seller-centro", "conv-owned", "ya te envío la cotización"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(f.gateway.Sent) != 1 || f.gateway.Sent[0].To != "+549351000111" {
		t.Errorf("sent = %+v", f.gateway.Sent)
	}
	if len(f.messages.appended) != 1 || f.messages.appended[0].Author != "seller-centro" {
		t.Errorf("logged = %+v", f.messages.appended)
	}
}

func TestSendMessageByOtherSellerForbidden(t *testing.T) {
	f := newServiceFixture(t)
	f.store.agents["seller-centro-2"] = Agent{ID: "seller-centro-2", Role: RoleSeller, StoreID: "centro"}

	err := f.service.SendMessage(context.Background(), "seller-centro-2", "conv-owned", "hola")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if len(f.gateway.Sent) != 0 {
		t.Error("forbidden send must not reach the gateway")
	}
}

func TestSendMessageFailedDeliveryNotLogged(t *testing.T) {
	f := newServiceFixture(t)
	f.gateway.Err = errors.New("gateway down")

	if err := f.service.SendMessage(context.Background(), "seller-centro", "conv-owned", "hola"); err == nil {
		t.Fatal("expected delivery error")
	}
	if len(f.messages.appended) != 0 {
		t.Error("undelivered message must not be logged")
	}
}

func TestWaitingUsesRoleScope(t *testing.T) {
	f := newServiceFixture(t)

	if _, err := f.service.Waiting(context.Background(), "seller-centro"); err != nil {
		t.Fatalf("Waiting: %v", err)
	}
	if f.store.lastScope != (ListScope{StoreID: "centro"}) {
		t.Errorf("seller scope = %+v, want store centro", f.store.lastScope)
	}

	if _, err := f.service.Waiting(context.Background(), "super-capital"); err != nil {
		t.Fatalf("Waiting: %v", err)
	}
	if f.store.lastScope != (ListScope{ZoneID: "capital"}) {
		t.Errorf("supervisor scope = %+v, want zone capital", f.store.lastScope)
	}

	if _, err := f.service.Waiting(context.Background(), "regional"); err != nil {
		t.Fatalf("Waiting: %v", err)
	}
	if f.store.lastScope != (ListScope{}) {
		t.Errorf("regional scope = %+v, want unrestricted", f.store.lastScope)
	}
}

func TestHistoryDeniedToPeerSeller(t *testing.T) {
	f := newServiceFixture(t)
	f.store.agents["seller-centro-2"] = Agent{ID: "seller-centro-2", Role: RoleSeller, StoreID: "centro", ZoneID: "capital"}

	if _, err := f.service.History(context.Background(), "seller-centro", "conv-owned"); err != nil {
		t.Fatalf("assignee history: %v", err)
	}

	_, err := f.service.History(context.Background(), "seller-centro-2", "conv-owned")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestAgentConversations(t *testing.T) {
	f := newServiceFixture(t)
	f.store.all = []conversation.Conversation{
		{ID: "conv-owned", Status: conversation.StatusAssigned, AssignedAgentID: "seller-centro"},
		{ID: "conv-other", Status: conversation.StatusAssigned, AssignedAgentID: "seller-norte"},
	}

	convs, err := f.service.AgentConversations(context.Background(), "seller-centro")
	if err != nil {
		t.Fatalf("AgentConversations: %v", err)
	}
	if len(convs) != 1 || convs[0].ID != "conv-owned" {
		t.Errorf("convs = %+v, want only own assignment", convs)
	}
	if f.store.lastAssignee != "seller-centro" {
		t.Errorf("assignee filter = %q", f.store.lastAssignee)
	}
}

func TestAllConversationsRequiresManager(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.AllConversations(context.Background(), "seller-centro")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if f.store.listAllCalled {
		t.Error("forbidden listing must not reach the repository")
	}

	if _, err := f.service.AllConversations(context.Background(), "super-capital"); err != nil {
		t.Fatalf("AllConversations: %v", err)
	}
	if f.store.lastScope != (ListScope{ZoneID: "capital"}) {
		t.Errorf("supervisor scope = %+v, want zone capital", f.store.lastScope)
	}
}

func TestSetAvailabilitySupervisionRules(t *testing.T) {
	f := newServiceFixture(t)

	if err := f.service.SetAvailability(context.Background(), "seller-centro", "seller-centro", AvailabilityOffline); err != nil {
		t.Errorf("self availability change: %v", err)
	}
	err := f.service.SetAvailability(context.Background(), "seller-centro", "seller-norte", AvailabilityOffline)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
	if err := f.service.SetAvailability(context.Background(), "regional", "seller-norte", AvailabilityOffline); err != nil {
		t.Errorf("regional manages everyone: %v", err)
	}
}
