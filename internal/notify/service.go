package notify

import (
	"context"
	"fmt"

	"github.com/tiendatec/chat-platform/internal/agents"
	"github.com/tiendatec/chat-platform/internal/conversation"
	"github.com/tiendatec/chat-platform/pkg/logging"
)

// ManagerLookup lists the managers to email for a store and its zone;
// *agents.Repository satisfies it.
type ManagerLookup interface {
	ManagersFor(ctx context.Context, storeID, zoneID string) ([]agents.Agent, error)
}

// Service turns conversation events into websocket pushes and, for handoffs,
// manager emails. It satisfies both the bot's and the agent service's
// notifier interfaces.
type Service struct {
	hub      *Hub
	email    EmailSender
	managers ManagerLookup
	logger   *logging.Logger
}

// NewService creates the notification fan-out. Email and manager lookup are
// optional; without them handoffs only reach connected screens.
func NewService(hub *Hub, email EmailSender, managers ManagerLookup, logger *logging.Logger) *Service {
	if hub == nil {
		panic("notify: hub required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{hub: hub, email: email, managers: managers, logger: logger}
}

// CustomerMessage pushes a customer message on a human-owned conversation.
func (s *Service) CustomerMessage(_ context.Context, conv conversation.Conversation, body string) {
	s.hub.Broadcast(Event{
		Type:           EventCustomerMessage,
		ConversationID: conv.ID,
		CustomerID:     conv.CustomerID,
		StoreID:        conv.StoreID,
		ZoneID:         conv.ZoneID,
		AgentID:        conv.AssignedAgentID,
		Body:           body,
	})
}

// ConversationWaiting announces a handoff to screens and emails the store's
// managers so waiting customers are noticed even with no console open.
func (s *Service) ConversationWaiting(ctx context.Context, conv conversation.Conversation) {
	s.hub.Broadcast(Event{
		Type:           EventConversationWaiting,
		ConversationID: conv.ID,
		CustomerID:     conv.CustomerID,
		StoreID:        conv.StoreID,
		ZoneID:         conv.ZoneID,
	})

	if s.email == nil || s.managers == nil {
		return
	}
	recipients, err := s.managers.ManagersFor(ctx, conv.StoreID, conv.ZoneID)
	if err != nil {
		s.logger.Error("failed to list managers for handoff email", "error", err, "conversation_id", conv.ID)
		return
	}
	for _, manager := range recipients {
		if manager.Email == "" {
			continue
		}
		msg := EmailMessage{
			To:      manager.Email,
			ToName:  manager.Name,
			Subject: "Cliente esperando un asesor",
			Body: fmt.Sprintf("La conversación %s está esperando un asesor. "+
				"Ingresá a la consola para tomarla.", conv.ID),
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("handoff email failed", "error", err, "to", manager.Email)
		}
	}
}

// ConversationAssigned announces that an agent took a conversation.
func (s *Service) ConversationAssigned(_ context.Context, conv conversation.Conversation, agent agents.Agent) {
	s.hub.Broadcast(Event{
		Type:           EventConversationAssigned,
		ConversationID: conv.ID,
		CustomerID:     conv.CustomerID,
		StoreID:        conv.StoreID,
		ZoneID:         conv.ZoneID,
		AgentID:        agent.ID,
	})
}

// ConversationResolved announces a closed conversation.
func (s *Service) ConversationResolved(_ context.Context, conv conversation.Conversation) {
	s.hub.Broadcast(Event{
		Type:           EventConversationResolved,
		ConversationID: conv.ID,
		CustomerID:     conv.CustomerID,
		StoreID:        conv.StoreID,
		ZoneID:         conv.ZoneID,
	})
}

// AgentMessage mirrors an agent's outbound message to the other screens
// watching the conversation.
func (s *Service) AgentMessage(_ context.Context, conv conversation.Conversation, agent agents.Agent, body string) {
	s.hub.Broadcast(Event{
		Type:           EventAgentMessage,
		ConversationID: conv.ID,
		CustomerID:     conv.CustomerID,
		StoreID:        conv.StoreID,
		ZoneID:         conv.ZoneID,
		AgentID:        agent.ID,
		Body:           body,
	})
}
