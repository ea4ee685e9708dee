package agents

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tiendatec/chat-platform/internal/conversation"
	"github.com/tiendatec/chat-platform/internal/customers"
	"github.com/tiendatec/chat-platform/internal/messaging"
	"github.com/tiendatec/chat-platform/internal/observability/metrics"
	"github.com/tiendatec/chat-platform/pkg/logging"
)

var serviceTracer = otel.Tracer("chatplatform/agents-service")

// ErrForbidden is returned when the role rules deny an action.
var ErrForbidden = errors.New("agents: action not allowed for this agent")

// Store is the persistence surface the service needs; *Repository satisfies
// it.
type Store interface {
	GetByID(ctx context.Context, id string) (Agent, error)
	Assign(ctx context.Context, conversationID, agentID string) error
	Resolve(ctx context.Context, conversationID, agentID string) error
	TransferToBot(ctx context.Context, conversationID, agentID string) error
	SetAvailability(ctx context.Context, agentID string, status Availability) error
	ListWaiting(ctx context.Context, scope ListScope) ([]conversation.Conversation, error)
	ListAssignedTo(ctx context.Context, agentID string) ([]conversation.Conversation, error)
	ListAll(ctx context.Context, scope ListScope) ([]conversation.Conversation, error)
}

// ConversationReader loads conversations for permission checks.
type ConversationReader interface {
	GetByID(ctx context.Context, id string) (conversation.Conversation, error)
}

// CustomerReader resolves customer ids to phone numbers for outbound sends.
type CustomerReader interface {
	GetByID(ctx context.Context, id string) (customers.Customer, error)
}

// MessageLog is the durable message record.
type MessageLog interface {
	Append(ctx context.Context, msg conversation.Message) (conversation.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]conversation.Message, error)
}

// Notifier fans agent-side events out to connected operator screens.
type Notifier interface {
	ConversationAssigned(ctx context.Context, conv conversation.Conversation, agent Agent)
	ConversationResolved(ctx context.Context, conv conversation.Conversation)
	AgentMessage(ctx context.Context, conv conversation.Conversation, agent Agent, body string)
}

// Service implements the operator actions on conversations.
type Service struct {
	store      Store
	convs      ConversationReader
	customers  CustomerReader
	messages   MessageLog
	transcript *conversation.TranscriptStore
	gateway    messaging.Gateway
	notifier   Notifier
	metrics    *metrics.ChatMetrics
	logger     *logging.Logger
}

// ServiceDeps wires a Service. Transcript, notifier and metrics are optional.
type ServiceDeps struct {
	Store      Store
	Convs      ConversationReader
	Customers  CustomerReader
	Messages   MessageLog
	Transcript *conversation.TranscriptStore
	Gateway    messaging.Gateway
	Notifier   Notifier
	Metrics    *metrics.ChatMetrics
	Logger     *logging.Logger
}

// NewService creates the agent action service.
func NewService(deps ServiceDeps) *Service {
	if deps.Store == nil {
		panic("agents: store required")
	}
	if deps.Convs == nil {
		panic("agents: conversation reader required")
	}
	if deps.Customers == nil {
		panic("agents: customer reader required")
	}
	if deps.Messages == nil {
		panic("agents: message log required")
	}
	if deps.Gateway == nil {
		panic("agents: gateway required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Service{
		store:      deps.Store,
		convs:      deps.Convs,
		customers:  deps.Customers,
		messages:   deps.Messages,
		transcript: deps.Transcript,
		gateway:    deps.Gateway,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Claim assigns a waiting conversation to the agent.
func (s *Service) Claim(ctx context.Context, agentID, conversationID string) error {
	ctx, span := serviceTracer.Start(ctx, "agents.claim")
	defer span.End()
	span.SetAttributes(
		attribute.String("agent.id", agentID),
		attribute.String("conversation.id", conversationID),
	)

	agent, err := s.store.GetByID(ctx, agentID)
	if err != nil {
		return err
	}
	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !CanViewConversation(agent, conv) {
		return ErrForbidden
	}

	if err := s.store.Assign(ctx, conversationID, agentID); err != nil {
		span.RecordError(err)
		return err
	}

	s.metrics.RecordAssignment()
	conv.Status = conversation.StatusAssigned
	conv.AssignedAgentID = agentID
	if s.notifier != nil {
		s.notifier.ConversationAssigned(ctx, conv, agent)
	}
	s.logger.Info("conversation assigned", "conversation_id", conversationID, "agent_id", agentID)
	return nil
}

// Resolve closes a conversation the agent owns.
func (s *Service) Resolve(ctx context.Context, agentID, conversationID string) error {
	ctx, span := serviceTracer.Start(ctx, "agents.resolve")
	defer span.End()

	if err := s.store.Resolve(ctx, conversationID, agentID); err != nil {
		span.RecordError(err)
		return err
	}

	s.metrics.RecordResolution()
	if s.notifier != nil {
		conv, err := s.convs.GetByID(ctx, conversationID)
		if err == nil {
			s.notifier.ConversationResolved(ctx, conv)
		}
	}
	s.logger.Info("conversation resolved", "conversation_id", conversationID, "agent_id", agentID)
	return nil
}

// ReturnToBot hands a conversation the agent owns back to the dialogue
// engine.
func (s *Service) ReturnToBot(ctx context.Context, agentID, conversationID string) error {
	ctx, span := serviceTracer.Start(ctx, "agents.return_to_bot")
	defer span.End()

	if err := s.store.TransferToBot(ctx, conversationID, agentID); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("conversation returned to bot", "conversation_id", conversationID, "agent_id", agentID)
	return nil
}

// SendMessage delivers an agent's reply to the customer and records it.
func (s *Service) SendMessage(ctx context.Context, agentID, conversationID, body string) error {
	ctx, span := serviceTracer.Start(ctx, "agents.send_message")
	defer span.End()

	if body == "" {
		return errors.New("agents: empty message")
	}

	agent, err := s.store.GetByID(ctx, agentID)
	if err != nil {
		return err
	}
	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Status != conversation.StatusAssigned {
		return fmt.Errorf("agents: conversation %s is not assigned", conversationID)
	}
	if !CanActOnConversation(agent, conv) {
		return ErrForbidden
	}

	customer, err := s.customers.GetByID(ctx, conv.CustomerID)
	if err != nil {
		return err
	}

	if _, err := s.gateway.Send(ctx, customer.Phone, messaging.Content{Kind: "text", Text: body}); err != nil {
		s.metrics.RecordDeliveryFailure()
		span.RecordError(err)
		return fmt.Errorf("agents: deliver message: %w", err)
	}

	stored, err := s.messages.Append(ctx, conversation.Message{
		ConversationID: conversationID,
		Direction:      conversation.DirectionOutbound,
		Author:         agentID,
		Body:           body,
		Kind:           "text",
	})
	if err != nil {
		s.logger.Error("failed to persist agent message", "error", err, "conversation_id", conversationID)
	}
	if err := s.transcript.Append(ctx, conversationID, conversation.TranscriptEntry{
		ID:     stored.ID,
		Author: agentID,
		Body:   body,
		Kind:   "text",
	}); err != nil {
		s.logger.Warn("failed to cache agent message", "error", err, "conversation_id", conversationID)
	}

	if s.notifier != nil {
		s.notifier.AgentMessage(ctx, conv, agent, body)
	}
	return nil
}

// Waiting lists the handoff queue visible to the agent.
func (s *Service) Waiting(ctx context.Context, agentID string) ([]conversation.Conversation, error) {
	agent, err := s.store.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return s.store.ListWaiting(ctx, listScope(agent))
}

// AgentConversations lists the conversations currently assigned to the agent.
func (s *Service) AgentConversations(ctx context.Context, agentID string) ([]conversation.Conversation, error) {
	if _, err := s.store.GetByID(ctx, agentID); err != nil {
		return nil, err
	}
	return s.store.ListAssignedTo(ctx, agentID)
}

// AllConversations lists every conversation in the agent's scope. Sellers get
// ErrForbidden; they only work their own queue.
func (s *Service) AllConversations(ctx context.Context, agentID string) ([]conversation.Conversation, error) {
	agent, err := s.store.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.Role.AtLeast(RoleManager) {
		return nil, ErrForbidden
	}
	return s.store.ListAll(ctx, listScope(agent))
}

// History returns the durable message log for a conversation the agent may
// see.
func (s *Service) History(ctx context.Context, agentID, conversationID string) ([]conversation.Message, error) {
	agent, err := s.store.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !CanViewConversation(agent, conv) {
		return nil, ErrForbidden
	}
	return s.messages.ListByConversation(ctx, conversationID)
}

// SetAvailability changes an agent's availability, subject to supervision
// rules when the actor is not the target.
func (s *Service) SetAvailability(ctx context.Context, actorID, targetID string, status Availability) error {
	actor, err := s.store.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	target := actor
	if actorID != targetID {
		target, err = s.store.GetByID(ctx, targetID)
		if err != nil {
			return err
		}
	}
	if !CanSupervise(actor, target) {
		return ErrForbidden
	}
	return s.store.SetAvailability(ctx, targetID, status)
}
