package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tiendatec/chat-platform/internal/autoresponse"
	"github.com/tiendatec/chat-platform/internal/customers"
	"github.com/tiendatec/chat-platform/internal/flow"
	"github.com/tiendatec/chat-platform/internal/intent"
	"github.com/tiendatec/chat-platform/internal/messaging"
	"github.com/tiendatec/chat-platform/internal/observability/metrics"
	"github.com/tiendatec/chat-platform/internal/stores"
	"github.com/tiendatec/chat-platform/pkg/logging"
)

var botTracer = otel.Tracer("chatplatform/conversation-bot")

// Canned replies for the intents that need no flow.
const (
	replyGreeting = "¡Hola! Soy el asistente de TiendaTec. Puedo cotizarte productos o " +
		"darte información de sucursales, envíos y pagos. Contame qué necesitás."
	replyThanks   = "¡De nada! Cualquier otra consulta, escribime."
	replyFarewell = "¡Gracias por escribirnos! Que tengas un buen día."
	replyComplaint = "Lamento el inconveniente. Ya derivé tu caso a un asesor para que " +
		"lo revise, en breve te contacta por acá."
	replyExpired  = "Pasó un rato desde tu última respuesta, así que cerré el trámite anterior."
	replyFallback = "Perdón, no te entendí. Podés pedirme una cotización o información " +
		"sobre sucursales, envíos y pagos."
)

// CustomerDirectory resolves inbound phone numbers to customers.
type CustomerDirectory interface {
	GetOrCreate(ctx context.Context, phone, name string) (customers.Customer, error)
}

// SessionStore is the conversation persistence the bot needs.
type SessionStore interface {
	GetActiveByCustomer(ctx context.Context, customerID string) (Conversation, error)
	Create(ctx context.Context, customerID string) (Conversation, error)
	SaveFlowState(ctx context.Context, conversationID string, state *flow.State) error
	SetStatus(ctx context.Context, conversationID string, status Status) error
	SetStore(ctx context.Context, conversationID, storeID, zoneID string) error
}

// MessageLog is the durable message record.
type MessageLog interface {
	Append(ctx context.Context, msg Message) (Message, error)
}

// Responder answers from the auto-response rule set.
type Responder interface {
	FindMatch(ctx context.Context, text string) (autoresponse.Match, bool)
}

// Notifier fans conversation events out to agents. Implementations must not
// block message handling.
type Notifier interface {
	CustomerMessage(ctx context.Context, conv Conversation, body string)
	ConversationWaiting(ctx context.Context, conv Conversation)
	ConversationResolved(ctx context.Context, conv Conversation)
}

// Response summarizes what one inbound message produced.
type Response struct {
	ConversationID string
	CustomerID     string
	Prompts        []flow.Prompt
	Handoff        bool
	Resolved       bool
}

// BotService runs the automated side of a conversation: flow turns first,
// then intent rules, then auto-responses, then a generic fallback reply.
type BotService struct {
	directory  CustomerDirectory
	store      SessionStore
	messages   MessageLog
	transcript *TranscriptStore
	engine     *flow.Engine
	classifier *intent.Classifier
	responder  Responder
	gateway    messaging.Gateway
	notifier   Notifier
	metrics    *metrics.ChatMetrics
	logger     *logging.Logger
	now        func() time.Time
}

// BotServiceDeps wires a BotService. Transcript, responder, notifier and
// metrics are optional.
type BotServiceDeps struct {
	Directory  CustomerDirectory
	Store      SessionStore
	Messages   MessageLog
	Transcript *TranscriptStore
	Engine     *flow.Engine
	Classifier *intent.Classifier
	Responder  Responder
	Gateway    messaging.Gateway
	Notifier   Notifier
	Metrics    *metrics.ChatMetrics
	Logger     *logging.Logger
}

// NewBotService creates the bot pipeline.
func NewBotService(deps BotServiceDeps) *BotService {
	if deps.Directory == nil {
		panic("conversation: customer directory required")
	}
	if deps.Store == nil {
		panic("conversation: session store required")
	}
	if deps.Messages == nil {
		panic("conversation: message log required")
	}
	if deps.Engine == nil {
		panic("conversation: flow engine required")
	}
	if deps.Classifier == nil {
		panic("conversation: classifier required")
	}
	if deps.Gateway == nil {
		panic("conversation: gateway required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &BotService{
		directory:  deps.Directory,
		store:      deps.Store,
		messages:   deps.Messages,
		transcript: deps.Transcript,
		engine:     deps.Engine,
		classifier: deps.Classifier,
		responder:  deps.Responder,
		gateway:    deps.Gateway,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// turnPlan is everything one inbound message decided, applied only after the
// outbound prompts were delivered. A failed delivery leaves the conversation
// exactly as it was so the customer can retry the same message.
type turnPlan struct {
	prompts    []flow.Prompt
	saveState  *flow.State
	clearState bool
	setStatus  Status
	storeID    string
	handoff    bool
	resolve    bool
}

// HandleInbound processes one customer message end to end.
func (s *BotService) HandleInbound(ctx context.Context, in messaging.Inbound) (*Response, error) {
	ctx, span := botTracer.Start(ctx, "conversation.handle_inbound")
	defer span.End()
	started := s.now()

	customer, err := s.directory.GetOrCreate(ctx, in.Phone, in.Name)
	if err != nil {
		return nil, err
	}

	conv, err := s.store.GetActiveByCustomer(ctx, customer.ID)
	if errors.Is(err, ErrNotFound) {
		conv, err = s.store.Create(ctx, customer.ID)
	}
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("conversation.id", conv.ID),
		attribute.String("conversation.status", string(conv.Status)),
	)
	s.metrics.RecordInbound(string(conv.Status))

	s.recordMessage(ctx, conv.ID, Message{
		ConversationID: conv.ID,
		Direction:      DirectionInbound,
		Author:         "customer",
		Body:           in.Text,
		Kind:           in.Kind,
	})

	// A human owns the conversation: log, notify, stay silent.
	if conv.Status == StatusWaiting || conv.Status == StatusAssigned {
		if s.notifier != nil {
			s.notifier.CustomerMessage(ctx, conv, in.Text)
		}
		return &Response{ConversationID: conv.ID, CustomerID: customer.ID}, nil
	}

	plan, err := s.decide(ctx, conv, toReply(in))
	if err != nil {
		return nil, err
	}

	resp, err := s.apply(ctx, customer, conv, plan)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveProcessing(s.now().Sub(started).Seconds())
	return resp, nil
}

// decide runs the pipeline and returns the plan for this turn.
func (s *BotService) decide(ctx context.Context, conv Conversation, reply flow.Reply) (turnPlan, error) {
	var notice []flow.Prompt

	if conv.Flow != nil {
		if !s.engine.Expired(*conv.Flow) {
			return s.decideFlowTurn(ctx, conv, reply)
		}
		// Lazy expiry: drop the stale flow and treat this message as fresh.
		s.metrics.RecordFlowFinished(conv.Flow.Type, "expired")
		conv.Flow = nil
		notice = append(notice, flow.TextPrompt(replyExpired))
	}

	plan, err := s.decideFreshMessage(ctx, conv, reply)
	if err != nil {
		return turnPlan{}, err
	}
	plan.prompts = append(notice, plan.prompts...)
	if len(notice) > 0 && plan.saveState == nil {
		plan.clearState = true
	}
	return plan, nil
}

func (s *BotService) decideFlowTurn(ctx context.Context, conv Conversation, reply flow.Reply) (turnPlan, error) {
	result, err := s.engine.Process(ctx, *conv.Flow, reply)
	if err != nil {
		return turnPlan{}, err
	}

	plan := turnPlan{prompts: result.Prompts}
	switch result.Outcome {
	case flow.OutcomeContinue:
		st := result.State
		plan.saveState = &st
	case flow.OutcomeCompleted:
		plan.clearState = true
		s.metrics.RecordFlowFinished(conv.Flow.Type, "completed")
		if conv.Flow.Type == flow.FlowQuotation {
			plan.storeID = result.State.Data["store_id"]
		}
	case flow.OutcomeCancelled:
		plan.clearState = true
		s.metrics.RecordFlowFinished(conv.Flow.Type, "cancelled")
	case flow.OutcomeTransfer:
		plan.clearState = true
		plan.setStatus = StatusWaiting
		plan.handoff = true
		s.metrics.RecordFlowFinished(conv.Flow.Type, "transfer")
		s.metrics.RecordHandoff()
		if conv.Flow.Type == flow.FlowQuotation {
			plan.storeID = result.State.Data["store_id"]
		}
	}
	return plan, nil
}

func (s *BotService) decideFreshMessage(ctx context.Context, conv Conversation, reply flow.Reply) (turnPlan, error) {
	classification := s.classifier.Detect(ctx, reply.Text)
	s.metrics.RecordIntent(string(classification.Intent))

	switch classification.Intent {
	case intent.IntentGreeting:
		return turnPlan{prompts: []flow.Prompt{flow.TextPrompt(replyGreeting)}}, nil

	case intent.IntentThanks:
		return turnPlan{prompts: []flow.Prompt{flow.TextPrompt(replyThanks)}}, nil

	case intent.IntentFarewell:
		return turnPlan{
			prompts:   []flow.Prompt{flow.TextPrompt(replyFarewell)},
			setStatus: StatusResolved,
			resolve:   true,
		}, nil

	case intent.IntentComplaint:
		s.metrics.RecordHandoff()
		return turnPlan{
			prompts:   []flow.Prompt{flow.TextPrompt(replyComplaint)},
			setStatus: StatusWaiting,
			handoff:   true,
		}, nil

	case intent.IntentSaleInterest:
		return s.startFlow(ctx, flow.FlowQuotation, nil)

	case intent.IntentQuestion:
		// A recognized topic is answered from the static table; anything
		// else that still reads as a question gets the guided menu.
		if answer, ok := TopicAnswer(classification.Topic); ok {
			return turnPlan{prompts: []flow.Prompt{flow.TextPrompt(answer)}}, nil
		}
		return s.startFlow(ctx, flow.FlowInfoMenu, nil)
	}

	// No intent matched: the auto-response rules get a chance, then a plain
	// generic reply. No flow starts here.
	if s.responder != nil {
		if match, ok := s.responder.FindMatch(ctx, reply.Text); ok {
			s.metrics.RecordAutoResponseHit()
			return turnPlan{prompts: []flow.Prompt{flow.TextPrompt(match.Response)}}, nil
		}
	}

	return turnPlan{prompts: []flow.Prompt{flow.TextPrompt(replyFallback)}}, nil
}

func (s *BotService) startFlow(ctx context.Context, flowType string, intro []flow.Prompt) (turnPlan, error) {
	st, prompt, err := s.engine.Start(ctx, flowType)
	if err != nil {
		return turnPlan{}, err
	}
	s.metrics.RecordFlowStarted(flowType)
	return turnPlan{
		prompts:   append(intro, prompt),
		saveState: &st,
	}, nil
}

// apply delivers the prompts and only then persists the turn's effects.
func (s *BotService) apply(ctx context.Context, customer customers.Customer, conv Conversation, plan turnPlan) (*Response, error) {
	for _, prompt := range plan.prompts {
		if _, err := s.gateway.Send(ctx, customer.Phone, toContent(prompt)); err != nil {
			s.metrics.RecordDeliveryFailure()
			return nil, fmt.Errorf("conversation: deliver reply: %w", err)
		}
		s.metrics.RecordBotReply()
	}

	for _, prompt := range plan.prompts {
		s.recordMessage(ctx, conv.ID, Message{
			ConversationID: conv.ID,
			Direction:      DirectionOutbound,
			Author:         "bot",
			Body:           prompt.Text,
			Kind:           string(prompt.Kind),
		})
	}

	if plan.saveState != nil {
		if err := s.store.SaveFlowState(ctx, conv.ID, plan.saveState); err != nil {
			return nil, err
		}
	} else if plan.clearState {
		if err := s.store.SaveFlowState(ctx, conv.ID, nil); err != nil {
			return nil, err
		}
	}

	if plan.storeID != "" {
		if err := s.store.SetStore(ctx, conv.ID, plan.storeID, stores.ZoneFor(plan.storeID)); err != nil {
			return nil, err
		}
		conv.StoreID = plan.storeID
		conv.ZoneID = stores.ZoneFor(plan.storeID)
	}

	if plan.setStatus != "" {
		if err := s.store.SetStatus(ctx, conv.ID, plan.setStatus); err != nil {
			return nil, err
		}
		conv.Status = plan.setStatus
		if s.notifier != nil {
			switch plan.setStatus {
			case StatusWaiting:
				s.notifier.ConversationWaiting(ctx, conv)
			case StatusResolved:
				s.notifier.ConversationResolved(ctx, conv)
			}
		}
		if plan.resolve {
			s.metrics.RecordResolution()
		}
	}

	return &Response{
		ConversationID: conv.ID,
		CustomerID:     customer.ID,
		Prompts:        plan.prompts,
		Handoff:        plan.handoff,
		Resolved:       plan.resolve,
	}, nil
}

// recordMessage writes to the durable log and the transcript cache. Neither
// failure aborts the turn; the customer already has or will get the reply.
func (s *BotService) recordMessage(ctx context.Context, conversationID string, msg Message) {
	stored, err := s.messages.Append(ctx, msg)
	if err != nil {
		s.logger.Error("failed to persist message", "error", err, "conversation_id", conversationID)
		stored = msg
	}
	if err := s.transcript.Append(ctx, conversationID, TranscriptEntry{
		ID:     stored.ID,
		Author: msg.Author,
		Body:   msg.Body,
		Kind:   msg.Kind,
	}); err != nil {
		s.logger.Warn("failed to cache transcript entry", "error", err, "conversation_id", conversationID)
	}
}

func toReply(in messaging.Inbound) flow.Reply {
	kind := flow.ReplyText
	switch in.Kind {
	case "button":
		kind = flow.ReplyButton
	case "list":
		kind = flow.ReplyList
	}
	return flow.Reply{Kind: kind, Text: in.Text, OptionID: in.OptionID}
}

func toContent(prompt flow.Prompt) messaging.Content {
	content := messaging.Content{Kind: string(prompt.Kind), Text: prompt.Text}
	for _, opt := range prompt.Options {
		content.Options = append(content.Options, messaging.Option{ID: opt.ID, Title: opt.Title})
	}
	return content
}
