package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tiendatec/chat-platform/internal/textnorm"
	"github.com/tiendatec/chat-platform/pkg/logging"
)

var engineTracer = otel.Tracer("chatplatform/flow-engine")

// Outcome is what a processed reply did to the flow.
type Outcome string

const (
	// OutcomeContinue keeps the flow active; Result.State is the new position.
	OutcomeContinue Outcome = "continue"
	// OutcomeCompleted finished the flow; its state must be cleared.
	OutcomeCompleted Outcome = "completed"
	// OutcomeTransfer finished the flow and requests a human handoff.
	OutcomeTransfer Outcome = "transfer"
	// OutcomeCancelled means the customer abandoned the flow.
	OutcomeCancelled Outcome = "cancelled"
)

// Result is the effect of one processed reply.
type Result struct {
	Outcome Outcome
	State   State
	Prompts []Prompt
}

// completedFallback closes a flow when no step supplies its own farewell, so
// the customer never gets silence when the flow ends.
const completedFallback = "¡Listo! Si necesitás algo más, escribime."

// cancelWords abandon any flow from any step, before the step logic runs.
var cancelWords = []string{
	"cancelar", "cancela", "cancelo", "salir", "basta", "olvidalo",
	"dejalo", "menu", "volver",
}

// Engine advances flow states. It is stateless; persistence is the caller's
// concern.
type Engine struct {
	registry *Registry
	logger   *logging.Logger
	now      func() time.Time
}

// NewEngine creates a flow engine over the given registry.
func NewEngine(registry *Registry, logger *logging.Logger) *Engine {
	if registry == nil {
		panic("flow: registry required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{registry: registry, logger: logger, now: time.Now}
}

// Start begins a flow and returns its initial state and entry prompt.
func (e *Engine) Start(ctx context.Context, flowType string) (State, Prompt, error) {
	_, span := engineTracer.Start(ctx, "flow.start")
	defer span.End()
	span.SetAttributes(attribute.String("flow.type", flowType))

	def, ok := e.registry.Get(flowType)
	if !ok {
		return State{}, Prompt{}, fmt.Errorf("flow: unknown flow type %q", flowType)
	}

	st := State{
		Type:      flowType,
		Step:      def.Entry,
		Data:      map[string]string{},
		StartedAt: e.now(),
	}
	entry := def.Steps[def.Entry]
	return st, entry.Prompt(st), nil
}

// Expired reports whether the state has outlived its flow's timeout. Expiry
// is lazy: nothing fires at the deadline, the check happens when the next
// message arrives.
func (e *Engine) Expired(st State) bool {
	def, ok := e.registry.Get(st.Type)
	if !ok {
		return true
	}
	return e.now().Sub(st.StartedAt) > def.Timeout
}

// Process applies one customer reply to the current state. Cancellation
// vocabulary wins over every step rule. A reply of the wrong shape or one
// that fails validation re-prompts the same step without changing state.
func (e *Engine) Process(ctx context.Context, st State, reply Reply) (Result, error) {
	_, span := engineTracer.Start(ctx, "flow.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("flow.type", st.Type),
		attribute.String("flow.step", st.Step),
	)

	def, ok := e.registry.Get(st.Type)
	if !ok {
		return Result{}, fmt.Errorf("flow: unknown flow type %q", st.Type)
	}

	if isCancellation(reply) {
		span.SetAttributes(attribute.String("flow.outcome", string(OutcomeCancelled)))
		return Result{
			Outcome: OutcomeCancelled,
			Prompts: []Prompt{TextPrompt(def.CancelMessage)},
		}, nil
	}

	step, ok := def.Steps[st.Step]
	if !ok {
		// Corrupt or outdated state. Close the flow rather than trap the
		// customer in a step that no longer exists.
		e.logger.Error("flow state references unknown step", "flow", st.Type, "step", st.Step)
		span.SetAttributes(attribute.String("flow.outcome", string(OutcomeCompleted)))
		return Result{
			Outcome: OutcomeCompleted,
			Prompts: []Prompt{TextPrompt(completedFallback)},
		}, nil
	}

	if step.Expect != ReplyAny && step.Expect != "" && reply.Kind != step.Expect {
		return Result{
			Outcome: OutcomeContinue,
			State:   st,
			Prompts: []Prompt{TextPrompt(def.MismatchMessage), step.Prompt(st)},
		}, nil
	}

	value := reply.Value()
	if step.Validate != nil {
		v, err := step.Validate(st, reply)
		if err != nil {
			return Result{
				Outcome: OutcomeContinue,
				State:   st,
				Prompts: []Prompt{TextPrompt(err.Error()), step.Prompt(st)},
			}, nil
		}
		value = v
	}

	if step.SaveAs != "" {
		st = st.withValue(step.SaveAs, value)
	}

	next := step.Next.resolve(st, reply)
	switch next {
	case StepEnd:
		span.SetAttributes(attribute.String("flow.outcome", string(OutcomeCompleted)))
		res := Result{Outcome: OutcomeCompleted, State: st}
		if step.Complete != nil {
			res.Prompts = []Prompt{step.Complete(st)}
		} else {
			res.Prompts = []Prompt{TextPrompt(completedFallback)}
		}
		return res, nil
	case StepTransfer:
		span.SetAttributes(attribute.String("flow.outcome", string(OutcomeTransfer)))
		return Result{
			Outcome: OutcomeTransfer,
			State:   st,
			Prompts: []Prompt{TextPrompt(def.TransferMessage)},
		}, nil
	}

	nextStep, ok := def.Steps[next]
	if !ok {
		e.logger.Error("flow step resolved to unknown successor", "flow", st.Type, "step", st.Step, "next", next)
		span.SetAttributes(attribute.String("flow.outcome", string(OutcomeCompleted)))
		return Result{
			Outcome: OutcomeCompleted,
			State:   st,
			Prompts: []Prompt{TextPrompt(completedFallback)},
		}, nil
	}

	st.Step = next
	span.SetAttributes(attribute.String("flow.outcome", string(OutcomeContinue)))
	return Result{
		Outcome: OutcomeContinue,
		State:   st,
		Prompts: []Prompt{nextStep.Prompt(st)},
	}, nil
}

// isCancellation matches whole words or a leading cancel word in either the
// typed text or a tapped option id.
func isCancellation(reply Reply) bool {
	candidates := []string{reply.Text, reply.OptionID}
	for _, c := range candidates {
		normalized := textnorm.Normalize(c)
		if normalized == "" {
			continue
		}
		for _, w := range cancelWords {
			if normalized == w || strings.HasPrefix(normalized, w+" ") {
				return true
			}
		}
	}
	return false
}
