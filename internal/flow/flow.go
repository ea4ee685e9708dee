// Package flow runs declarative multi-step dialogues. A Definition is a set
// of named steps; the engine advances a per-conversation State through them
// one inbound reply at a time.
package flow

import "time"

// Reserved step identifiers a Next resolution may return instead of a real
// step name.
const (
	// StepEnd completes the flow and clears its state.
	StepEnd = "__end__"
	// StepTransfer completes the flow and hands the conversation to a human.
	StepTransfer = "__transfer__"
)

// PromptKind is the shape of an outbound prompt.
type PromptKind string

const (
	PromptText   PromptKind = "text"
	PromptButton PromptKind = "button"
	PromptList   PromptKind = "list"
)

// MaxButtons and MaxListItems are channel limits for interactive prompts.
const (
	MaxButtons   = 3
	MaxListItems = 10
)

// Option is one selectable entry in a button or list prompt.
type Option struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Prompt is a message the flow sends to the customer.
type Prompt struct {
	Kind    PromptKind `json:"kind"`
	Text    string     `json:"text"`
	Options []Option   `json:"options,omitempty"`
}

// TextPrompt builds a plain text prompt.
func TextPrompt(text string) Prompt {
	return Prompt{Kind: PromptText, Text: text}
}

// ButtonPrompt builds a button prompt; options beyond the channel limit are
// dropped.
func ButtonPrompt(text string, options ...Option) Prompt {
	if len(options) > MaxButtons {
		options = options[:MaxButtons]
	}
	return Prompt{Kind: PromptButton, Text: text, Options: options}
}

// ListPrompt builds a list prompt; options beyond the channel limit are
// dropped.
func ListPrompt(text string, options ...Option) Prompt {
	if len(options) > MaxListItems {
		options = options[:MaxListItems]
	}
	return Prompt{Kind: PromptList, Text: text, Options: options}
}

// ReplyKind is the shape of an inbound customer reply.
type ReplyKind string

const (
	// ReplyAny accepts any reply shape.
	ReplyAny    ReplyKind = "any"
	ReplyText   ReplyKind = "text"
	ReplyButton ReplyKind = "button"
	ReplyList   ReplyKind = "list"
)

// Reply is a customer's answer to the current step. OptionID is set only for
// button and list replies; Text always carries what the customer typed or the
// title of the option they tapped.
type Reply struct {
	Kind     ReplyKind
	Text     string
	OptionID string
}

// Value returns what the step stores for this reply: the option id when one
// was selected, the raw text otherwise.
func (r Reply) Value() string {
	if r.OptionID != "" {
		return r.OptionID
	}
	return r.Text
}

// Next resolves the step that follows once a reply is accepted. Exactly one
// field is set.
type Next struct {
	fixed string
	fn    func(State, Reply) string
}

// NextFixed always advances to the given step.
func NextFixed(stepID string) Next {
	return Next{fixed: stepID}
}

// NextFunc picks the following step from the accepted reply.
func NextFunc(fn func(State, Reply) string) Next {
	return Next{fn: fn}
}

func (n Next) resolve(st State, reply Reply) string {
	if n.fn != nil {
		return n.fn(st, reply)
	}
	return n.fixed
}

// Step is one node in a flow. Prompt renders the outbound message for the
// step, Expect gates the reply shape, Validate (optional) rejects bad input
// with a customer-facing message, SaveAs (optional) stores the accepted value
// in the flow data, and Complete (optional) renders the closing message when
// Next resolves to StepEnd.
type Step struct {
	ID       string
	Prompt   func(State) Prompt
	Expect   ReplyKind
	Validate func(State, Reply) (string, error)
	SaveAs   string
	Next     Next
	Complete func(State) Prompt
}

// Definition is a complete flow.
type Definition struct {
	ID      string
	Entry   string
	Timeout time.Duration
	Steps   map[string]Step

	// CancelMessage is sent when the customer abandons the flow.
	CancelMessage string
	// TransferMessage is sent before handing the conversation to a human.
	TransferMessage string
	// MismatchMessage re-prompts when the reply shape does not match the step.
	MismatchMessage string
}

// State is the persisted position of one conversation inside a flow.
type State struct {
	Type      string            `json:"type"`
	Step      string            `json:"step"`
	Data      map[string]string `json:"data"`
	StartedAt time.Time         `json:"started_at"`
}

// withValue returns a copy of the state with one data entry replaced. The
// original map is never mutated so callers can keep the prior state for
// rollback on delivery failure.
func (s State) withValue(key, value string) State {
	data := make(map[string]string, len(s.Data)+1)
	for k, v := range s.Data {
		data[k] = v
	}
	data[key] = value
	s.Data = data
	return s
}
