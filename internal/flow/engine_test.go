package flow

import (
	"context"
	"testing"
	"time"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	registry := NewRegistry(
		NewQuotationFlow(30*time.Minute),
		NewInfoMenuFlow(15*time.Minute),
	)
	return NewEngine(registry, nil)
}

func listReply(id string) Reply   { return Reply{Kind: ReplyList, OptionID: id} }
func buttonReply(id string) Reply { return Reply{Kind: ReplyButton, OptionID: id} }
func textReply(text string) Reply { return Reply{Kind: ReplyText, Text: text} }

func TestQuotationHappyPath(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	st, prompt, err := e.Start(ctx, FlowQuotation)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if prompt.Kind != PromptList {
		t.Fatalf("entry prompt kind = %s, want list", prompt.Kind)
	}
	if st.Step != "product" {
		t.Fatalf("entry step = %q, want product", st.Step)
	}

	res, err := e.Process(ctx, st, listReply("porcelanato_60"))
	if err != nil {
		t.Fatalf("product step: %v", err)
	}
	if res.Outcome != OutcomeContinue || res.State.Step != "quantity" {
		t.Fatalf("after product: outcome=%s step=%s", res.Outcome, res.State.Step)
	}

	res, err = e.Process(ctx, res.State, textReply("25"))
	if err != nil {
		t.Fatalf("quantity step: %v", err)
	}
	if res.State.Step != "store" {
		t.Fatalf("after quantity: step=%s", res.State.Step)
	}
	if got := res.State.Data["quantity_m2"]; got != "25" {
		t.Errorf("quantity_m2 = %q, want 25", got)
	}

	res, err = e.Process(ctx, res.State, listReply("norte"))
	if err != nil {
		t.Fatalf("store step: %v", err)
	}
	if res.State.Step != "confirm" {
		t.Fatalf("after store: step=%s", res.State.Step)
	}
	if len(res.Prompts) != 1 || res.Prompts[0].Kind != PromptButton {
		t.Fatalf("confirm prompt = %+v, want one button prompt", res.Prompts)
	}

	res, err = e.Process(ctx, res.State, buttonReply("confirm"))
	if err != nil {
		t.Fatalf("confirm step: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", res.Outcome)
	}
	if res.State.Data["product_id"] != "porcelanato_60" ||
		res.State.Data["store_id"] != "norte" {
		t.Errorf("collected data = %v", res.State.Data)
	}
	if len(res.Prompts) != 1 || res.Prompts[0].Text == "" {
		t.Errorf("expected a closing message, got %+v", res.Prompts)
	}
}

func TestQuotationAdvisorTransfers(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	st, _, _ := e.Start(ctx, FlowQuotation)
	res, _ := e.Process(ctx, st, listReply("ceramica_45"))
	res, _ = e.Process(ctx, res.State, textReply("40"))
	res, _ = e.Process(ctx, res.State, listReply("centro"))

	res, err := e.Process(ctx, res.State, buttonReply("advisor"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != OutcomeTransfer {
		t.Fatalf("outcome = %s, want transfer", res.Outcome)
	}
	if res.State.Data["store_id"] != "centro" {
		t.Errorf("collected data must survive the transfer: %v", res.State.Data)
	}
}

func TestKindMismatchReprompts(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	st, _, _ := e.Start(ctx, FlowQuotation)
	res, err := e.Process(ctx, st, textReply("porcelanato por favor"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != OutcomeContinue {
		t.Fatalf("outcome = %s, want continue", res.Outcome)
	}
	if res.State.Step != "product" {
		t.Errorf("mismatch must not advance: step=%s", res.State.Step)
	}
	if len(res.Prompts) != 2 {
		t.Fatalf("want mismatch note plus re-prompt, got %d prompts", len(res.Prompts))
	}
	if res.Prompts[1].Kind != PromptList {
		t.Errorf("re-prompt kind = %s, want list", res.Prompts[1].Kind)
	}
}

func TestQuantityValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	st, _, _ := e.Start(ctx, FlowQuotation)
	res, _ := e.Process(ctx, st, listReply("guardas"))

	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{name: "not a number", input: "muchos", ok: false},
		{name: "zero", input: "0", ok: false},
		{name: "too large", input: "999999", ok: false},
		{name: "with unit", input: "30 m2", ok: true},
		{name: "plain", input: "30", ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Process(ctx, res.State, textReply(tt.input))
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			advanced := got.State.Step == "store"
			if advanced != tt.ok {
				t.Errorf("input %q advanced=%v, want %v", tt.input, advanced, tt.ok)
			}
			if !tt.ok && len(got.Prompts) != 2 {
				t.Errorf("rejection must send error plus re-prompt, got %d", len(got.Prompts))
			}
		})
	}
}

func TestCancellationWinsFromAnyStep(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	st, _, _ := e.Start(ctx, FlowQuotation)
	res, _ := e.Process(ctx, st, listReply("porcelanato_60"))

	for _, input := range []string{"cancelar", "CANCELAR", "salir", "olvidalo", "cancelar todo"} {
		got, err := e.Process(ctx, res.State, textReply(input))
		if err != nil {
			t.Fatalf("Process(%q): %v", input, err)
		}
		if got.Outcome != OutcomeCancelled {
			t.Errorf("input %q outcome = %s, want cancelled", input, got.Outcome)
		}
	}

	// The cancel button on the confirm step goes through the same vocabulary.
	got, _ := e.Process(ctx, res.State, buttonReply("cancelar"))
	if got.Outcome != OutcomeCancelled {
		t.Errorf("cancel button outcome = %s, want cancelled", got.Outcome)
	}
}

func TestCancellationDoesNotFireInsideWords(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	st, _, _ := e.Start(ctx, FlowQuotation)
	res, err := e.Process(ctx, st, textReply("quiero porcelanato para salir al patio"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome == OutcomeCancelled {
		t.Fatal("mid-sentence vocabulary must not cancel")
	}
}

func TestExpiryIsLazy(t *testing.T) {
	registry := NewRegistry(NewQuotationFlow(30 * time.Minute))
	e := NewEngine(registry, nil)

	started := time.Unix(1700000000, 0)
	e.now = func() time.Time { return started }

	st, _, err := e.Start(context.Background(), FlowQuotation)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	e.now = func() time.Time { return started.Add(29 * time.Minute) }
	if e.Expired(st) {
		t.Error("state inside the timeout must not be expired")
	}

	e.now = func() time.Time { return started.Add(30*time.Minute + time.Second) }
	if !e.Expired(st) {
		t.Error("state past the timeout must be expired")
	}
}

func TestInfoMenuAnswersAndTransfers(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	st, prompt, err := e.Start(ctx, FlowInfoMenu)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if prompt.Kind != PromptList || len(prompt.Options) != len(infoMenuOptions) {
		t.Fatalf("menu prompt = %+v", prompt)
	}

	res, err := e.Process(ctx, st, listReply("envios"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", res.Outcome)
	}
	if len(res.Prompts) != 1 || res.Prompts[0].Text != infoMenuAnswers["envios"] {
		t.Errorf("answer = %+v", res.Prompts)
	}

	st2, _, _ := e.Start(ctx, FlowInfoMenu)
	res, err = e.Process(ctx, st2, listReply("asesor"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != OutcomeTransfer {
		t.Fatalf("advisor outcome = %s, want transfer", res.Outcome)
	}
}

func TestUnknownStepClosesWithPrompt(t *testing.T) {
	e := newTestEngine(t)

	st := State{Type: FlowQuotation, Step: "renamed_away", Data: map[string]string{}, StartedAt: time.Now()}
	res, err := e.Process(context.Background(), st, textReply("hola"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", res.Outcome)
	}
	if len(res.Prompts) != 1 || res.Prompts[0].Text != completedFallback {
		t.Errorf("prompts = %+v, want the closing message", res.Prompts)
	}
}

func TestCompletionWithoutClosingStepStillReplies(t *testing.T) {
	def := &Definition{
		ID:      "oneshot",
		Entry:   "only",
		Timeout: time.Minute,
		Steps: map[string]Step{
			"only": {
				ID:     "only",
				Prompt: func(State) Prompt { return TextPrompt("decime algo") },
				Expect: ReplyText,
				Next:   NextFixed(StepEnd),
			},
		},
	}
	e := NewEngine(NewRegistry(def), nil)

	st, _, err := e.Start(context.Background(), "oneshot")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res, err := e.Process(context.Background(), st, textReply("listo"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", res.Outcome)
	}
	if len(res.Prompts) != 1 || res.Prompts[0].Text != completedFallback {
		t.Errorf("prompts = %+v, want the closing message", res.Prompts)
	}
}

func TestProcessIsDeterministic(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	st, _, _ := e.Start(ctx, FlowQuotation)
	first, err := e.Process(ctx, st, listReply("porcelanato_60"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := e.Process(ctx, st, listReply("porcelanato_60"))
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if got.Outcome != first.Outcome || got.State.Step != first.State.Step {
			t.Fatalf("iteration %d diverged: %+v vs %+v", i, got, first)
		}
	}
}

func TestRegistryRejectsMalformedDefinition(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for definition without entry step")
		}
	}()
	NewRegistry(&Definition{ID: "broken", Entry: "missing", Timeout: time.Minute})
}
