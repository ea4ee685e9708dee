// Package intent classifies free-text customer messages into a fixed set of
// intents using keyword rules over normalized text.
package intent

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tiendatec/chat-platform/internal/textnorm"
	"github.com/tiendatec/chat-platform/pkg/logging"
)

var classifierTracer = otel.Tracer("chatplatform/intent-classifier")

// Intent is the classified purpose of a free-text message.
type Intent string

const (
	IntentGreeting     Intent = "GREETING"
	IntentFarewell     Intent = "FAREWELL"
	IntentThanks       Intent = "THANKS"
	IntentSaleInterest Intent = "SALE_INTEREST"
	IntentQuestion     Intent = "QUESTION"
	IntentComplaint    Intent = "COMPLAINT"
	IntentUnknown      Intent = "UNKNOWN"
)

// Topic refines a QUESTION intent.
type Topic string

const (
	TopicNone     Topic = ""
	TopicSchedule Topic = "schedule"
	TopicLocation Topic = "location"
	TopicContact  Topic = "contact"
	TopicShipping Topic = "shipping"
	TopicPayment  Topic = "payment"
	TopicWarranty Topic = "warranty"
)

// Classification is the result of intent detection.
type Classification struct {
	Intent Intent
	Topic  Topic
}

var greetingWords = []string{
	"hola", "buenas", "buen dia", "buenos dias", "buenas tardes",
	"buenas noches", "que tal", "saludos",
}

var farewellWords = []string{
	"chau", "chao", "adios", "hasta luego", "hasta pronto", "nos vemos", "bye",
}

var thanksWords = []string{
	"gracias", "agradezco", "agradecido", "agradecida",
}

var complaintKeywords = []string{
	"queja", "reclamo", "reclamar", "molesto", "molesta", "indignado",
	"pesimo", "pesima", "mal servicio", "mala atencion", "defectuoso",
	"roto", "danado", "nunca llego", "no llego mi pedido", "estafa",
	"devuelvan", "quiero mi dinero",
}

// saleKeywords trigger SALE_INTEREST unless negated in the same message.
var saleKeywords = []string{
	"comprar", "cotizar", "cotizacion", "presupuesto", "precio",
	"cuanto cuesta", "me interesa", "interesado", "interesada", "adquirir",
}

// topicKeywords is iterated in this fixed order so classification is
// deterministic regardless of map iteration.
var topicOrder = []Topic{
	TopicSchedule, TopicLocation, TopicContact,
	TopicShipping, TopicPayment, TopicWarranty,
}

var topicKeywords = map[Topic][]string{
	TopicSchedule: {"horario", "horarios", "abren", "cierran", "atienden", "que hora"},
	TopicLocation: {"donde estan", "donde queda", "ubicacion", "direccion", "sucursal", "como llegar"},
	TopicContact:  {"telefono", "contacto", "correo", "email", "numero de"},
	TopicShipping: {"envio", "envios", "envian", "entrega", "despacho", "flete", "delivery"},
	TopicPayment:  {"pago", "pagar", "tarjeta", "transferencia", "cuotas", "efectivo", "formas de pago"},
	TopicWarranty: {"garantia", "devolucion", "devolver", "cambio de producto"},
}

var questionStarters = []string{
	"que", "como", "cuando", "donde", "cual", "cuales", "cuanto", "cuanta",
	"quien", "por que", "porque", "puedo", "puede", "tienen", "hay",
}

// Classifier detects message intent with keyword rules. It is stateless and
// safe for concurrent use.
type Classifier struct {
	logger *logging.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(logger *logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{logger: logger}
}

// Detect classifies a raw message. Rules are evaluated in a fixed priority
// order and the first match wins; no match yields UNKNOWN.
func (c *Classifier) Detect(ctx context.Context, rawText string) Classification {
	_, span := classifierTracer.Start(ctx, "intent.detect")
	defer span.End()

	normalized := textnorm.Normalize(rawText)
	if normalized == "" {
		return Classification{Intent: IntentUnknown}
	}

	result := c.classify(rawText, normalized)

	span.SetAttributes(
		attribute.String("intent.detected", string(result.Intent)),
		attribute.String("intent.topic", string(result.Topic)),
	)
	c.logger.Debug("intent detected", "intent", result.Intent, "topic", result.Topic)

	return result
}

func (c *Classifier) classify(rawText, normalized string) Classification {
	tokens := strings.Fields(normalized)

	// Pure social messages first. A greeting followed by an actual request
	// ("hola quiero comprar...") must fall through to the later rules.
	if len(tokens) <= 3 {
		if matchesAnyPrefix(normalized, greetingWords) {
			return Classification{Intent: IntentGreeting}
		}
		if matchesAnyPrefix(normalized, farewellWords) {
			return Classification{Intent: IntentFarewell}
		}
		if containsAny(normalized, thanksWords) {
			return Classification{Intent: IntentThanks}
		}
	}

	if containsAny(normalized, complaintKeywords) {
		return Classification{Intent: IntentComplaint}
	}

	for _, kw := range saleKeywords {
		if !containsWholePhrase(normalized, kw) {
			continue
		}
		if textnorm.HasNegationBefore(rawText, kw) {
			continue
		}
		return Classification{Intent: IntentSaleInterest}
	}

	if topic, ok := detectTopic(normalized); ok {
		return Classification{Intent: IntentQuestion, Topic: topic}
	}

	if strings.Contains(rawText, "?") || matchesAnyPrefix(normalized, questionStarters) {
		return Classification{Intent: IntentQuestion}
	}

	// Longer messages can still close with thanks or a farewell.
	if containsAny(normalized, thanksWords) {
		return Classification{Intent: IntentThanks}
	}
	if matchesAnyPrefix(normalized, farewellWords) {
		return Classification{Intent: IntentFarewell}
	}

	return Classification{Intent: IntentUnknown}
}

func detectTopic(normalized string) (Topic, bool) {
	for _, topic := range topicOrder {
		if containsAny(normalized, topicKeywords[topic]) {
			return topic, true
		}
	}
	return TopicNone, false
}

func matchesAnyPrefix(normalized string, words []string) bool {
	for _, w := range words {
		if normalized == w || strings.HasPrefix(normalized, w+" ") {
			return true
		}
	}
	return false
}

func containsAny(normalized string, phrases []string) bool {
	for _, p := range phrases {
		if containsWholePhrase(normalized, p) {
			return true
		}
	}
	return false
}

// containsWholePhrase matches on word boundaries so "precio" does not match
// inside "precioso".
func containsWholePhrase(normalized, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(normalized[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		startOK := start == 0 || normalized[start-1] == ' '
		endOK := end == len(normalized) || normalized[end] == ' '
		if startOK && endOK {
			return true
		}
		idx = start + 1
		if idx >= len(normalized) {
			return false
		}
	}
}
