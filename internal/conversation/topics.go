package conversation

import "github.com/tiendatec/chat-platform/internal/intent"

// topicAnswers are the canned replies for topic questions the classifier can
// pin down. Anything it cannot is handled by auto-response rules or the
// information menu.
var topicAnswers = map[intent.Topic]string{
	intent.TopicSchedule: "Atendemos de lunes a viernes de 8 a 18 hs y sábados de 8 a 13 hs.",
	intent.TopicLocation: "Estamos en Av. San Martín 1200 (Centro), Ruta 9 km 14 (Norte) " +
		"y Av. Circunvalación 3500 (Oeste).",
	intent.TopicContact: "Podés llamarnos al 0800-555-PISO o escribirnos por acá, " +
		"te respondemos en el horario de atención.",
	intent.TopicShipping: "Hacemos envíos a domicilio en la ciudad y alrededores. " +
		"El costo se confirma al armar el pedido según la zona.",
	intent.TopicPayment:  "Aceptamos efectivo, transferencia, débito y crédito en hasta 12 cuotas.",
	intent.TopicWarranty: "Todos los productos tienen garantía de fábrica y los cambios se " +
		"gestionan en sucursal con el ticket de compra.",
}

// TopicAnswer returns the canned reply for a topic, if one exists.
func TopicAnswer(topic intent.Topic) (string, bool) {
	answer, ok := topicAnswers[topic]
	return answer, ok
}
