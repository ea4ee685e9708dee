package flow

import "time"

// FlowInfoMenu identifies the self-service information menu.
const FlowInfoMenu = "info_menu"

var infoMenuOptions = []Option{
	{ID: "horarios", Title: "Horarios de atención"},
	{ID: "sucursales", Title: "Sucursales y ubicación"},
	{ID: "envios", Title: "Envíos y entregas"},
	{ID: "pagos", Title: "Medios de pago"},
	{ID: "garantia", Title: "Garantía y cambios"},
	{ID: "asesor", Title: "Hablar con un asesor"},
}

var infoMenuAnswers = map[string]string{
	"horarios": "Atendemos de lunes a viernes de 8 a 18 hs y sábados de 8 a 13 hs.",
	"sucursales": "Tenemos tres sucursales: Centro (Av. San Martín 1200), " +
		"Norte (Ruta 9 km 14) y Oeste (Av. Circunvalación 3500).",
	"envios": "Hacemos envíos a domicilio en toda la ciudad y alrededores. " +
		"El costo depende de la zona y lo confirmamos al armar el pedido.",
	"pagos": "Aceptamos efectivo, transferencia, débito y crédito en hasta 12 cuotas.",
	"garantia": "Todos los productos tienen garantía de fábrica. " +
		"Los cambios se gestionan en la sucursal con el ticket de compra.",
}

// NewInfoMenuFlow builds the one-step information menu: the customer picks a
// topic and gets its answer, or asks for a human.
func NewInfoMenuFlow(timeout time.Duration) *Definition {
	return &Definition{
		ID:      FlowInfoMenu,
		Entry:   "menu",
		Timeout: timeout,
		CancelMessage: "Cerré el menú. Escribime cualquier otra consulta cuando quieras.",
		TransferMessage: "Te derivo con un asesor, en breve te responde por acá.",
		MismatchMessage: "Elegí una opción del menú para continuar.",
		Steps: map[string]Step{
			"menu": {
				ID: "menu",
				Prompt: func(State) Prompt {
					return ListPrompt("¿Sobre qué querés información?", infoMenuOptions...)
				},
				Expect:   ReplyList,
				Validate: validateOption(infoMenuOptions, "Esa opción no está en el menú."),
				SaveAs:   "topic",
				Next: NextFunc(func(st State, reply Reply) string {
					if reply.OptionID == "asesor" {
						return StepTransfer
					}
					return StepEnd
				}),
				Complete: func(st State) Prompt {
					return TextPrompt(infoMenuAnswers[st.Data["topic"]])
				},
			},
		},
	}
}
