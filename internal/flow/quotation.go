package flow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tiendatec/chat-platform/internal/stores"
)

// FlowQuotation identifies the quotation wizard.
const FlowQuotation = "quotation"

// quotationProducts is the catalog offered by the wizard. Option ids are
// stable and stored in the flow data; titles are what the customer sees.
var quotationProducts = []Option{
	{ID: "porcelanato_60", Title: "Porcelanato 60x60"},
	{ID: "porcelanato_120", Title: "Porcelanato 120x60"},
	{ID: "ceramica_45", Title: "Cerámica 45x45"},
	{ID: "revestimiento_30", Title: "Revestimiento 30x60"},
	{ID: "piso_exterior", Title: "Piso antideslizante exterior"},
	{ID: "guardas", Title: "Guardas y listelos"},
}

// quotationStores mirrors the branch catalog as pickable options.
var quotationStores = storeOptions()

func storeOptions() []Option {
	branches := stores.All()
	opts := make([]Option, 0, len(branches))
	for _, s := range branches {
		opts = append(opts, Option{ID: s.ID, Title: s.Name})
	}
	return opts
}

const (
	maxQuotationQty = 10000
)

// NewQuotationFlow builds the quotation wizard: product, quantity, pickup
// store, confirmation.
func NewQuotationFlow(timeout time.Duration) *Definition {
	return &Definition{
		ID:      FlowQuotation,
		Entry:   "product",
		Timeout: timeout,
		CancelMessage: "Listo, cancelé la cotización. " +
			"Escribime cuando quieras retomarla.",
		TransferMessage: "Te paso con un asesor para terminar la cotización. " +
			"En breve te contacta.",
		MismatchMessage: "Elegí una opción de la lista para continuar.",
		Steps: map[string]Step{
			"product": {
				ID: "product",
				Prompt: func(State) Prompt {
					return ListPrompt("¿Qué producto querés cotizar?", quotationProducts...)
				},
				Expect:   ReplyList,
				Validate: validateOption(quotationProducts, "Ese producto no está en la lista."),
				SaveAs:   "product_id",
				Next:     NextFixed("quantity"),
			},
			"quantity": {
				ID: "quantity",
				Prompt: func(State) Prompt {
					return TextPrompt("¿Cuántos metros cuadrados necesitás? Escribí solo el número.")
				},
				Expect:   ReplyText,
				Validate: validateQuantity,
				SaveAs:   "quantity_m2",
				Next:     NextFixed("store"),
			},
			"store": {
				ID: "store",
				Prompt: func(State) Prompt {
					return ListPrompt("¿En qué sucursal preferís retirar o coordinar la entrega?", quotationStores...)
				},
				Expect:   ReplyList,
				Validate: validateOption(quotationStores, "Esa sucursal no está en la lista."),
				SaveAs:   "store_id",
				Next:     NextFixed("confirm"),
			},
			"confirm": {
				ID:     "confirm",
				Prompt: quotationSummaryPrompt,
				Expect: ReplyButton,
				Next: NextFunc(func(st State, reply Reply) string {
					switch reply.OptionID {
					case "confirm":
						return StepEnd
					case "advisor":
						return StepTransfer
					default:
						return "confirm"
					}
				}),
				Complete: func(st State) Prompt {
					return TextPrompt("¡Listo! Registramos tu pedido de cotización de " +
						optionTitle(quotationProducts, st.Data["product_id"]) +
						". Te enviamos el presupuesto por este medio dentro del día.")
				},
			},
		},
	}
}

func quotationSummaryPrompt(st State) Prompt {
	var b strings.Builder
	b.WriteString("Revisá tu pedido:\n")
	fmt.Fprintf(&b, "• Producto: %s\n", optionTitle(quotationProducts, st.Data["product_id"]))
	fmt.Fprintf(&b, "• Cantidad: %s m²\n", st.Data["quantity_m2"])
	fmt.Fprintf(&b, "• Sucursal: %s\n", optionTitle(quotationStores, st.Data["store_id"]))
	b.WriteString("¿Confirmamos?")
	return ButtonPrompt(b.String(),
		Option{ID: "confirm", Title: "Confirmar"},
		Option{ID: "advisor", Title: "Hablar con asesor"},
		Option{ID: "cancelar", Title: "Cancelar"},
	)
}

func validateQuantity(_ State, reply Reply) (string, error) {
	raw := strings.TrimSpace(reply.Text)
	raw = strings.TrimSuffix(raw, "m2")
	raw = strings.TrimSuffix(raw, "m²")
	raw = strings.TrimSpace(raw)

	qty, err := strconv.Atoi(raw)
	if err != nil {
		return "", fmt.Errorf("Necesito un número, por ejemplo: 25")
	}
	if qty < 1 || qty > maxQuotationQty {
		return "", fmt.Errorf("La cantidad tiene que estar entre 1 y %d", maxQuotationQty)
	}
	return strconv.Itoa(qty), nil
}

// validateOption accepts only ids present in the option set.
func validateOption(options []Option, message string) func(State, Reply) (string, error) {
	return func(_ State, reply Reply) (string, error) {
		for _, opt := range options {
			if reply.OptionID == opt.ID {
				return opt.ID, nil
			}
		}
		return "", fmt.Errorf("%s", message)
	}
}

func optionTitle(options []Option, id string) string {
	for _, opt := range options {
		if opt.ID == id {
			return opt.Title
		}
	}
	return id
}
