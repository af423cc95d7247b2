package policy

import (
	"github.com/duru-ai/converse/internal/models"
	"github.com/duru-ai/converse/internal/session"
)

// Kiosk is the ordering domain. It runs the pending-clarification loop:
// the engine asks for missing slots or option groups and resumes from a
// minimal slot snapshot when the user answers.
type Kiosk struct{}

func NewKiosk() *Kiosk { return &Kiosk{} }

func (*Kiosk) Name() string { return "kiosk" }

// No carry-over slots: the clarification snapshot is the only cross-turn
// memory an order needs, and stale item slots must not leak into the
// next order.
func (*Kiosk) StickySlots() []string   { return nil }
func (*Kiosk) EpisodicSlots() []string { return nil }

func (*Kiosk) Intents() []string {
	return []string{
		"add_item",
		"modify_item",
		"remove_item",
		"checkout",
		"cancel_order",
		"refund_order",
		"ask_store_info",
		"ask_recommendation",
		"request_help",
		"fallback",
	}
}

func (*Kiosk) FallbackIntent() string { return "fallback" }

var kioskRequiredSlots = map[string][]string{
	"add_item":       {"item_name"},
	"modify_item":    {"target_item_ref"},
	"remove_item":    {"target_item_ref"},
	"cancel_order":   {"order_ref"},
	"refund_order":   {"order_ref"},
	"ask_store_info": {"info_type"},
}

func (*Kiosk) RequiredSlots(intent string) []string {
	return kioskRequiredSlots[intent]
}

func (*Kiosk) UsesPendingClarification() bool { return true }

func (*Kiosk) CheckValidity(string, session.Slots, map[string]string, []string) CheckResult {
	return CheckResult{Outcome: ValidityOK}
}

func (*Kiosk) BuildCommand(intent string, slots session.Slots) Command {
	switch intent {
	case "add_item":
		quantity, ok := slots.Int("quantity")
		if !ok || quantity < 1 {
			quantity = 1
		}
		return Command{
			Type: "add_to_cart",
			Params: map[string]any{
				"item_name":     slots.String("item_name"),
				"quantity":      quantity,
				"option_groups": slots.StringMap("option_groups"),
				"notes":         slots.String("notes"),
			},
		}
	case "modify_item":
		return Command{
			Type: "modify_cart_item",
			Params: map[string]any{
				"target_item_ref": slots.String("target_item_ref"),
				"option_groups":   slots.StringMap("option_groups"),
			},
		}
	case "remove_item":
		return Command{
			Type:   "remove_cart_item",
			Params: map[string]any{"target_item_ref": slots.String("target_item_ref")},
		}
	case "checkout":
		return Command{
			Type: "checkout",
			Params: map[string]any{
				"payment_method": slots.String("payment_method"),
				"receipt_type":   slots.String("receipt_type"),
			},
		}
	case "cancel_order", "refund_order":
		return Command{
			Type: intent,
			Params: map[string]any{
				"order_ref": slots.String("order_ref"),
				"reason":    slots.String("reason"),
			},
		}
	case "ask_store_info":
		return Command{
			Type:   "store_info",
			Params: map[string]any{"info_type": slots.String("info_type")},
		}
	case "ask_recommendation":
		return Command{
			Type: "recommend_menu",
			Params: map[string]any{
				"category":   slots.String("category"),
				"budget_max": slots.Value("budget_max"),
				"dietary":    slots.String("dietary"),
			},
		}
	default:
		return Command{Type: "none", Params: map[string]any{}}
	}
}

// CatalogAware: add_item resolves the item against the menu catalog and
// the item decides which option groups are mandatory.

func (*Kiosk) CatalogScope(meta models.Meta) (string, string, bool) {
	if meta.StoreID == "" || meta.KioskType == "" {
		return "", "", false
	}
	return meta.StoreID, meta.KioskType, true
}

func (*Kiosk) EntitySlot() string { return "item_name" }
func (*Kiosk) OptionSlot() string { return "option_groups" }

func (*Kiosk) CatalogIntents() []string { return []string{"add_item"} }
