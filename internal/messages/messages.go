// Package messages holds the base reply templates. The generation
// oracle may rewrite these into a persona-consistent surface form, but
// every action must render to something sensible from this table alone.
package messages

import (
	"fmt"
	"sort"
	"strings"
)

const FallbackKey = "result.fail.generic"

var templates = map[string]string{
	"fallback.generic": "I'm not sure how to help with that yet. Could you rephrase it?",

	// ask_slot
	"ask.slot.item_name":       "Which item would you like?",
	"ask.slot.quantity":        "How many would you like?",
	"ask.slot.target_item_ref": "Which item should I change?",
	"ask.slot.order_ref":       "What's the order number?",
	"ask.slot.info_type":       "What would you like to know? (hours, location, parking...)",
	"ask.slot.destination":     "Where would you like to go?",
	"ask.slot.target_part":     "Which part of the car should I control?",
	"ask.slot.action":          "What should I do with it?",
	"ask.slot.poi_type":        "What kind of place are you looking for?",
	"ask.slot.topic":           "What topic should we look at?",
	"ask.slot.student_answer":  "Paste the answer you'd like me to check.",
	"ask.slot.content":         "Paste the text you'd like me to work on.",
	"ask.slot.generic":         "Could you tell me the {slot}?",

	// ask_option_group
	"ask.option_group.temperature": "Hot or iced?",
	"ask.option_group.size":        "What size would you like? ({choices})",
	"ask.option_group.generic":     "Please pick a {group}: {choices}",

	// confirmations
	"confirm.already_on":     "That's already on. Do it anyway?",
	"confirm.already_off":    "That's already off. Do it anyway?",
	"confirm.already_open":   "That's already open. Do it anyway?",
	"confirm.already_closed": "That's already closed. Do it anyway?",
	"confirm.generic":        "That looks redundant ({reason}). Should I do it anyway?",

	// answers
	"answer.not_found":   "I couldn't find \"{item_name}\" on the menu. Would you like something else?",
	"answer.unsupported": "Sorry, this vehicle doesn't support that feature.",

	// OK results
	"result.kiosk.add_item":           "Added {item_name} x{quantity} to your order{options}.",
	"result.kiosk.modify_item":        "I've updated that item.",
	"result.kiosk.remove_item":        "I've removed that item.",
	"result.kiosk.checkout":           "Let's check out.",
	"result.kiosk.cancel_order":       "Your order has been cancelled.",
	"result.kiosk.refund_order":       "Your refund is on its way.",
	"result.kiosk.ask_store_info":     "Here's the store info you asked about ({info_type}).",
	"result.kiosk.ask_recommendation": "Here are a few picks you might like.",
	"result.kiosk.request_help":       "Calling a staff member over to help you now.",
	"result.driving.control_hardware": "Done, the {part} is set to {action}.",
	"result.driving.control_hvac":     "Climate control updated.",
	"result.driving.navigate_to":      "Starting navigation to {destination}.",
	"result.driving.find_poi":         "Searching for {poi_type} nearby.",

	// Degraded replies for generated intents when the answer oracle is
	// unavailable.
	"result.driving.general_chat":    "Let's keep our eyes on the road. What else can I do?",
	"result.education.ask_knowledge": "Good question about {topic}. Let me get back to you on that.",
	"result.education.chitchat":      "Always happy to chat. What should we study next?",
	"result.companion.general_chat":  "I'm here with you. Tell me more.",

	// FAIL results
	"result.fail.generic": "I couldn't finish that. Please try again in a moment.",
}

// Render formats a template key with {name} substitutions. Unknown keys
// fall back to the generic failure template so a reply is never empty.
func Render(key string, vars map[string]any) string {
	tmpl, ok := templates[key]
	if !ok {
		tmpl = templates[FallbackKey]
	}
	out := tmpl
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{"+name+"}", fmt.Sprintf("%v", value))
	}
	return out
}

// Has reports whether a template exists for the key.
func Has(key string) bool {
	_, ok := templates[key]
	return ok
}

// OptionsSuffix renders chosen option groups for result templates, e.g.
// " (temperature=iced)". Empty when no options were chosen.
func OptionsSuffix(optionGroups map[string]string) string {
	if len(optionGroups) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(optionGroups))
	for g, v := range optionGroups {
		if strings.TrimSpace(v) == "" {
			continue
		}
		pairs = append(pairs, g+"="+v)
	}
	if len(pairs) == 0 {
		return ""
	}
	sort.Strings(pairs)
	return " (" + strings.Join(pairs, ", ") + ")"
}
