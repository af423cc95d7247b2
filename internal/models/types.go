package models

// TurnRequest is the wire format for one conversational turn, coming in
// over NATS or HTTP.
type TurnRequest struct {
	UserMessage string `json:"user_message"`
	Meta        Meta   `json:"meta"`
}

// Meta carries request-scoped context supplied by the client. Domains
// ignore the fields that don't apply to them.
type Meta struct {
	ClientSessionID string `json:"client_session_id"`
	Mode            string `json:"mode,omitempty"` // "kiosk" | "driving" | "edu" | "companion"
	Locale          string `json:"locale,omitempty"`
	DeviceType      string `json:"device_type,omitempty"`

	// Kiosk scope
	StoreID   string `json:"store_id,omitempty"`
	KioskType string `json:"kiosk_type,omitempty"` // "cafe" | "cinema" | "fastfood" | "etc"

	// Driving scope: live device status from the vehicle plus the feature
	// list this trim actually supports.
	VehicleStatus     map[string]string `json:"vehicle_status,omitempty"`
	SupportedFeatures []string          `json:"supported_features,omitempty"`

	// Companion scope
	Persona   string `json:"persona,omitempty"`
	Verbosity string `json:"verbosity,omitempty"`

	// Education scope
	UserLevel string `json:"user_level,omitempty"`
}

// Reply is the user-facing half of an action.
type Reply struct {
	ActionType string         `json:"action_type"`
	Text       string         `json:"text"`
	UIHints    map[string]any `json:"ui_hints,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// StateSnapshot is a read-only projection of session state for responses
// and logs. Slot values are never included, only their keys.
type StateSnapshot struct {
	ConversationID string   `json:"conversation_id"`
	TurnIndex      int      `json:"turn_index"`
	Domain         string   `json:"domain,omitempty"`
	Intent         string   `json:"intent,omitempty"`
	SlotKeys       []string `json:"slot_keys"`
	PendingKey     string   `json:"pending_key,omitempty"`
	LastAction     string   `json:"last_action,omitempty"`
}

// TurnResponse is the wire format returned to the transport layer.
type TurnResponse struct {
	TraceID        string        `json:"trace_id"`
	ConversationID string        `json:"conversation_id"`
	TurnIndex      int           `json:"turn_index"`
	Reply          Reply         `json:"reply"`
	State          StateSnapshot `json:"state"`
}

// Action kinds emitted by the validator.
const (
	ActionAskSlot        = "ask_slot"
	ActionAskOptionGroup = "ask_option_group"
	ActionConfirm        = "confirm_action"
	ActionExecute        = "execute"
	ActionAnswer         = "answer"
)

// Error codes surfaced on transport-level failures.
const (
	ErrorParseError  = "PARSE_ERROR"
	ErrorTurnFailed  = "TURN_FAILED"
	ErrorBadRequest  = "BAD_REQUEST"
	ErrorStoreFailed = "STORE_FAILED"
)

// ErrorResponse is sent when a request cannot be processed at all.
type ErrorResponse struct {
	TraceID      string `json:"trace_id,omitempty"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	UserMessage  string `json:"user_message"`
}
