package policy

import (
	"strings"

	"github.com/duru-ai/converse/internal/session"
)

// Driving is the vehicle-control domain. It checks requested changes
// against a mirrored device status, refuses unsupported features, asks
// for confirmation on redundant requests, and simulates the effect of an
// executed command so the next turn sees the post-condition.
type Driving struct{}

func NewDriving() *Driving { return &Driving{} }

func (*Driving) Name() string { return "driving" }

func (*Driving) StickySlots() []string   { return nil }
func (*Driving) EpisodicSlots() []string { return []string{"query"} }

func (*Driving) Intents() []string {
	return []string{
		"control_hardware",
		"control_hvac",
		"navigate_to",
		"find_poi",
		"general_chat",
		"fallback",
	}
}

func (*Driving) FallbackIntent() string { return "fallback" }

var drivingRequiredSlots = map[string][]string{
	"control_hardware": {"target_part", "action"},
	"control_hvac":     {"action"},
	"navigate_to":      {"destination"},
	"find_poi":         {"poi_type"},
}

func (*Driving) RequiredSlots(intent string) []string {
	return drivingRequiredSlots[intent]
}

func (*Driving) UsesPendingClarification() bool { return true }

// Parts controllable on every trim; everything else must appear in the
// supported-features list.
var drivingBasicParts = map[string]bool{
	"door_lock": true,
	"light":     true,
	"wiper":     true,
	"mirror":    true,
	"trunk":     true,
	"frunk":     true,
	"window":    true,
}

// featureName maps a part plus location onto the feature key used in the
// supported-features list.
func featureName(part, location string) string {
	switch part {
	case "seat_heater":
		if isRearLocation(location) {
			return "seat_heater_rear"
		}
		return "seat_heater_front"
	case "seat_ventilation":
		if isRearLocation(location) {
			return "seat_ventilation_rear"
		}
		return "seat_ventilation_front"
	case "steering_wheel":
		return "steering_wheel_heater"
	default:
		return part
	}
}

func isRearLocation(location string) bool {
	switch location {
	case "rear", "rear_left", "rear_right":
		return true
	}
	return false
}

// statusKeys resolves the world-status keys a hardware request targets.
func statusKeys(part, location string, world map[string]string) []string {
	switch part {
	case "window":
		all := []string{"window_driver", "window_passenger", "window_rear_left", "window_rear_right"}
		switch location {
		case "driver", "passenger", "rear_left", "rear_right":
			return []string{"window_" + location}
		default:
			keys := make([]string, 0, len(all))
			for _, k := range all {
				if _, ok := world[k]; ok {
					keys = append(keys, k)
				}
			}
			return keys
		}
	case "seat_heater":
		switch location {
		case "driver", "passenger":
			return []string{"seat_heater_" + location}
		case "rear":
			return []string{"seat_heater_rear_left", "seat_heater_rear_right"}
		default:
			return []string{"seat_heater_driver"}
		}
	case "seat_ventilation":
		if location == "driver" || location == "passenger" {
			return []string{"seat_ventilation_" + location}
		}
		return nil
	case "sunroof":
		return []string{"sunroof"}
	case "steering_wheel":
		return []string{"steering_wheel_heat"}
	case "door_lock":
		return []string{"door_lock"}
	default:
		return nil
	}
}

func (*Driving) CheckValidity(intent string, slots session.Slots, world map[string]string, supported []string) CheckResult {
	if len(world) == 0 && supported == nil {
		return CheckResult{Outcome: ValidityOK}
	}

	supportSet := map[string]bool{}
	for _, f := range supported {
		supportSet[f] = true
	}
	// nil means the client sent no list at all; an explicit empty list
	// means nothing is supported.
	checkSupport := supported != nil

	switch intent {
	case "control_hardware":
		part := strings.ToLower(slots.String("target_part"))
		action := strings.ToLower(slots.String("action"))
		location := strings.ToLower(slots.String("location_detail"))

		if checkSupport && !drivingBasicParts[part] && !supportSet[featureName(part, location)] {
			return CheckResult{Outcome: ValidityUnsupported, Reason: "feature_not_supported"}
		}

		keys := statusKeys(part, location, world)
		vals := make([]string, 0, len(keys))
		for _, k := range keys {
			if v, ok := world[k]; ok {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			return CheckResult{Outcome: ValidityOK}
		}

		if reason := redundantReason(action, vals); reason != "" {
			return CheckResult{Outcome: ValidityConflict, Reason: reason}
		}

	case "control_hvac":
		action := strings.ToLower(slots.String("action"))
		seatLoc := strings.ToLower(slots.String("seat_location"))

		if checkSupport {
			if seatLoc == "rear" && !supportSet["hvac_rear"] {
				return CheckResult{Outcome: ValidityUnsupported, Reason: "feature_not_supported"}
			}
			if seatLoc == "passenger" && !supportSet["hvac_passenger"] {
				return CheckResult{Outcome: ValidityUnsupported, Reason: "feature_not_supported"}
			}
		}

		power := world["hvac_power"]
		if action == "on" && power == "on" {
			return CheckResult{Outcome: ValidityConflict, Reason: "hvac_already_on"}
		}
		if action == "off" && power == "off" {
			return CheckResult{Outcome: ValidityConflict, Reason: "hvac_already_off"}
		}
	}

	return CheckResult{Outcome: ValidityOK}
}

// redundantReason reports the conflict code when every targeted device is
// already in the requested state.
func redundantReason(action string, vals []string) string {
	want := map[string]string{"close": "closed", "open": "open", "on": "on", "off": "off", "lock": "locked", "unlock": "unlocked"}[action]
	if want == "" {
		return ""
	}
	for _, v := range vals {
		if v != want {
			return ""
		}
	}
	return "already_" + want
}

func (*Driving) BuildCommand(intent string, slots session.Slots) Command {
	switch intent {
	case "control_hvac":
		action := strings.ToLower(slots.String("action"))
		if action == "" {
			action = "on"
		}
		return Command{
			Type: "hvac_control",
			Params: map[string]any{
				"action":        action,
				"hvac_mode":     strings.ToLower(slots.String("hvac_mode")),
				"target_temp":   slots.Value("target_temp"),
				"seat_location": slots.Value("seat_location"),
				"fan_speed":     slots.Value("fan_speed"),
			},
		}
	case "control_hardware":
		return Command{
			Type: "hardware_control",
			Params: map[string]any{
				"part":            strings.ToLower(slots.String("target_part")),
				"action":          strings.ToLower(slots.String("action")),
				"location_detail": slots.Value("location_detail"),
			},
		}
	case "navigate_to":
		return Command{
			Type: "navigation",
			Params: map[string]any{
				"destination": slots.Value("destination"),
				"waypoint":    slots.Value("waypoint"),
			},
		}
	case "find_poi":
		return Command{
			Type: "search_poi",
			Params: map[string]any{
				"poi_type": slots.Value("poi_type"),
				"sort_by":  slots.Value("sort_by"),
			},
		}
	case "general_chat":
		return Command{
			Type:   "assistant_chat",
			Params: map[string]any{"query": slots.String("query")},
		}
	default:
		return Command{Type: "none", Params: map[string]any{}}
	}
}

// WorldSimulator: reality wins over memory, then executed commands update
// the mirror.

// SyncWorld merges the remembered status with the live sensor status.
// Live values take priority; remembered details not reported this turn
// are preserved.
func (*Driving) SyncWorld(saved, live map[string]string) map[string]string {
	out := make(map[string]string, len(saved)+len(live))
	for k, v := range saved {
		out[k] = v
	}
	for k, v := range live {
		out[k] = v
	}
	return out
}

var drivingPartKeyMap = map[string]string{
	"steering_wheel": "steering_wheel_heat",
	"seat_heater":    "seat_heater_driver",
	"light":          "light_head",
	"wiper":          "wiper_front",
}

// Simulate applies the expected post-condition of an executed command to
// the world mirror.
func (*Driving) Simulate(world map[string]string, intent string, slots session.Slots) map[string]string {
	out := make(map[string]string, len(world))
	for k, v := range world {
		out[k] = v
	}

	switch intent {
	case "control_hvac":
		action := strings.ToLower(slots.String("action"))
		if action == "on" || action == "off" {
			out["hvac_power"] = action
		}
		return out
	case "control_hardware":
		// handled below
	default:
		return out
	}

	part := strings.ToLower(slots.String("target_part"))
	action := strings.ToLower(slots.String("action"))
	detail := strings.ToLower(slots.String("location_detail"))

	val := map[string]string{"open": "open", "close": "closed", "on": "on", "off": "off", "lock": "locked", "unlock": "unlocked"}[action]
	if val == "" {
		return out
	}

	switch part {
	case "window":
		for _, k := range []string{"window_driver", "window_passenger", "window_rear_left", "window_rear_right"} {
			out[k] = val
		}
	case "seat_heater":
		if strings.Contains(detail, "rear") {
			out["seat_heater_rear_left"] = val
			out["seat_heater_rear_right"] = val
		} else {
			out["seat_heater_driver"] = val
		}
	default:
		key := drivingPartKeyMap[part]
		if key == "" {
			key = part
		}
		out[key] = val
	}
	return out
}
