package catalog

import "strings"

// maxRecoveryCandidates caps the retry list when a name lookup misses.
const maxRecoveryCandidates = 5

// modifierTokens are words the NLU oracle tends to glue onto item names:
// option values, quantity words and politeness filler. Stripping them and
// retrying recovers lookups like "large iced coffee please" -> "coffee".
var modifierTokens = map[string]bool{
	// temperature / option values
	"hot": true, "iced": true, "ice": true, "cold": true, "warm": true,
	// sizes
	"small": true, "medium": true, "large": true, "tall": true,
	"grande": true, "venti": true, "s": true, "m": true, "l": true,
	// quantity words
	"one": true, "two": true, "three": true, "a": true, "an": true,
	"cup": true, "cups": true, "of": true,
	// politeness filler
	"please": true, "thanks": true, "thank": true, "you": true,
}

// RecoveryCandidates generates an ordered, bounded list of alternative
// names to retry after a lookup miss. Exhaustion is a normal not-found
// outcome, never an error.
func RecoveryCandidates(name string) []string {
	fields := strings.Fields(strings.TrimSpace(name))
	if len(fields) < 2 {
		return nil
	}

	var out []string
	seen := map[string]bool{strings.ToLower(strings.Join(fields, " ")): true}
	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		key := strings.ToLower(candidate)
		if candidate == "" || seen[key] || len(out) >= maxRecoveryCandidates {
			return
		}
		seen[key] = true
		out = append(out, candidate)
	}

	// 1) drop every known modifier token at once
	var kept []string
	for _, f := range fields {
		if !modifierTokens[strings.ToLower(f)] {
			kept = append(kept, f)
		}
	}
	add(strings.Join(kept, " "))

	// 2) drop one modifier token at a time, left to right
	for i, f := range fields {
		if !modifierTokens[strings.ToLower(f)] {
			continue
		}
		rest := make([]string, 0, len(fields)-1)
		rest = append(rest, fields[:i]...)
		rest = append(rest, fields[i+1:]...)
		add(strings.Join(rest, " "))
	}

	// 3) last non-modifier word alone, the usual head noun
	for i := len(fields) - 1; i >= 0; i-- {
		if !modifierTokens[strings.ToLower(fields[i])] {
			add(fields[i])
			break
		}
	}

	return out
}
