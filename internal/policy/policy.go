// Package policy holds the per-domain declarative rules the engine
// consults: slot stickiness, completeness requirements, validity checks
// and command building. Policies are registered at startup and read-only
// afterwards; new domains are added by registering a new policy, not by
// editing the engine.
package policy

import (
	"github.com/duru-ai/converse/internal/models"
	"github.com/duru-ai/converse/internal/session"
)

// Validity outcomes of a domain's safety/consistency check.
const (
	ValidityOK          = "ok"
	ValidityUnsupported = "unsupported"
	ValidityConflict    = "conflict"
)

// CheckResult is the outcome of CheckValidity. Reason is a machine code
// such as "already_on" or "feature_not_supported".
type CheckResult struct {
	Outcome string
	Reason  string
}

// Command is the domain-specific execution payload handed to the caller.
type Command struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// Domain is the fixed capability interface every registered domain
// implements.
type Domain interface {
	Name() string

	// Slot stickiness. Sticky slots persist until explicitly replaced;
	// episodic slots persist only across a follow-up turn.
	StickySlots() []string
	EpisodicSlots() []string

	// Intents lists the routable intents of this domain, used to build
	// NLU candidates. FallbackIntent is what the engine routes to when
	// the oracle is unavailable.
	Intents() []string
	FallbackIntent() string

	// RequiredSlots names the slots that must be present before the
	// intent can execute.
	RequiredSlots(intent string) []string

	// UsesPendingClarification selects the normalizer sub-protocol:
	// true for ordering-style domains that run the ask/answer loop,
	// false for sticky/episodic domains.
	UsesPendingClarification() bool

	// CheckValidity runs the domain's safety/consistency check against
	// the mirrored world status and supported feature list.
	CheckValidity(intent string, slots session.Slots, world map[string]string, supported []string) CheckResult

	// BuildCommand produces the execution payload. Pure.
	BuildCommand(intent string, slots session.Slots) Command
}

// CatalogAware is implemented by domains whose required option groups
// come from a looked-up catalog entity rather than a static table.
type CatalogAware interface {
	// CatalogScope extracts the lookup scope from request meta. ok is
	// false when the request carries no usable scope.
	CatalogScope(meta models.Meta) (storeID, kioskType string, ok bool)

	// EntitySlot is the slot naming the entity to resolve ("item_name");
	// OptionSlot is the slot holding chosen option values ("option_groups").
	EntitySlot() string
	OptionSlot() string

	// CatalogIntents names the intents that require entity resolution.
	CatalogIntents() []string
}

// WorldSimulator is implemented by domains that mirror external device
// state. Simulate applies a command's expected effect so the next turn's
// validity check sees the post-condition without a status refresh.
type WorldSimulator interface {
	SyncWorld(saved, live map[string]string) map[string]string
	Simulate(world map[string]string, intent string, slots session.Slots) map[string]string
}

// Candidate is one (domain, intent) pair offered to the NLU oracle.
type Candidate struct {
	Domain string `json:"domain"`
	Intent string `json:"intent"`
}

// Registry holds the process-wide read-only set of domain policies.
type Registry struct {
	domains map[string]Domain
	order   []string
}

// NewRegistry registers the given domains, preserving order for
// candidate listing.
func NewRegistry(domains ...Domain) *Registry {
	r := &Registry{domains: make(map[string]Domain, len(domains))}
	for _, d := range domains {
		if _, dup := r.domains[d.Name()]; dup {
			continue
		}
		r.domains[d.Name()] = d
		r.order = append(r.order, d.Name())
	}
	return r
}

// Get looks up a domain policy by name.
func (r *Registry) Get(name string) (Domain, bool) {
	d, ok := r.domains[name]
	return d, ok
}

// Names lists registered domains in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// normalizeMode maps client mode hints onto registered domain names.
var modeAliases = map[string]string{
	"edu":       "education",
	"education": "education",
	"kiosk":     "kiosk",
	"driving":   "driving",
	"companion": "companion",
}

// ResolveMode returns the domain name for a client mode hint, falling
// back to the first registered domain when the hint is unknown or empty.
func (r *Registry) ResolveMode(mode string) string {
	if name, ok := modeAliases[mode]; ok {
		if _, registered := r.domains[name]; registered {
			return name
		}
	}
	if len(r.order) > 0 {
		return r.order[0]
	}
	return ""
}

// Candidates builds the (domain, intent) candidate list for a turn from
// the client's mode hint.
func (r *Registry) Candidates(mode string) []Candidate {
	name := r.ResolveMode(mode)
	d, ok := r.domains[name]
	if !ok {
		return nil
	}
	out := make([]Candidate, 0, len(d.Intents()))
	for _, intent := range d.Intents() {
		out = append(out, Candidate{Domain: d.Name(), Intent: intent})
	}
	return out
}
